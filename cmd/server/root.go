package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iliyamo/student-records/internal/config"
	"github.com/iliyamo/student-records/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:          "server",
	Short:        "Student records API",
	SilenceUsage: true,
}

// setup loads the configuration and the logger shared by every command.
func setup() (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger.New(cfg.LogLevel, cfg.IsProduction(), os.Stdout), nil
}
