package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/iliyamo/student-records/internal/database"
	"github.com/iliyamo/student-records/internal/queue"
	"github.com/iliyamo/student-records/internal/repository"
)

var auditConsumerCmd = &cobra.Command{
	Use:   "audit-consumer",
	Short: "Store audit events from RabbitMQ in the audit_log table",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		if cfg.RabbitMQURL == "" {
			return errors.New("RABBITMQ_URL is required")
		}
		db, err := database.Open(cmd.Context(), cfg.DatabaseURL, log)
		if err != nil {
			return err
		}
		defer db.Close()

		err = queue.StartAuditConsumer(cmd.Context(), cfg.RabbitMQURL, repository.NewAuditRepo(db), log)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(auditConsumerCmd)
}
