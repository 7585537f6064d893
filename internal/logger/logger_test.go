package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New("debug", true, &buf)

	log.WithField("user_id", 7).Info("login")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "login", entry["msg"])
	assert.Equal(t, float64(7), entry["user_id"])
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
}

func TestNewUnknownLevelFallsBackToInfo(t *testing.T) {
	log := New("loud", false, &bytes.Buffer{})
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}
