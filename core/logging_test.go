package core

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreGinWriters(t *testing.T) {
	out, errOut := gin.DefaultWriter, gin.DefaultErrorWriter
	t.Cleanup(func() {
		gin.DefaultWriter, gin.DefaultErrorWriter = out, errOut
	})
}

func TestSetupLoggingWritesJSONFile(t *testing.T) {
	restoreGinWriters(t)
	cfg := testConfig()
	cfg.LogDir = filepath.Join(t.TempDir(), "logs")
	cfg.LogLevel = "debug"

	logger, closer, err := SetupLogging(cfg, "test.log")
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	logger.WithField("post_id", 3).Info("post created")
	require.NoError(t, closer.Close())

	raw, err := os.ReadFile(filepath.Join(cfg.LogDir, "test.log"))
	require.NoError(t, err)
	line := strings.TrimSpace(string(raw))
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "post created", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.EqualValues(t, 3, entry["post_id"])
}

func TestSetupLoggingStdoutOnly(t *testing.T) {
	restoreGinWriters(t)
	cfg := testConfig()
	logger, closer, err := SetupLogging(cfg, "")
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.NoError(t, closer.Close())
}

func TestSetupLoggingRejectsBadLevel(t *testing.T) {
	restoreGinWriters(t)
	cfg := testConfig()
	cfg.LogLevel = "chatty"
	_, _, err := SetupLogging(cfg, "")
	assert.Error(t, err)
}
