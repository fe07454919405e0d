package logger

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/ierezell/ml-infra/common/config"
)

func TestSetupEnhancedLoggerLevels(t *testing.T) {
	original := config.DebugEnabled
	originalLogger := Logger
	t.Cleanup(func() {
		config.DebugEnabled = original
		Logger = originalLogger
	})

	for _, debug := range []bool{true, false} {
		config.DebugEnabled = debug
		SetupEnhancedLogger(context.Background())
		Logger.Debug("debug entry")
		Logger.Info("info entry")
	}
}

func TestSetupLoggerTeesGinWriters(t *testing.T) {
	dir := t.TempDir()

	originalLogDir := LogDir
	originalOnlyOne := config.OnlyOneLogFile
	originalWriter := gin.DefaultWriter
	originalErrWriter := gin.DefaultErrorWriter
	t.Cleanup(func() {
		LogDir = originalLogDir
		config.OnlyOneLogFile = originalOnlyOne
		gin.DefaultWriter = originalWriter
		gin.DefaultErrorWriter = originalErrWriter
		setupLogOnce = sync.Once{}
	})

	LogDir = dir
	config.OnlyOneLogFile = true
	setupLogOnce = sync.Once{}

	SetupLogger()
	_, err := gin.DefaultWriter.Write([]byte("gin access line\n"))
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "ml-infra.log"))
	require.NoError(t, err)
	require.Contains(t, string(content), "gin access line")
}

func TestDeleteExpiredLogFiles(t *testing.T) {
	dir := t.TempDir()
	oldLog := filepath.Join(dir, "ml-infra-20200101.log")
	freshLog := filepath.Join(dir, "ml-infra.log")
	other := filepath.Join(dir, "notes.txt")
	for _, p := range []string{oldLog, freshLog, other} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	stale := time.Now().Add(-72 * time.Hour)
	require.NoError(t, os.Chtimes(oldLog, stale, stale))
	require.NoError(t, os.Chtimes(other, stale, stale))

	require.NoError(t, deleteExpiredLogFiles(1, dir, time.Now()))

	_, err := os.Stat(oldLog)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(freshLog)
	require.NoError(t, err)
	_, err = os.Stat(other)
	require.NoError(t, err, "only .log files are swept")
}

func TestDeleteExpiredLogFilesMissingDir(t *testing.T) {
	require.NoError(t, deleteExpiredLogFiles(1, filepath.Join(t.TempDir(), "absent"), time.Now()))
}
