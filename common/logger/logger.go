package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/ierezell/ml-infra/common/config"
)

var (
	// Logger is the process logger. Request handlers should prefer gmw.GetLogger(c).
	Logger glog.Logger
	// LogDir is the directory receiving log files. Empty keeps logs on stdout only.
	LogDir string

	setupLogOnce sync.Once
	initLogOnce  sync.Once
)

func init() {
	initLogger()
}

func initLogger() {
	initLogOnce.Do(func() {
		var err error
		level := glog.LevelInfo
		if config.DebugEnabled {
			level = glog.LevelDebug
		}

		Logger, err = glog.NewConsoleWithName("ml-infra", level)
		if err != nil {
			panic(fmt.Sprintf("failed to create logger: %+v", err))
		}
	})
}

// logFileName returns the file gin writers are tee'd into.
func logFileName(now time.Time) string {
	if config.OnlyOneLogFile {
		return "ml-infra.log"
	}
	return fmt.Sprintf("ml-infra-%s.log", now.Format("20060102"))
}

// SetupLogger tees gin's access and error writers into LogDir.
func SetupLogger() {
	setupLogOnce.Do(func() {
		if LogDir == "" {
			return
		}

		logPath := filepath.Join(LogDir, logFileName(time.Now()))
		fd, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Fatal("failed to open log file")
		}
		gin.DefaultWriter = io.MultiWriter(os.Stdout, fd)
		gin.DefaultErrorWriter = io.MultiWriter(os.Stderr, fd)
	})
}

// SetupEnhancedLogger tags every entry with the hostname and applies the configured level.
func SetupEnhancedLogger(_ context.Context) {
	hostname, err := os.Hostname()
	if err != nil {
		Logger.Panic("get hostname", zap.Error(err))
	}

	Logger = Logger.With(zap.String("host", hostname))

	if config.DebugEnabled {
		_ = Logger.ChangeLevel("debug")
		Logger.Info("running in debug mode")
	} else {
		_ = Logger.ChangeLevel("info")
	}
}
