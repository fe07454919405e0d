package common

import (
	"flag"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Laisky/zap"

	"github.com/ierezell/ml-infra/common/config"
	"github.com/ierezell/ml-infra/common/logger"
)

var (
	Port   = flag.Int("port", 3000, "the listening port")
	LogDir = flag.String("log-dir", "", "specify the log directory, empty logs to stdout only")
)

// Init parses flags, applies the PORT override and prepares the log directory.
func Init() {
	flag.Parse()

	if config.ServerPort != "" {
		if p, err := strconv.Atoi(config.ServerPort); err == nil && p > 0 {
			*Port = p
		} else {
			logger.Logger.Warn("ignore invalid PORT", zap.String("port", config.ServerPort))
		}
	}

	if *LogDir == "" {
		return
	}

	expanded := expandLogDirPath(*LogDir)
	lg := logger.Logger.With(zap.String("log_dir", expanded))

	var err error
	expanded, err = filepath.Abs(expanded)
	if err != nil {
		lg.Fatal("failed to get absolute log dir", zap.Error(err))
	}
	if err = os.MkdirAll(expanded, 0o755); err != nil {
		lg.Fatal("failed to create log dir", zap.Error(err))
	}

	lg.Info("set log dir", zap.String("log_dir", expanded))
	logger.LogDir = expanded
	*LogDir = expanded
}
