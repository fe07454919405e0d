package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Laisky/errors/v2"
	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/Laisky/zap"
	"golang.org/x/sync/errgroup"
)

// run executes every selected variant concurrently and renders the report.
func run(ctx context.Context, logger glog.Logger) error {
	cfg, err := loadConfig()
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	variantLabels := make([]string, 0, len(cfg.Variants))
	for _, v := range cfg.Variants {
		variantLabels = append(variantLabels, v.Header)
	}
	logger.Info("starting smoke run",
		zap.String("base_url", cfg.APIBase),
		zap.Strings("variants", variantLabels),
	)

	httpClient := &http.Client{Timeout: 180 * time.Second}
	var (
		mu      sync.Mutex
		results = make([]testResult, 0, len(cfg.Variants))
	)

	grp, grpCtx := errgroup.WithContext(ctx)
	for _, variant := range cfg.Variants {
		grp.Go(func() error {
			res := performRequest(grpCtx, httpClient, cfg.APIBase, variant)
			logResult(logger, res)

			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return errors.Wrap(err, "await variants")
	}

	rep := buildReport(cfg.Variants, results)
	renderReport(rep)

	if rep.failedCount > 0 {
		return errors.Errorf("%d of %d variants failed", rep.failedCount, rep.total)
	}
	return nil
}

func logResult(logger glog.Logger, res testResult) {
	switch {
	case res.Success:
		logger.Info("variant succeeded",
			zap.String("variant", res.Label),
			zap.Duration("duration", res.Duration),
			zap.Int("status", res.StatusCode))
	case res.Skipped:
		logger.Info("variant skipped",
			zap.String("variant", res.Label),
			zap.Int("status", res.StatusCode),
			zap.String("reason", res.ErrorReason))
	default:
		logger.Warn("variant failed",
			zap.String("variant", res.Label),
			zap.Duration("duration", res.Duration),
			zap.Int("status", res.StatusCode),
			zap.String("error", res.ErrorReason),
			zap.String("request_body", res.RequestBody),
			zap.String("response_body", res.ResponseBody))
	}
}
