package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v6"
	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ierezell/ml-infra/common"
	"github.com/ierezell/ml-infra/common/config"
	"github.com/ierezell/ml-infra/common/graceful"
	"github.com/ierezell/ml-infra/common/logger"
	"github.com/ierezell/ml-infra/controller"
	"github.com/ierezell/ml-infra/middleware"
	"github.com/ierezell/ml-infra/model"
	"github.com/ierezell/ml-infra/monitor"
	awsadaptor "github.com/ierezell/ml-infra/relay/adaptor/aws"
	"github.com/ierezell/ml-infra/relay/async"
	relaycontroller "github.com/ierezell/ml-infra/relay/controller"
	relaymodel "github.com/ierezell/ml-infra/relay/model"
	"github.com/ierezell/ml-infra/relay/storage"
	"github.com/ierezell/ml-infra/router"
)

const (
	localInputBucket  = "local-inputs"
	localOutputBucket = "local-outputs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	common.Init()
	logger.SetupLogger()
	logger.SetupEnhancedLogger(ctx)
	ctx = gmw.SetLogger(ctx, logger.Logger)

	logger.Logger.Info("ml-infra started", zap.String("store_backend", config.StoreBackend))

	if config.GinMode != gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	db, dialect, err := model.OpenDB(model.DBOptionsFromConfig())
	if err != nil {
		logger.Logger.Fatal("database init error", zap.Error(err))
	}
	defer func() {
		if err := model.CloseDB(db); err != nil {
			logger.Logger.Error("failed to close database", zap.Error(err))
		}
	}()
	jobs := model.NewJobStore(db, dialect)

	cache, closeCache := newResultCache(ctx)
	defer closeCache()

	backends, err := newBackends(ctx)
	if err != nil {
		logger.Logger.Fatal("failed to initialize compute backends", zap.Error(err))
	}

	deps := relaycontroller.Dependencies{
		Generator: backends.generator,
		Jobs:      jobs,
		Cache:     cache,
	}
	if backends.trigger != nil {
		deps.Submitter, err = async.NewSubmitter(backends.store, backends.trigger, async.SubmitterConfig{
			Bucket: backends.inputBucket,
			Prefix: config.InputPrefix,
		})
		if err != nil {
			logger.Logger.Fatal("invalid async submitter configuration", zap.Error(err))
		}
		deps.Poller = async.NewPoller(backends.store, async.PollerConfig{
			Backoff: async.BackoffConfig{
				Initial:    config.PollInitialInterval,
				Max:        config.PollMaxInterval,
				Multiplier: config.PollMultiplier,
				Jitter:     config.PollJitter,
			},
			Deadline: config.PollDeadline,
		}, jobs)
	} else {
		logger.Logger.Warn("async generation disabled, set ENDPOINT_NAME and INPUT_BUCKET to enable it")
	}
	if backends.generator == nil {
		logger.Logger.Warn("sync generation disabled, set REALTIME_ENDPOINT_NAME to enable it")
	}

	service, err := relaycontroller.NewQuestionService(deps, relaycontroller.ServiceConfig{
		Defaults:        relaymodel.DefaultDecodingConfig(),
		SyncBatchSize:   config.SyncBatchSize,
		SyncConcurrency: config.SyncConcurrency,
	})
	if err != nil {
		logger.Logger.Fatal("failed to build question service", zap.Error(err))
	}

	if config.EnablePrometheusMetrics {
		if err := monitor.InitPrometheusMonitoring(prometheus.DefaultRegisterer); err != nil {
			logger.Logger.Fatal("failed to initialize Prometheus monitoring", zap.Error(err))
		}
		logger.Logger.Info("Prometheus metrics endpoint available at /metrics")
	}

	logger.StartLogRetentionCleaner(ctx, config.LogRetentionDays, logger.LogDir)
	model.StartJobRetentionCleaner(ctx, jobs, config.JobRetention)

	logLevel := glog.LevelInfo
	if config.DebugEnabled {
		logLevel = glog.LevelDebug
	}

	server := gin.New()
	server.RedirectTrailingSlash = false
	server.Use(
		gin.Recovery(),
		gmw.NewLoggerMiddleware(
			gmw.WithLoggerMwColored(),
			gmw.WithLevel(logLevel.String()),
			gmw.WithLogger(logger.Logger.Named("gin")),
		),
	)
	server.Use(middleware.RequestId())
	server.Use(middleware.RequestTracker())
	if config.EnablePrometheusMetrics {
		server.Use(middleware.PrometheusMiddleware())
	}

	router.SetRouter(server, router.Handlers{
		Questions: controller.NewQuestionController(service),
		Health:    controller.NewHealthController(jobs, service.AsyncEnabled(), service.SyncEnabled()),
		Metrics:   config.EnablePrometheusMetrics,
	})

	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(*common.Port),
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Logger.Info("server started", zap.String("address", "http://localhost"+httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Logger.Fatal("failed to start HTTP server", zap.Error(err))
		}
	case <-ctx.Done():
	}

	stop()
	graceful.SetDraining()
	logger.Logger.Info("shutting down", zap.Int64("in_flight", graceful.InFlight()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error("http server shutdown", zap.Error(err))
	}
	if err := graceful.Drain(shutdownCtx); err != nil {
		logger.Logger.Error("background tasks did not finish", zap.Error(err))
	}
	logger.Logger.Info("server exited")
}

// backends are the object store and compute clients, built once at start-up.
type backends struct {
	store       storage.ObjectStore
	trigger     async.Trigger
	generator   async.Generator
	inputBucket string
}

func newBackends(ctx context.Context) (*backends, error) {
	switch config.StoreBackend {
	case "memory":
		store := storage.NewMemoryStore()
		generator := async.EchoGenerator{}
		logger.Logger.Info("using in-memory object store with loopback compute")
		return &backends{
			store:       store,
			trigger:     async.NewLoopbackTrigger(store, generator, localOutputBucket, config.InputPrefix),
			generator:   generator,
			inputBucket: localInputBucket,
		}, nil
	case "s3":
		awsCfg, err := awsadaptor.LoadConfig(ctx, awsadaptor.Options{
			Region:          config.AWSRegion,
			AccessKeyID:     config.AWSAccessKeyID,
			SecretAccessKey: config.AWSSecretAccessKey,
			EndpointURL:     config.AWSEndpointURL,
		})
		if err != nil {
			return nil, errors.WithStack(err)
		}

		b := &backends{
			store:       awsadaptor.NewS3Store(awsCfg, config.S3ForcePathStyle),
			inputBucket: config.InputBucket,
		}
		sagemaker := awsadaptor.NewSageMakerClient(awsCfg)
		if config.EndpointName != "" && config.InputBucket != "" {
			b.trigger, err = awsadaptor.NewAsyncInvoker(sagemaker, config.EndpointName,
				int(config.AsyncInvocationTTL/time.Second))
			if err != nil {
				return nil, errors.WithStack(err)
			}
			logger.Logger.Info("async generation enabled",
				zap.String("endpoint", config.EndpointName),
				zap.String("input_bucket", config.InputBucket))
		}
		if config.RealtimeEndpointName != "" {
			b.generator, err = awsadaptor.NewRealtimeGenerator(sagemaker, config.RealtimeEndpointName)
			if err != nil {
				return nil, errors.WithStack(err)
			}
			logger.Logger.Info("sync generation enabled", zap.String("endpoint", config.RealtimeEndpointName))
		}
		return b, nil
	default:
		return nil, errors.Errorf("unknown STORE_BACKEND %q, want s3 or memory", config.StoreBackend)
	}
}

func newResultCache(ctx context.Context) (relaycontroller.ResultCache, func()) {
	if config.RedisConnString == "" {
		logger.Logger.Info("result cache kept in process memory", zap.Duration("ttl", config.ResultCacheTTL))
		return model.NewMemoryResultCache(config.ResultCacheTTL), func() {}
	}

	client, err := common.NewRedisClient(ctx, common.RedisOptions{
		ConnString: config.RedisConnString,
		MasterName: config.RedisMasterName,
		Password:   config.RedisPassword,
	})
	if err != nil {
		logger.Logger.Fatal("failed to initialize Redis", zap.Error(err))
	}

	return model.NewRedisResultCache(client, config.ResultCacheTTL), func() {
		if err := client.Close(); err != nil {
			logger.Logger.Error("failed to close redis client", zap.Error(err))
		}
	}
}
