package config

import (
	"strings"
	"time"

	"github.com/ierezell/ml-infra/common/env"
)

var (
	// ServerPort overrides the --port flag when running inside container or PaaS environments.
	ServerPort = strings.TrimSpace(env.String("PORT", ""))
	// GinMode allows forcing Gin into release mode (or other modes) without recompiling.
	GinMode = strings.TrimSpace(env.String("GIN_MODE", ""))

	// DebugEnabled toggles verbose structured logging when DEBUG=true.
	DebugEnabled = env.Bool("DEBUG", false)
	// DebugSQLEnabled toggles per-query SQL logging when DEBUG_SQL=true.
	DebugSQLEnabled = env.Bool("DEBUG_SQL", false)

	// OnlyOneLogFile writes every day into the same log file when true.
	OnlyOneLogFile = env.Bool("ONLY_ONE_LOG_FILE", false)
	// LogRetentionDays determines how many days logs are kept before the retention worker purges them (0 disables cleanup).
	LogRetentionDays = func() int {
		v := env.Int("LOG_RETENTION_DAYS", 0)
		if v < 0 {
			return 0
		}
		return v
	}()

	// AWSRegion is the region used by the S3 and SageMaker clients.
	AWSRegion = env.String("AWS_REGION", "us-east-1")
	// AWSAccessKeyID and AWSSecretAccessKey pin static credentials. When empty the default provider chain is used.
	AWSAccessKeyID     = env.String("AWS_ACCESS_KEY_ID", "")
	AWSSecretAccessKey = env.String("AWS_SECRET_ACCESS_KEY", "")
	// AWSEndpointURL overrides the service endpoint, e.g. for localstack or a MinIO gateway.
	AWSEndpointURL = strings.TrimSpace(env.String("AWS_ENDPOINT_URL", ""))

	// EndpointName is the SageMaker endpoint that receives asynchronous invocations.
	EndpointName = strings.TrimSpace(env.String("ENDPOINT_NAME", ""))
	// RealtimeEndpointName is the SageMaker endpoint used by the synchronous generation route. Empty disables it.
	RealtimeEndpointName = strings.TrimSpace(env.String("REALTIME_ENDPOINT_NAME", ""))

	// S3ForcePathStyle addresses buckets as path segments, required by most S3 compatible servers.
	S3ForcePathStyle = env.Bool("S3_FORCE_PATH_STYLE", false)
	// AsyncInvocationTTL is how long SageMaker keeps a queued async request before dropping it.
	AsyncInvocationTTL = env.Seconds("ASYNC_INVOCATION_TTL_SEC", time.Hour)

	// StoreBackend selects the object store: "s3" or "memory". The memory backend runs generation in-process.
	StoreBackend = strings.ToLower(strings.TrimSpace(env.String("STORE_BACKEND", "s3")))
	// InputBucket holds work descriptors written before each asynchronous invocation.
	InputBucket = strings.TrimSpace(env.String("INPUT_BUCKET", ""))
	// InputPrefix is the key prefix for work descriptors inside InputBucket.
	InputPrefix = strings.Trim(env.String("INPUT_PREFIX", "qgen/inputs"), "/")

	// PollInitialInterval is the first delay between result probes.
	PollInitialInterval = env.Millis("POLL_INITIAL_INTERVAL_MS", 250*time.Millisecond)
	// PollMaxInterval caps the delay between result probes.
	PollMaxInterval = env.Millis("POLL_MAX_INTERVAL_MS", 5*time.Second)
	// PollMultiplier is the exponential growth factor of the probe delay.
	PollMultiplier = env.Float64("POLL_MULTIPLIER", 2.0)
	// PollJitter is the relative jitter applied to every probe delay, in [0, 1).
	PollJitter = env.Float64("POLL_JITTER", 0.2)
	// PollDeadline bounds the wall-clock wait for a result, measured from submission.
	PollDeadline = env.Seconds("POLL_DEADLINE_SEC", 120*time.Second)

	// SyncBatchSize is the number of prompts sent per realtime invocation.
	SyncBatchSize = env.Int("SYNC_BATCH_SIZE", 16)
	// SyncConcurrency bounds concurrent realtime invocations for one request.
	SyncConcurrency = env.Int("SYNC_CONCURRENCY", 4)

	// SQLDSN provides the job record database DSN; empty indicates that SQLite should be used.
	SQLDSN = strings.TrimSpace(env.String("SQL_DSN", ""))
	// SQLitePath specifies the SQLite database file path when SQL_DSN is absent.
	SQLitePath = env.String("SQLITE_PATH", "ml-infra.db")
	// SQLiteBusyTimeout configures SQLite busy timeout in milliseconds to mitigate locking errors.
	SQLiteBusyTimeout = env.Int("SQLITE_BUSY_TIMEOUT", 3000)
	// SQLMaxIdleConns controls the database pool's idle connection count.
	SQLMaxIdleConns = env.Int("SQL_MAX_IDLE_CONNS", 20)
	// SQLMaxOpenConns controls the database pool's maximum open connections.
	SQLMaxOpenConns = env.Int("SQL_MAX_OPEN_CONNS", 200)
	// SQLMaxLifetime sets how long database connections live before being recycled.
	SQLMaxLifetime = env.Seconds("SQL_MAX_LIFETIME", 300*time.Second)
	// JobRetention is how long finished job records are kept. Zero disables the purge worker.
	JobRetention = time.Duration(env.Int("JOB_RETENTION_HOURS", 72)) * time.Hour

	// RedisConnString defines the Redis connection string; leaving it empty keeps results in process memory.
	RedisConnString = strings.TrimSpace(env.String("REDIS_CONN_STRING", ""))
	// RedisMasterName enables Redis sentinel discovery when provided.
	RedisMasterName = strings.TrimSpace(env.String("REDIS_MASTER_NAME", ""))
	// RedisPassword supplies the Redis authentication password when required.
	RedisPassword = env.String("REDIS_PASSWORD", "")
	// ResultCacheTTL is how long generated questions stay cached per job.
	ResultCacheTTL = env.Seconds("RESULT_CACHE_TTL_SEC", 600*time.Second)

	// EnablePrometheusMetrics exposes the /metrics endpoint for Prometheus scrapers when true.
	EnablePrometheusMetrics = env.Bool("ENABLE_PROMETHEUS_METRICS", true)

	// ShutdownTimeout bounds graceful shutdown of the HTTP server and in-flight polls.
	ShutdownTimeout = env.Seconds("SHUTDOWN_TIMEOUT", 60*time.Second)

	// SmokeAPIBase configures the base URL used by the cmd/smoke tester.
	SmokeAPIBase = strings.TrimSpace(env.String("API_BASE", "http://localhost:3000"))
	// SmokeVariants limits the cmd/smoke tester to a comma separated list of variants.
	SmokeVariants = strings.TrimSpace(env.String("SMOKE_VARIANTS", ""))
)
