package model

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ierezell/ml-infra/common"
	"github.com/ierezell/ml-infra/common/config"
	"github.com/ierezell/ml-infra/common/logger"
)

// DBOptions describes the job record database.
type DBOptions struct {
	DSN               string
	SQLitePath        string
	SQLiteBusyTimeout int
	MaxIdleConns      int
	MaxOpenConns      int
	MaxLifetime       time.Duration
	Debug             bool
}

// DBOptionsFromConfig reads DBOptions from the process configuration.
func DBOptionsFromConfig() DBOptions {
	return DBOptions{
		DSN:               config.SQLDSN,
		SQLitePath:        config.SQLitePath,
		SQLiteBusyTimeout: config.SQLiteBusyTimeout,
		MaxIdleConns:      config.SQLMaxIdleConns,
		MaxOpenConns:      config.SQLMaxOpenConns,
		MaxLifetime:       config.SQLMaxLifetime,
		Debug:             config.DebugSQLEnabled,
	}
}

// OpenDB connects to the database selected by opts.DSN, configures the pool
// and migrates the schema.
func OpenDB(opts DBOptions) (*gorm.DB, common.Dialect, error) {
	dialect := common.DetectDialect(opts.DSN)
	db, err := chooseDB(dialect, opts)
	if err != nil {
		return nil, dialect, errors.Wrapf(err, "open %s database", dialect)
	}

	if opts.Debug {
		logger.Logger.Debug("debug sql enabled")
		db = db.Debug()
	}

	if _, err := setDBConns(db, opts); err != nil {
		return nil, dialect, errors.WithStack(err)
	}

	logger.Logger.Info("database migration started")
	if err := Migrate(db); err != nil {
		return nil, dialect, errors.WithStack(err)
	}
	logger.Logger.Info("database migration completed")

	return db, dialect, nil
}

func chooseDB(dialect common.Dialect, opts DBOptions) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
	}

	switch dialect {
	case common.DialectPostgreSQL:
		logger.Logger.Info("using PostgreSQL as database")
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  opts.DSN,
			PreferSimpleProtocol: true,
		}), gormCfg)
	case common.DialectMySQL:
		logger.Logger.Info("using MySQL as database")
		normalized, err := common.NormalizeMySQLDSN(opts.DSN)
		if err != nil {
			return nil, errors.Wrap(err, "normalize MySQL DSN")
		}
		return gorm.Open(mysql.Open(normalized), gormCfg)
	default:
		path := opts.DSN
		if path == "" {
			path = opts.SQLitePath
		}
		logger.Logger.Info("using SQLite as database", zap.String("path", path))
		return gorm.Open(sqlite.Open(sqliteDSN(path, opts.SQLiteBusyTimeout)), gormCfg)
	}
}

func sqliteDSN(path string, busyTimeout int) string {
	sep := "?"
	for _, c := range path {
		if c == '?' {
			sep = "&"
			break
		}
	}
	return fmt.Sprintf("%s%s_busy_timeout=%d", path, sep, busyTimeout)
}

// Migrate creates or updates every table owned by this package.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Job{}); err != nil {
		return errors.Wrap(err, "failed to migrate Job")
	}
	return nil
}

func setDBConns(db *gorm.DB, opts DBOptions) (*sql.DB, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get sql.DB")
	}

	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.MaxLifetime)
	}

	logger.Logger.Info("database connection pool configured",
		zap.Int("max_idle_conns", opts.MaxIdleConns),
		zap.Int("max_open_conns", opts.MaxOpenConns),
		zap.Duration("max_lifetime", opts.MaxLifetime))
	return sqlDB, nil
}

// CloseDB closes the underlying connection pool.
func CloseDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(sqlDB.Close())
}
