package common

import (
	"net/url"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	gosqlmysql "github.com/go-sql-driver/mysql"
)

// Dialect is the SQL flavour selected from a DSN.
type Dialect string

const (
	DialectSQLite     Dialect = "sqlite"
	DialectMySQL      Dialect = "mysql"
	DialectPostgreSQL Dialect = "postgres"
)

// DetectDialect picks the dialect from the DSN shape. An empty DSN means SQLite.
func DetectDialect(dsn string) Dialect {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	switch {
	case lower == "":
		return DialectSQLite
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DialectPostgreSQL
	case strings.HasPrefix(lower, "sqlite://"), strings.HasPrefix(lower, "file:"):
		return DialectSQLite
	default:
		return DialectMySQL
	}
}

// NormalizeMySQLDSN accepts either a go-sql-driver DSN or a mysql:// URL and
// returns a driver DSN with parseTime=true. loc defaults to UTC unless set.
func NormalizeMySQLDSN(dsn string) (string, error) {
	var (
		cfg *gosqlmysql.Config
		err error
	)
	if strings.HasPrefix(strings.ToLower(dsn), "mysql://") {
		cfg, err = mysqlConfigFromURL(dsn)
	} else {
		cfg, err = gosqlmysql.ParseDSN(dsn)
	}
	if err != nil {
		return "", errors.Wrap(err, "parse MySQL DSN")
	}

	cfg.ParseTime = true
	if !hasQueryOption(dsn, "loc") {
		cfg.Loc = time.UTC
	}

	return cfg.FormatDSN(), nil
}

func mysqlConfigFromURL(raw string) (*gosqlmysql.Config, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(err, "parse mysql:// URL")
	}
	if parsed.Host == "" {
		return nil, errors.New("mysql DSN missing host")
	}

	dsn := "tcp(" + parsed.Host + ")/" + strings.TrimPrefix(parsed.Path, "/")
	if parsed.User != nil {
		userInfo := parsed.User.Username()
		if pwd, ok := parsed.User.Password(); ok {
			userInfo += ":" + pwd
		}
		dsn = userInfo + "@" + dsn
	}
	if parsed.RawQuery != "" {
		dsn += "?" + parsed.RawQuery
	}

	return gosqlmysql.ParseDSN(dsn)
}

func hasQueryOption(dsn, key string) bool {
	idx := strings.Index(dsn, "?")
	if idx == -1 {
		return false
	}
	values, err := url.ParseQuery(dsn[idx+1:])
	if err != nil {
		return false
	}
	_, ok := values[key]
	return ok
}
