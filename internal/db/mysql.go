package db

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/tordrt/schemadrift/internal/errs"
)

// MySQL error numbers
// Full list: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errDBAccessDenied   = 1044
	errAccessDenied     = 1045
	errUnknownDatabase  = 1049
	errUnknownTable     = 1109
	errTableAccess      = 1142
	errNoSuchTable      = 1146
	errQueryInterrupted = 1317
	errQueryTimeout     = 3024
)

// ConnConfig describes how to reach the MySQL server.
type ConnConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string

	// ConnectTimeout bounds dialing and the initial ping. Zero means 10s.
	ConnectTimeout time.Duration

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN renders the go-sql-driver connection string. Credentials are escaped
// by the driver.
func (c ConnConfig) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	cfg.DBName = c.Database
	cfg.Timeout = c.connectTimeout()
	return cfg.FormatDSN()
}

func (c ConnConfig) connectTimeout() time.Duration {
	if c.ConnectTimeout <= 0 {
		return 10 * time.Second
	}
	return c.ConnectTimeout
}

// MySQLClient manages the connection to MySQL
type MySQLClient struct {
	db *sql.DB
}

// NewMySQLClient opens a connection pool and pings the server within the
// connect timeout.
func NewMySQLClient(ctx context.Context, cfg ConnConfig) (*MySQLClient, error) {
	if cfg.Database == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "database name is required")
	}

	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid DSN", err)
	}

	db.SetMaxOpenConns(orDefault(cfg.MaxOpenConns, 4))
	db.SetMaxIdleConns(orDefault(cfg.MaxIdleConns, 2))
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.connectTimeout())
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, mapMySQLError(err, "failed to ping database")
	}

	return &MySQLClient{db: db}, nil
}

// Close closes the database connection
func (c *MySQLClient) Close() error {
	return c.db.Close()
}

// GetDB returns the underlying database connection
func (c *MySQLClient) GetDB() *sql.DB {
	return c.db
}

// mapMySQLError converts a driver error into an *errs.Error.
func mapMySQLError(err error, msg string) *errs.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case errAccessDenied, errDBAccessDenied, errTableAccess:
			return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
		case errUnknownDatabase, errNoSuchTable, errUnknownTable:
			return errs.Wrap(errs.ErrKindNotFound, msg, err)
		case errQueryInterrupted, errQueryTimeout:
			return errs.Wrap(errs.ErrKindTimeout, msg, err)
		}
		return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return errs.Wrap(errs.ErrKindTimeout, msg, err)
		}
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}
	if errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, sql.ErrConnDone) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}
	return errs.Wrap(errs.ErrKindUnknown, msg, err)
}

// isMissingTable reports whether err is MySQL's "unknown table" for an
// information_schema view the server does not provide.
func isMissingTable(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == errUnknownTable || mysqlErr.Number == errNoSuchTable
	}
	return false
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
