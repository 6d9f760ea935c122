package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Syntia28/nikos/pkg/config"
	"github.com/Syntia28/nikos/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Client is the GORM connection under the SQL document store.
type Client struct {
	conn   *gorm.DB
	driver string
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// New opens postgres or sqlite, applies pool limits and routes slow statements
// to logg.
func New(ctx context.Context, driver string, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database DSN is required")
	}
	dialector, err := dialectorFor(driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if logg == nil {
		logg = logger.Nop()
	}
	ctx = logg.WithField(ctx, "driver", driver)

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 queryLogger(ctx, logg, cfg.SlowQueryThreshold),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening db connection: %w", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	applyPool(sqlDB, cfg)

	logg.Info(ctx, "database connection established")
	return &Client{conn: conn, driver: driver}, nil
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case config.DocStorePostgres:
		return postgres.New(postgres.Config{DSN: dsn, PreferSimpleProtocol: true}), nil
	case config.DocStoreSQLite:
		return sqlite.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported sql driver %q", driver)
}

// FromGorm wraps an existing connection; tests use it with in-memory sqlite.
func FromGorm(conn *gorm.DB, driver string) *Client {
	return &Client{conn: conn, driver: driver}
}

func applyPool(sqlDB *sql.DB, cfg config.DBConfig) {
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}

func (c *Client) DB() *gorm.DB {
	return c.conn
}

// Driver is config.DocStorePostgres or config.DocStoreSQLite.
func (c *Client) Driver() string {
	return c.driver
}

// SQL returns the pooled database/sql handle goose migrates through.
func (c *Client) SQL() (*sql.DB, error) {
	return c.conn.DB()
}

func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *Client) Close() error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn in one transaction, rolled back on error or panic. Postgres
// transactions are SERIALIZABLE so two checkouts reading the same stock cannot
// both commit; the loser fails with SQLSTATE 40001.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.conn.WithContext(ctx).Transaction(fn, c.txOptions()...)
}

func (c *Client) txOptions() []*sql.TxOptions {
	if c.driver == config.DocStorePostgres {
		return []*sql.TxOptions{{Isolation: sql.LevelSerializable}}
	}
	return nil
}

// queryLogger reports slow statements and driver errors through logg. Record
// not found is routine for FindByID and is not logged.
func queryLogger(ctx context.Context, logg *logger.Logger, slow time.Duration) gormlogger.Interface {
	level := gormlogger.Warn
	if slow <= 0 {
		level = gormlogger.Error
	}
	return gormlogger.New(printer{ctx: ctx, logg: logg}, gormlogger.Config{
		SlowThreshold:             slow,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		ParameterizedQueries:      true,
	})
}

// printer adapts gorm's Printf-style writer to the structured logger.
type printer struct {
	ctx  context.Context
	logg *logger.Logger
}

func (p printer) Printf(format string, args ...any) {
	p.logg.Warn(p.ctx, fmt.Sprintf(format, args...))
}
