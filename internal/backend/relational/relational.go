// Package relational is the SQL-backed Backend implementation: a
// generic kv_entries/kv_logs schema on top of GORM, grounded wholesale
// on the teacher's internal/db/db.go (embedded migrations via iofs,
// sql.Open("sqlite", dsn) handed to GORM, SetMaxOpenConns(1) for
// sqlite, pooled settings for postgres).
package relational

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	// modernc pure-Go SQLite driver, registers itself as "sqlite".
	_ "modernc.org/sqlite"

	"github.com/masc-dev/masc/internal/backend"
)

//go:embed migrations/sqlite/*.sql
var sqliteMigrations embed.FS

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

// Config configures the relational Backend.
type Config struct {
	Driver   string // "sqlite" or "postgres"
	DSN      string
	Logger   *zap.Logger
	LogLevel gormlogger.LogLevel
}

// Backend stores keys in a kv_entries table and append-only logs in a
// kv_logs table, via GORM.
type Backend struct {
	db     *gorm.DB
	driver string

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

type kvEntry struct {
	Scope   string `gorm:"column:scope"`
	Key     string `gorm:"column:key;primaryKey"`
	Value   string `gorm:"column:value"`
	Version int64  `gorm:"column:version"`
}

func (kvEntry) TableName() string { return "kv_entries" }

type kvLog struct {
	ID     int64  `gorm:"column:id;primaryKey"`
	LogKey string `gorm:"column:log_key"`
	Line   string `gorm:"column:line"`
}

func (kvLog) TableName() string { return "kv_logs" }

// New opens the database connection, applies pending migrations, and
// returns a ready-to-use Backend.
func New(cfg Config) (*Backend, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("relational: logger is required")
	}

	gormCfg := &gorm.Config{Logger: newZapGORMLogger(cfg.Logger, cfg.LogLevel)}

	var (
		database *gorm.DB
		sqlDB    *sql.DB
		err      error
	)

	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite"
	}

	switch driver {
	case "sqlite":
		sqlDB, err = sql.Open("sqlite", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("relational: open sqlite: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)

		database, err = gorm.Open(gormsqlite.Dialector{Conn: sqlDB}, gormCfg)
		if err != nil {
			return nil, fmt.Errorf("relational: gorm sqlite: %w", err)
		}

	case "postgres":
		database, err = gorm.Open(gormpostgres.Open(cfg.DSN), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("relational: gorm postgres: %w", err)
		}
		sqlDB, err = database.DB()
		if err != nil {
			return nil, fmt.Errorf("relational: sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)

	default:
		return nil, fmt.Errorf("relational: unsupported driver %q", driver)
	}

	if err := runMigrations(sqlDB, driver, cfg.Logger); err != nil {
		return nil, fmt.Errorf("relational: migrations: %w", err)
	}

	return &Backend{db: database, driver: driver, locks: make(map[string]*sync.Mutex)}, nil
}

func runMigrations(sqlDB *sql.DB, driver string, log *zap.Logger) error {
	var (
		src interface {
			Close() error
		}
		m   *migrate.Migrate
		err error
	)

	switch driver {
	case "sqlite":
		fsSrc, ierr := iofs.New(sqliteMigrations, "migrations/sqlite")
		if ierr != nil {
			return fmt.Errorf("migration source: %w", ierr)
		}
		src = fsSrc
		drv, derr := migratesqlite.WithInstance(sqlDB, &migratesqlite.Config{})
		if derr != nil {
			return fmt.Errorf("sqlite migrate driver: %w", derr)
		}
		m, err = migrate.NewWithInstance("iofs", fsSrc, "sqlite", drv)

	case "postgres":
		fsSrc, ierr := iofs.New(postgresMigrations, "migrations/postgres")
		if ierr != nil {
			return fmt.Errorf("migration source: %w", ierr)
		}
		src = fsSrc
		drv, derr := migratepg.WithInstance(sqlDB, &migratepg.Config{})
		if derr != nil {
			return fmt.Errorf("postgres migrate driver: %w", derr)
		}
		m, err = migrate.NewWithInstance("iofs", fsSrc, "postgres", drv)
	}
	if err != nil {
		return fmt.Errorf("migrator: %w", err)
	}
	defer src.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply: %w", err)
	}
	log.Info("relational backend migrations applied")
	return nil
}

func (b *Backend) Get(ctx context.Context, key string) (string, error) {
	var row kvEntry
	err := b.db.WithContext(ctx).Where("key = ?", key).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", backend.NewError(backend.KindNotFound, "get", key, nil)
		}
		return "", backend.NewError(backend.KindTransient, "get", key, err)
	}
	return row.Value, nil
}

func (b *Backend) Set(ctx context.Context, key, value string) error {
	return wrapTransient(b.upsert(ctx, key, value, 0), "set", key)
}

func (b *Backend) upsert(ctx context.Context, key, value string, version int64) error {
	switch b.driver {
	case "postgres":
		return b.db.WithContext(ctx).Exec(
			`INSERT INTO kv_entries (scope, key, value, version) VALUES ('', ?, ?, ?)
			 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, version = EXCLUDED.version`,
			key, value, version,
		).Error
	default:
		return b.db.WithContext(ctx).Exec(
			`INSERT INTO kv_entries (scope, key, value, version) VALUES ('', ?, ?, ?)
			 ON CONFLICT (key) DO UPDATE SET value = excluded.value, version = excluded.version`,
			key, value, version,
		).Error
	}
}

// CAS is a single guarded statement, not a read-then-write: the
// comparison and the write happen inside one SQL round trip so two
// processes racing the same key can never both observe a match. When
// expected is empty ("create if absent") it inserts and relies on the
// key's primary-key conflict to reject a concurrent winner; otherwise
// it updates only the row whose current value still equals expected
// and checks RowsAffected to detect a concurrent writer that already
// moved it.
func (b *Backend) CAS(ctx context.Context, key, expected, newValue string) error {
	if expected == "" {
		res := b.db.WithContext(ctx).Exec(
			`INSERT INTO kv_entries (scope, key, value, version) VALUES ('', ?, ?, 0)
			 ON CONFLICT (key) DO NOTHING`,
			key, newValue,
		)
		if res.Error != nil {
			return backend.NewError(backend.KindTransient, "cas", key, res.Error)
		}
		if res.RowsAffected == 0 {
			return backend.NewError(backend.KindConflict, "cas", key, nil)
		}
		return nil
	}

	res := b.db.WithContext(ctx).Exec(
		`UPDATE kv_entries SET value = ?, version = version + 1 WHERE key = ? AND value = ?`,
		newValue, key, expected,
	)
	if res.Error != nil {
		return backend.NewError(backend.KindTransient, "cas", key, res.Error)
	}
	if res.RowsAffected == 0 {
		return backend.NewError(backend.KindConflict, "cas", key, nil)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := b.db.WithContext(ctx).Where("key = ?", key).Delete(&kvEntry{}).Error; err != nil {
		return wrapTransient(err, "delete", key)
	}
	err := b.db.WithContext(ctx).Where("log_key = ?", key).Delete(&kvLog{}).Error
	return wrapTransient(err, "delete", key)
}

func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	var rows []kvEntry
	err := b.db.WithContext(ctx).
		Where("key LIKE ?", escapeLike(prefix)+"%").
		Select("key").
		Find(&rows).Error
	if err != nil {
		return nil, backend.NewError(backend.KindTransient, "list", prefix, err)
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Key)
	}
	return out, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}

func (b *Backend) Append(ctx context.Context, logKey, line string) error {
	err := b.db.WithContext(ctx).Create(&kvLog{LogKey: logKey, Line: line}).Error
	return wrapTransient(err, "append", logKey)
}

func (b *Backend) ReadLog(ctx context.Context, logKey string) ([]string, error) {
	var rows []kvLog
	err := b.db.WithContext(ctx).Where("log_key = ?", logKey).Order("id asc").Find(&rows).Error
	if err != nil {
		return nil, backend.NewError(backend.KindTransient, "read_log", logKey, err)
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Line)
	}
	return out, nil
}

type guard struct{ mu *sync.Mutex }

func (g *guard) Release(_ context.Context) error {
	g.mu.Unlock()
	return nil
}

// Lock is process-local only: it serializes goroutines within this
// mascd instance but does not reach across processes sharing the same
// database. Cross-instance coordination for single-key updates comes
// from CAS's guarded UPDATE/INSERT statement, not from Lock — callers
// that need a cross-process critical section spanning more than one
// key still depend on CAS-based retry loops rather than this Guard.
func (b *Backend) Lock(ctx context.Context, scope string) (backend.Guard, error) {
	b.locksMu.Lock()
	mu, ok := b.locks[scope]
	if !ok {
		mu = &sync.Mutex{}
		b.locks[scope] = mu
	}
	b.locksMu.Unlock()

	done := make(chan struct{})
	go func() {
		mu.Lock()
		close(done)
	}()
	select {
	case <-done:
		return &guard{mu: mu}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Backend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func wrapTransient(err error, op, key string) error {
	if err == nil {
		return nil
	}
	return backend.NewError(backend.KindTransient, op, key, err)
}
