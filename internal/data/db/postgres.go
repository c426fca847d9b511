package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/neurobridge-adaptive/internal/platform/envutil"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver        string
	SQLitePath    string
	Host          string
	Port          string
	User          string
	Password      string
	Name          string
	SSLMode       string
	SlowThreshold time.Duration
	AutoMigrate   bool
}

func ConfigFromEnv() Config {
	return Config{
		Driver:        strings.ToLower(envutil.String("STORE_DRIVER", DriverPostgres)),
		SQLitePath:    envutil.String("SQLITE_PATH", "adaptive.db"),
		Host:          envutil.String("POSTGRES_HOST", "localhost"),
		Port:          envutil.String("POSTGRES_PORT", "5432"),
		User:          envutil.String("POSTGRES_USER", "postgres"),
		Password:      envutil.String("POSTGRES_PASSWORD", ""),
		Name:          envutil.String("POSTGRES_NAME", "adaptive"),
		SSLMode:       envutil.String("POSTGRES_SSLMODE", "disable"),
		SlowThreshold: envutil.Seconds("POSTGRES_SLOW_QUERY_SECONDS", time.Second),
		AutoMigrate:   envutil.Bool("STORE_AUTO_MIGRATE", true),
	}
}

func (c Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
		c.SSLMode,
	)
}

type Service struct {
	db     *gorm.DB
	log    *logger.Logger
	driver string
}

// New opens the configured store and, unless disabled, migrates it.
func New(logg *logger.Logger, cfg Config) (*Service, error) {
	var (
		s   *Service
		err error
	)
	switch cfg.Driver {
	case DriverSQLite:
		s, err = NewSQLiteService(logg, cfg.SQLitePath)
	case DriverPostgres, "":
		s, err = NewPostgresService(logg, cfg)
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := AutoMigrateAll(s.db); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
		s.log.Info("schema migrated", "driver", s.driver)
	}
	return s, nil
}

func gormLog(slow time.Duration) gormLogger.Interface {
	if slow <= 0 {
		slow = time.Second
	}
	return gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             slow,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

func NewPostgresService(logg *logger.Logger, cfg Config) (*Service, error) {
	serviceLog := logg.With("service", "PostgresService")
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog(cfg.SlowThreshold),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	return &Service{db: db, log: serviceLog, driver: DriverPostgres}, nil
}

// NewSQLiteService opens a local file store. Use ":memory:" for a throwaway
// database; it is pinned to one connection so every query sees the same data.
func NewSQLiteService(logg *logger.Logger, path string) (*Service, error) {
	serviceLog := logg.With("service", "SQLiteService")
	if path == "" {
		path = ":memory:"
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog(time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return &Service{db: db, log: serviceLog, driver: DriverSQLite}, nil
}

func (s *Service) DB() *gorm.DB { return s.db }

func (s *Service) Driver() string { return s.driver }

func (s *Service) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
