package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/eduforge/coursegen-backend/internal/platform/logger"
	"github.com/eduforge/coursegen-backend/internal/types"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewPostgresService(baseLog *logger.Logger) (*PostgresService, error) {
	serviceLog := baseLog.With("service", "PostgresService")

	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	user := getEnv("POSTGRES_USER", "postgres")
	password := getEnv("POSTGRES_PASSWORD", "")
	name := getEnv("POSTGRES_NAME", "coursegen")

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		user, password, host, port, name,
	)

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return nil, fmt.Errorf("failed to enable uuid-ossp extension: %w", err)
	}

	return &PostgresService{db: gdb, log: serviceLog}, nil
}

func (s *PostgresService) DB() *gorm.DB { return s.db }

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.Course{},
		&types.CourseModule{},
		&types.GenerationRun{},
	)
}

func EnsureRunIndexes(db *gorm.DB) error {
	// Claim-loop scan: claimable runs in arrival order.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_generation_runs_claimable
		ON generation_runs (status, created_at);
	`).Error; err != nil {
		return fmt.Errorf("create idx_generation_runs_claimable: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_generation_runs_course_created
		ON generation_runs (course_id, created_at DESC);
	`).Error; err != nil {
		return fmt.Errorf("create idx_generation_runs_course_created: %w", err)
	}
	return nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureRunIndexes(s.db); err != nil {
		s.log.Error("Run index migration failed", "error", err)
		return err
	}
	return nil
}
