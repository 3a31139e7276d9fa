package database

import (
	"strings"

	"webcarros-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqlitePrefix = "sqlite:"

// Open opens a GORM DB from DSN. "sqlite:<path>" selects the embedded driver
// (local runs, ":memory:" in tests); anything else is a Postgres DSN.
// PreferSimpleProtocol disables prepared statement caching to avoid 42P05
// ("prepared statement already exists") behind PgBouncer-style poolers.
func Open(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	if strings.HasPrefix(dsn, sqlitePrefix) {
		return gorm.Open(sqlite.Open(strings.TrimPrefix(dsn, sqlitePrefix)), cfg)
	}
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), cfg)
}

// AutoMigrate runs migrations for users and the audit trail. Cars are
// migrated only when the SQL document store is in use.
func AutoMigrate(db *gorm.DB, withCars bool) error {
	models := []interface{}{&domain.User{}, &domain.CarEvent{}}
	if withCars {
		models = append(models, &domain.Car{})
	}
	return db.AutoMigrate(models...)
}

// Pinger adapts a gorm DB to the health DBPinger.
type Pinger struct {
	DB *gorm.DB
}

func (p *Pinger) Ping() error {
	if p == nil || p.DB == nil {
		return nil
	}
	sqlDB, err := p.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
