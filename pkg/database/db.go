package database

import (
	"fmt"
	"time"

	"github.com/arnavshah/rota-api-go/pkg/config"
	"github.com/arnavshah/rota-api-go/pkg/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// APIKey represents the api_keys table. Name holds the organization id the
// key was issued for. Keys are signed, not stored secrets, so revocation is a
// flag rather than a deleted row.
type APIKey struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Key        string     `gorm:"unique;not null" json:"-"`
	KeyPreview string     `json:"key_preview"`
	Name       string     `gorm:"not null;index" json:"name"`
	RateLimit  int        `gorm:"default:10000" json:"rate_limit"`
	Revoked    bool       `gorm:"not null;default:false" json:"revoked"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsed   *time.Time `json:"last_used"`
}

// APIUsage represents the api_usage table
type APIUsage struct {
	ID                 uint   `gorm:"primaryKey" json:"id"`
	KeyID              uint   `gorm:"uniqueIndex:idx_key_date;not null" json:"key_id"`
	Date               string `gorm:"uniqueIndex:idx_key_date;not null" json:"date"`
	RequestCount       int    `gorm:"default:0" json:"request_count"`
	SchedulesGenerated int    `gorm:"default:0" json:"schedules_generated"`
	StaffPlaced        int    `gorm:"default:0" json:"staff_placed"`
}

// MasterUser represents the master_users table
type MasterUser struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"unique;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// StaffRecord represents the staff table
type StaffRecord struct {
	ID               string                            `gorm:"primaryKey;size:64"`
	OrganizationID   string                            `gorm:"index;not null;size:64"`
	Name             string                            `gorm:"not null"`
	Role             string
	HourlyWage       float64
	PerformanceScore int
	Stations         []string                          `gorm:"serializer:json"`
	Availability     map[string]models.DayAvailability `gorm:"serializer:json"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ScheduleRecord represents the schedules table. Assignments is the flat
// date -> shift -> station id -> staff ids projection handed to consumers.
type ScheduleRecord struct {
	ID             string                                    `gorm:"primaryKey;size:64"`
	OrganizationID string                                    `gorm:"index;not null;size:64"`
	StartDate      string                                    `gorm:"size:10;not null"`
	EndDate        string                                    `gorm:"size:10;not null"`
	Comment        string
	Revision       int                                       `gorm:"not null;default:0"`
	Days           []models.ScheduleDay                      `gorm:"serializer:json"`
	Assignments    map[string]map[string]map[string][]string `gorm:"serializer:json"`
	TotalCost      float64
	TotalHours     float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Open connects to postgres when a DSN is configured and to sqlite otherwise
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}

	var db *gorm.DB
	var err error
	if cfg.DSN != "" {
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.DSN,
			PreferSimpleProtocol: true,
		}), gormCfg)
	} else {
		db, err = gorm.Open(sqlite.Open(cfg.SQLitePath), gormCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}
	return db, nil
}

// Migrate creates or updates every table
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&APIKey{}, &APIUsage{}, &MasterUser{}, &StaffRecord{}, &ScheduleRecord{}); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

// InitDB opens the database and migrates the schema
func InitDB(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	driver := "sqlite"
	if cfg.DSN != "" {
		driver = "postgres"
	}
	log.Info("database initialized", zap.String("driver", driver))
	return db, nil
}
