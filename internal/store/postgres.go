package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"idscan/internal/logger"
	"idscan/pkg/models"
)

// IdentityRecord is one row per user in the aadhar_data table.
type IdentityRecord struct {
	UserID       string `gorm:"primaryKey;size:128"`
	Name         string `gorm:"size:256"`
	DOB          string `gorm:"size:16"`
	Gender       string `gorm:"size:8"`
	AadharNumber string `gorm:"size:12;index"`
	VID          string `gorm:"size:16"`
	IssueDate    string `gorm:"size:16"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (IdentityRecord) TableName() string { return "aadhar_data" }

// columns maps record keys to table columns.
var columns = map[string]string{
	models.FieldName:         "name",
	models.FieldDOB:          "dob",
	models.FieldGender:       "gender",
	models.FieldAadharNumber: "aadhar_number",
	models.FieldVID:          "vid",
	models.FieldIssueDate:    "issue_date",
}

// PostgresStore keeps records in Postgres through GORM.
type PostgresStore struct {
	db  *gorm.DB
	log zerolog.Logger
}

// NewPostgresStore connects to dsn and migrates the aadhar_data table.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	const op = "NewPostgresStore"

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("%s: connection to db failed: %w", op, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get db from GORM: %w", op, err)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.WithContext(ctx).AutoMigrate(&IdentityRecord{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("%s: migration failed: %w", op, err)
	}

	return NewPostgresStoreFromDB(db), nil
}

// NewPostgresStoreFromDB wraps an open, migrated connection.
func NewPostgresStoreFromDB(db *gorm.DB) *PostgresStore {
	return &PostgresStore{
		db:  db,
		log: logger.WithComponent("store").With().Str("driver", DriverPostgres).Logger(),
	}
}

// Merge implements Store as an upsert that only assigns the columns present
// in record. Keys without a column are ignored.
func (s *PostgresStore) Merge(ctx context.Context, id string, record map[string]string) error {
	const op = "Merge"

	if id == "" {
		return fmt.Errorf("%s: %w", op, ErrEmptyID)
	}

	row, assign, ignored := toIdentityRecord(id, record)
	if len(ignored) > 0 {
		s.log.Warn().Strs("keys", ignored).Msg("Ignoring keys without a column")
	}

	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns(append(assign, "updated_at")),
	}
	if err := s.db.WithContext(ctx).Clauses(onConflict).Create(&row).Error; err != nil {
		return fmt.Errorf("%s: failed to upsert user %s: %w", op, id, err)
	}

	s.log.Debug().Str("user_id", id).Strs("columns", assign).Msg("Record merged")
	return nil
}

// Get implements Store. All six keys are returned, empty when never written.
func (s *PostgresStore) Get(ctx context.Context, id string) (map[string]string, error) {
	const op = "Get"

	var row IdentityRecord
	err := s.db.WithContext(ctx).First(&row, "user_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load user %s: %w", op, id, err)
	}
	return row.Result().Map(), nil
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Result converts the row back to an extraction result.
func (r IdentityRecord) Result() models.ExtractionResult {
	return models.ExtractionResult{
		Name:         r.Name,
		DOB:          r.DOB,
		Gender:       r.Gender,
		AadharNumber: r.AadharNumber,
		VID:          r.VID,
		IssueDate:    r.IssueDate,
	}
}

// toIdentityRecord builds the row to insert and the sorted list of columns to
// assign on conflict.
func toIdentityRecord(id string, record map[string]string) (IdentityRecord, []string, []string) {
	var res models.ExtractionResult
	var assign, ignored []string
	for k, v := range record {
		col, ok := columns[k]
		if !ok {
			ignored = append(ignored, k)
			continue
		}
		res.Set(k, v)
		assign = append(assign, col)
	}
	sort.Strings(assign)
	sort.Strings(ignored)

	return IdentityRecord{
		UserID:       id,
		Name:         res.Name,
		DOB:          res.DOB,
		Gender:       res.Gender,
		AadharNumber: res.AadharNumber,
		VID:          res.VID,
		IssueDate:    res.IssueDate,
	}, assign, ignored
}
