package repository

import (
	"errors"
	"time"

	"github.com/matheuscascao/attendance-registry/internal/core/models"

	"gorm.io/gorm"
)

// AttendanceRepository defines the database operations for attendance records.
type AttendanceRepository interface {
	Save(record *models.AttendanceRecord) error
	GetByEventID(eventID string) (*models.AttendanceRecord, error)
	GetRecords(limit, offset int) ([]models.AttendanceRecord, int64, error)
	GetRecordsByIdentity(identityCode string, limit, offset int) ([]models.AttendanceRecord, int64, error)
	DeleteOlderThan(cutoff time.Time) (int64, error)
	GetStatistics() (models.AttendanceStatistics, error)
}

// SQLiteRepository implements AttendanceRepository for SQLite.
type SQLiteRepository struct {
	db *gorm.DB
}

// NewSQLiteRepository creates a new SQLite repository instance.
func NewSQLiteRepository(db *gorm.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Save persists an attendance record.
func (r *SQLiteRepository) Save(record *models.AttendanceRecord) error {
	return r.db.Save(record).Error
}

// GetByEventID fetches a record by its event UUID. Returns nil when not found.
func (r *SQLiteRepository) GetByEventID(eventID string) (*models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	result := r.db.Where("event_id = ?", eventID).First(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &record, nil
}

// GetRecords fetches records with pagination, newest capture first.
func (r *SQLiteRepository) GetRecords(limit, offset int) ([]models.AttendanceRecord, int64, error) {
	var records []models.AttendanceRecord
	var total int64

	if err := r.db.Model(&models.AttendanceRecord{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	result := r.db.Order("captured_at DESC").Limit(limit).Offset(offset).Find(&records)
	if result.Error != nil {
		return nil, 0, result.Error
	}

	return records, total, nil
}

// GetRecordsByIdentity fetches records for one identity with pagination.
func (r *SQLiteRepository) GetRecordsByIdentity(identityCode string, limit, offset int) ([]models.AttendanceRecord, int64, error) {
	var records []models.AttendanceRecord
	var total int64

	query := r.db.Model(&models.AttendanceRecord{}).Where("identity_code = ?", identityCode)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	result := query.Order("captured_at DESC").Limit(limit).Offset(offset).Find(&records)
	if result.Error != nil {
		return nil, 0, result.Error
	}

	return records, total, nil
}

// DeleteOlderThan removes records created before the cutoff and
// returns the number of deleted rows.
func (r *SQLiteRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := r.db.Unscoped().Where("created_at < ?", cutoff).Delete(&models.AttendanceRecord{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// GetStatistics returns summary statistics over the stored records.
func (r *SQLiteRepository) GetStatistics() (models.AttendanceStatistics, error) {
	var stats models.AttendanceStatistics

	if err := r.db.Model(&models.AttendanceRecord{}).Count(&stats.TotalRecords).Error; err != nil {
		return stats, err
	}

	if err := r.db.Model(&models.AttendanceRecord{}).
		Distinct("identity_code").
		Count(&stats.IdentityCount).Error; err != nil {
		return stats, err
	}

	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if err := r.db.Model(&models.AttendanceRecord{}).
		Where("captured_at >= ?", midnight).
		Count(&stats.RecordsToday).Error; err != nil {
		return stats, err
	}

	var latest models.AttendanceRecord
	if err := r.db.Order("captured_at DESC").First(&latest).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return stats, err
		}
	} else {
		stats.LatestCapture = latest.CapturedAt
	}

	if err := r.db.Order("captured_at DESC").Limit(5).Find(&stats.RecentRecords).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return stats, err
		}
	}

	return stats, nil
}
