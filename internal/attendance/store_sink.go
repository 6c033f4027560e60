package attendance

import (
	"github.com/matheuscascao/attendance-registry/internal/core/models"
	"github.com/matheuscascao/attendance-registry/internal/db/repository"

	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// StoreSink persists attendance events to the database.
type StoreSink struct {
	repo repository.AttendanceRepository
}

// NewStoreSink creates a sink backed by the attendance repository.
func NewStoreSink(repo repository.AttendanceRepository) *StoreSink {
	return &StoreSink{repo: repo}
}

// Publish writes the event as an attendance record.
func (s *StoreSink) Publish(event Event) error {
	record := &models.AttendanceRecord{
		EventID:      event.ID,
		IdentityCode: event.IdentityCode,
		DeviceID:     event.DeviceID,
		CapturedAt:   event.CapturedAt,
		Confidence:   event.Confidence,
		Provider:     event.Provider,
	}
	if len(event.Raw) > 0 {
		record.SourceData = datatypes.JSON(event.Raw)
	}

	if err := s.repo.Save(record); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"event_id":   event.ID,
		"identity":   event.IdentityCode,
		"confidence": event.Confidence,
	}).Info("Attendance record stored")
	return nil
}
