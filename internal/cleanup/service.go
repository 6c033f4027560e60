package cleanup

import (
	"time"

	"github.com/matheuscascao/attendance-registry/internal/db/repository"

	log "github.com/sirupsen/logrus"
)

// Service handles the automatic cleanup of old attendance records.
type Service struct {
	repo          repository.AttendanceRepository
	retentionDays int
	checkInterval time.Duration
	stopChan      chan struct{}
}

// NewService creates a new cleanup service. Returns nil when cleanup is
// disabled (retention <= 0).
func NewService(repo repository.AttendanceRepository, retentionDays int, checkInterval time.Duration) *Service {
	if retentionDays <= 0 {
		log.Info("Automatic cleanup disabled (retention_days <= 0)")
		return nil
	}
	if repo == nil {
		log.Error("Cannot initialize cleanup service: repository is nil")
		return nil
	}
	log.Infof("Initializing cleanup service: retention=%dd, check interval=%s", retentionDays, checkInterval)
	return &Service{
		repo:          repo,
		retentionDays: retentionDays,
		checkInterval: checkInterval,
		stopChan:      make(chan struct{}),
	}
}

// StartBackgroundCleanup starts a goroutine that periodically runs the
// cleanup cycle.
func (s *Service) StartBackgroundCleanup() {
	if s == nil {
		return
	}
	log.Info("Starting background cleanup routine...")

	go func() {
		log.Info("Running initial cleanup check on startup...")
		s.RunCleanupCycle()
	}()

	ticker := time.NewTicker(s.checkInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.RunCleanupCycle()
			case <-s.stopChan:
				log.Info("Stopping background cleanup routine")
				return
			}
		}
	}()
}

// StopBackgroundCleanup signals the background routine to stop.
func (s *Service) StopBackgroundCleanup() {
	if s == nil || s.stopChan == nil {
		return
	}
	select {
	case <-s.stopChan:
		// already closed
	default:
		close(s.stopChan)
	}
}

// RunCleanupCycle deletes attendance records older than the retention
// period.
func (s *Service) RunCleanupCycle() {
	if s == nil || s.retentionDays <= 0 {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	deleted, err := s.repo.DeleteOlderThan(cutoff)
	if err != nil {
		log.Errorf("Cleanup: failed to delete old attendance records: %v", err)
		return
	}

	if deleted > 0 {
		log.Infof("Cleanup: deleted %d attendance record(s) older than %s", deleted, cutoff.Format(time.RFC3339))
	} else {
		log.Debug("Cleanup: no old attendance records found")
	}
}
