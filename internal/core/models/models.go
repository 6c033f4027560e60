package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AttendanceRecord is one accepted recognition, persisted for reporting.
type AttendanceRecord struct {
	gorm.Model
	EventID      string         `gorm:"uniqueIndex;not null"` // UUID assigned at acceptance time
	IdentityCode string         `gorm:"index;not null"`       // filename stem of the matched reference image
	DeviceID     string         `gorm:"index"`                // capture device that produced the frame
	CapturedAt   time.Time      `gorm:"index"`                // timestamp of the matched frame
	Confidence   float64        // similarity reported by the comparator, percent
	Provider     string         `gorm:"index"`                // comparator that produced the match
	SourceData   datatypes.JSON `gorm:"type:json;null"`       // raw comparator payload, if available
}

// AttendanceStatistics summarizes the stored attendance records.
type AttendanceStatistics struct {
	TotalRecords   int64     // all accepted recognitions
	IdentityCount  int64     // distinct identities seen
	LatestCapture  time.Time // timestamp of the most recent record
	RecordsToday   int64     // records captured since local midnight
	RecentRecords  []AttendanceRecord
}
