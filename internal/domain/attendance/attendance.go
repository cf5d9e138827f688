package attendance

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLate    = "late"
	StatusExcused = "excused"
)

func ValidStatus(s string) bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused:
		return true
	}
	return false
}

// Record is one student's attendance for one class on one date. Re-marking
// the same (class, student, date) overwrites the earlier record.
type Record struct {
	ID         string    `json:"id"`
	ClassID    string    `json:"classId"`
	StudentID  string    `json:"studentId"`
	Date       time.Time `json:"date"`
	Status     string    `json:"status"`
	Remark     string    `json:"remark,omitempty"`
	RecordedBy string    `json:"recordedBy"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

var (
	ErrNotFound       = errors.New("attendance record not found")
	ErrUnknownStudent = errors.New("student not enrolled")
	ErrInvalidStatus  = errors.New("invalid attendance status")
)

type MarkEntry struct {
	StudentID string `json:"studentId" binding:"required,uuid"`
	Status    string `json:"status" binding:"required,oneof=present absent late excused"`
	Remark    string `json:"remark" binding:"omitempty,max=200"`
}

// MarkRequest is the bulk payload for one class on one date.
type MarkRequest struct {
	ClassID string      `json:"-"`
	Date    string      `json:"date" binding:"required,datetime=2006-01-02"`
	Entries []MarkEntry `json:"entries" binding:"required,min=1,dive"`

	RecordedBy string `json:"-"`
}

// Records expands the request into one row per student. Status is checked
// here so callers that bypass HTTP binding get the same guarantee.
func (r MarkRequest) Records(date time.Time) ([]Record, error) {
	records := make([]Record, 0, len(r.Entries))

	for _, entry := range r.Entries {
		if !ValidStatus(entry.Status) {
			return nil, ErrInvalidStatus
		}

		records = append(records, NewRecord(r.ClassID, date, entry, r.RecordedBy))
	}

	return records, nil
}

// Summary aggregates one student's records over a date range.
type Summary struct {
	StudentID string `json:"studentId"`
	Present   int    `json:"present"`
	Absent    int    `json:"absent"`
	Late      int    `json:"late"`
	Excused   int    `json:"excused"`
	Total     int    `json:"total"`
}

func NewRecord(classID string, date time.Time, entry MarkEntry, recordedBy string) Record {
	now := time.Now().UTC()

	return Record{
		ID:         uuid.NewString(),
		ClassID:    classID,
		StudentID:  entry.StudentID,
		Date:       date,
		Status:     entry.Status,
		Remark:     entry.Remark,
		RecordedBy: recordedBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
