package exam

import (
	"time"

	"github.com/gabrielfriasw/srf-escolas-sub000/core"
)

// DateLayout is the calendar-date format used for sessions and attendance.
const DateLayout = "2006-01-02"

type Status string

// Statuses
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted}

func (s Status) IsValid() bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

type AttendanceStatus string

// Attendance statuses
const (
	Present AttendanceStatus = "present"
	Absent  AttendanceStatus = "absent"
	Late    AttendanceStatus = "late"
)

// Session is an exam session ("ensalamento") held on a calendar date.
type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Date      string    `json:"date"` // YYYY-MM-DD
	Status    Status    `json:"status"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Allocation places one student in a session. The student fields are joined from the roster.
type Allocation struct {
	ID              string  `json:"id"`
	SessionID       string  `json:"session_id"`
	StudentID       string  `json:"student_id"`
	OriginalClassID string  `json:"original_class_id"`
	TempName        *string `json:"temp_name"`
	TempNumber      *int    `json:"temp_number"`

	StudentName   string `json:"student_name"`
	RollNumber    int    `json:"roll_number"`
	ClassName     string `json:"class_name"`
	GuardianPhone string `json:"guardian_phone,omitempty"`
}

// DisplayName is the temp name if set, the student's name otherwise.
func (a Allocation) DisplayName() string {
	if a.TempName != nil && *a.TempName != "" {
		return *a.TempName
	}
	return a.StudentName
}

// DisplayNumber is the temp number if set, the roll number otherwise.
func (a Allocation) DisplayNumber() int {
	if a.TempNumber != nil {
		return *a.TempNumber
	}
	return a.RollNumber
}

type SessionDetails struct {
	Session
	Allocations []Allocation `json:"allocations"`
}

// NewSession contains information needed to create a new Session.
type NewSession struct {
	Name     string   `json:"name" validate:"required,notblank,max=255"`
	Date     string   `json:"date" validate:"required,datetime=2006-01-02"`
	OwnerID  string   `json:"owner_id" validate:"required,notblank,max=64"`
	ClassIDs []string `json:"class_ids" validate:"required,min=1,dive,required"`
}

func (ns *NewSession) Clean() {
	ns.Name = core.CleanString(ns.Name)
	ns.Date = core.CleanString(ns.Date)
	ns.OwnerID = core.CleanString(ns.OwnerID)
}

// AllocationUpdate changes the display overrides of an allocation.
// A nil field keeps the current value; an empty name or a zero number clears it.
type AllocationUpdate struct {
	TempName   *string `json:"temp_name" validate:"omitempty,max=255"`
	TempNumber *int    `json:"temp_number" validate:"omitempty,min=0"`
}

type SessionFilter struct {
	Date    string `json:"date" query:"date" validate:"omitempty,datetime=2006-01-02"`
	OwnerID string `json:"owner_id" query:"owner_id"`
	Status  Status `json:"status" query:"status" validate:"omitempty,sessionstatus"`
}

func (f *SessionFilter) Clean() {
	f.Date = core.CleanString(f.Date)
	f.OwnerID = core.CleanString(f.OwnerID)
	f.Status = Status(core.CleanString(string(f.Status), true /* lower */))
}

type AttendanceRecord struct {
	StudentID string           `json:"student_id" validate:"required"`
	Status    AttendanceStatus `json:"status" validate:"required,oneof=present absent late"`
}

type Attendance struct {
	ID        string           `json:"id"`
	SessionID string           `json:"session_id"`
	StudentID string           `json:"student_id"`
	Date      string           `json:"date"`
	Status    AttendanceStatus `json:"status"`
}

type SeatPlacement struct {
	StudentID string `json:"student_id" validate:"required"`
	X         int    `json:"x" validate:"min=0"`
	Y         int    `json:"y" validate:"min=0"`
}

type Seating struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	StudentID string `json:"student_id"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
}
