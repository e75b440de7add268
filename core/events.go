package core

import "time"

// Tables whose writes are published as change events.
const (
	TableExamSessions    = "exam_sessions"
	TableExamAllocations = "exam_allocations"
	TableExamAttendance  = "exam_attendance"
	TableExamSeating     = "exam_seating"
)

const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// ChangeEvent tells subscribers that a committed write happened on Table.
type ChangeEvent struct {
	Table     string    `json:"table"`
	Op        string    `json:"op"`
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
}

// ChangePublisher is notified after every committed write.
type ChangePublisher interface {
	Publish(evt ChangeEvent)
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(ChangeEvent) {}
