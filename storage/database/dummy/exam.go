package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/gabrielfriasw/srf-escolas-sub000/core"
	"github.com/gabrielfriasw/srf-escolas-sub000/core/exam"
)

type examRepository struct {
	db *DB
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db *DB) exam.Repository {
	return &examRepository{db: db}
}

// join fills the roster fields of a; must be called with the lock held.
func (repo *examRepository) join(a exam.Allocation) exam.Allocation {
	if s, ok := repo.db.students[a.StudentID]; ok {
		a.StudentName = s.Name
		a.RollNumber = s.RollNumber
		a.GuardianPhone = s.GuardianPhone
	}
	if c, ok := repo.db.classes[a.OriginalClassID]; ok {
		a.ClassName = c.Name
	}
	if a.TempName != nil {
		name := *a.TempName
		a.TempName = &name
	}
	if a.TempNumber != nil {
		num := *a.TempNumber
		a.TempNumber = &num
	}
	return a
}

func (repo *examRepository) insertAllocations(sessionID string, allocs []exam.Allocation) ([]exam.Allocation, error) {
	seen := make(map[string]bool, len(allocs))
	for _, a := range allocs {
		if seen[a.StudentID] {
			return nil, exam.ErrDuplicateAllocation
		}
		seen[a.StudentID] = true
	}

	stored := make([]exam.Allocation, 0, len(allocs))
	rows := make([]*exam.Allocation, 0, len(allocs))
	for _, a := range allocs {
		a.ID = uuid.New().String()
		a.SessionID = sessionID
		row := a
		rows = append(rows, &row)
		stored = append(stored, a)
	}
	repo.db.allocations[sessionID] = rows
	return stored, nil
}

func (repo *examRepository) CreateSession(_ context.Context, sess exam.Session, _ ...core.DBExecutor) (exam.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sess.ID = uuid.New().String()
	row := sess
	repo.db.sessions[sess.ID] = &row
	return sess, nil
}

func (repo *examRepository) CreateSessionWithAllocations(_ context.Context, sess exam.Session, allocs []exam.Allocation, _ ...core.DBExecutor) (exam.Session, []exam.Allocation, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sess.ID = uuid.New().String()
	stored, err := repo.insertAllocations(sess.ID, allocs)
	if err != nil {
		return exam.Session{}, nil, err
	}
	row := sess
	repo.db.sessions[sess.ID] = &row
	return sess, stored, nil
}

func (repo *examRepository) GetSession(_ context.Context, id string, _ ...core.DBExecutor) (exam.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sess, ok := repo.db.sessions[id]; ok {
		return *sess, nil
	}
	return exam.Session{}, exam.ErrSessionNotFound
}

func sessionField(s exam.Session, field string) string {
	switch field {
	case "name":
		return s.Name
	case "date":
		return s.Date
	case "status":
		return string(s.Status)
	case "owner_id":
		return s.OwnerID
	case "created_at":
		return s.CreatedAt.Format(time.RFC3339Nano)
	case "updated_at":
		return s.UpdatedAt.Format(time.RFC3339Nano)
	}
	return s.ID
}

func (repo *examRepository) QuerySessions(_ context.Context, filter *exam.SessionFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]exam.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	sessions := make([]exam.Session, 0, len(repo.db.sessions))
	for _, s := range repo.db.sessions {
		if filter != nil {
			if filter.Date != "" && s.Date != filter.Date {
				continue
			}
			if filter.OwnerID != "" && s.OwnerID != filter.OwnerID {
				continue
			}
			if filter.Status != "" && s.Status != filter.Status {
				continue
			}
		}
		sessions = append(sessions, *s)
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "date"}, {Field: "created_at"}}
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		for _, ord := range ordering {
			a, b := sessionField(sessions[i], ord.Field), sessionField(sessions[j], ord.Field)
			if a == b {
				continue
			}
			if ord.Ascending {
				return a < b
			}
			return a > b
		}
		return sessions[i].ID < sessions[j].ID
	})
	return sessions, nil
}

func (repo *examRepository) UpdateSessionStatus(_ context.Context, id string, status exam.Status, updatedAt time.Time, _ ...core.DBExecutor) (exam.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sess, ok := repo.db.sessions[id]
	if !ok {
		return exam.Session{}, exam.ErrSessionNotFound
	}
	sess.Status = status
	sess.UpdatedAt = updatedAt.UTC()
	return *sess, nil
}

func (repo *examRepository) DeleteSession(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.sessions[id]; !ok {
		return exam.ErrSessionNotFound
	}
	delete(repo.db.sessions, id)
	delete(repo.db.allocations, id)
	delete(repo.db.attendance, id)
	delete(repo.db.seating, id)
	return nil
}

func (repo *examRepository) AllocatedStudentIDs(_ context.Context, date, excludeSessionID string, _ ...core.DBExecutor) (map[string]bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	allocated := make(map[string]bool)
	for id, sess := range repo.db.sessions {
		if sess.Date != date || id == excludeSessionID {
			continue
		}
		for _, a := range repo.db.allocations[id] {
			allocated[a.StudentID] = true
		}
	}
	return allocated, nil
}

func (repo *examRepository) ReplaceAllocations(_ context.Context, sessionID string, allocs []exam.Allocation, _ ...core.DBExecutor) ([]exam.Allocation, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.sessions[sessionID]; !ok {
		return nil, exam.ErrSessionNotFound
	}
	stored, err := repo.insertAllocations(sessionID, allocs)
	if err != nil {
		return nil, err
	}
	delete(repo.db.attendance, sessionID)
	delete(repo.db.seating, sessionID)
	return stored, nil
}

func (repo *examRepository) QueryAllocations(_ context.Context, sessionID string, _ ...core.DBExecutor) ([]exam.Allocation, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	allocs := make([]exam.Allocation, 0, len(repo.db.allocations[sessionID]))
	for _, a := range repo.db.allocations[sessionID] {
		allocs = append(allocs, repo.join(*a))
	}
	exam.SortAllocations(allocs)
	return allocs, nil
}

func (repo *examRepository) GetAllocation(_ context.Context, sessionID, studentID string, _ ...core.DBExecutor) (exam.Allocation, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, a := range repo.db.allocations[sessionID] {
		if a.StudentID == studentID {
			return repo.join(*a), nil
		}
	}
	return exam.Allocation{}, exam.ErrAllocationNotFound
}

func (repo *examRepository) UpdateAllocation(_ context.Context, alloc exam.Allocation, _ ...core.DBExecutor) (exam.Allocation, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, a := range repo.db.allocations[alloc.SessionID] {
		if a.StudentID == alloc.StudentID {
			cp := repo.join(alloc) // copies the pointers
			a.TempName, a.TempNumber = cp.TempName, cp.TempNumber
			return repo.join(*a), nil
		}
	}
	return exam.Allocation{}, exam.ErrAllocationNotFound
}

func (repo *examRepository) ReplaceAttendance(_ context.Context, sessionID, date string, records []exam.Attendance, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.sessions[sessionID]; !ok {
		return exam.ErrSessionNotFound
	}
	kept := make([]*exam.Attendance, 0, len(repo.db.attendance[sessionID])+len(records))
	for _, rec := range repo.db.attendance[sessionID] {
		if rec.Date != date {
			kept = append(kept, rec)
		}
	}
	for _, rec := range records {
		row := rec
		row.ID = uuid.New().String()
		row.SessionID = sessionID
		row.Date = date
		kept = append(kept, &row)
	}
	repo.db.attendance[sessionID] = kept
	return nil
}

func (repo *examRepository) QueryAttendance(_ context.Context, sessionID, date string, _ ...core.DBExecutor) ([]exam.Attendance, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	records := make([]exam.Attendance, 0)
	for _, rec := range repo.db.attendance[sessionID] {
		if rec.Date == date {
			records = append(records, *rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].StudentID < records[j].StudentID })
	return records, nil
}

func (repo *examRepository) ReplaceSeating(_ context.Context, sessionID string, seats []exam.Seating, _ ...core.DBExecutor) ([]exam.Seating, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.sessions[sessionID]; !ok {
		return nil, exam.ErrSessionNotFound
	}
	type cell struct{ x, y int }
	cells := make(map[cell]bool, len(seats))
	students := make(map[string]bool, len(seats))
	for _, s := range seats {
		if cells[cell{s.X, s.Y}] || students[s.StudentID] {
			return nil, core.NewConflictError("exam seating", "duplicate seat or student")
		}
		cells[cell{s.X, s.Y}] = true
		students[s.StudentID] = true
	}

	stored := make([]exam.Seating, 0, len(seats))
	rows := make([]*exam.Seating, 0, len(seats))
	for _, s := range seats {
		s.ID = uuid.New().String()
		s.SessionID = sessionID
		row := s
		rows = append(rows, &row)
		stored = append(stored, s)
	}
	repo.db.seating[sessionID] = rows
	return stored, nil
}

func (repo *examRepository) QuerySeating(_ context.Context, sessionID string, _ ...core.DBExecutor) ([]exam.Seating, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	seats := make([]exam.Seating, 0, len(repo.db.seating[sessionID]))
	for _, s := range repo.db.seating[sessionID] {
		seats = append(seats, *s)
	}
	sort.Slice(seats, func(i, j int) bool {
		if seats[i].Y != seats[j].Y {
			return seats[i].Y < seats[j].Y
		}
		return seats[i].X < seats[j].X
	})
	return seats, nil
}
