package dummydb

import (
	"context"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/gabrielfriasw/srf-escolas-sub000/core"
	"github.com/gabrielfriasw/srf-escolas-sub000/core/roster"
)

type rosterRepository struct {
	db *DB
}

var _ roster.Repository = (*rosterRepository)(nil) // interface compliance check

func NewRosterRepository(db *DB) roster.Repository {
	return &rosterRepository{db: db}
}

func (repo *rosterRepository) QueryClasses(_ context.Context, _ ...core.DBExecutor) ([]roster.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	classes := make([]roster.Class, 0, len(repo.db.classes))
	for _, c := range repo.db.classes {
		classes = append(classes, roster.Class{ID: c.ID, Name: c.Name})
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].Name < classes[j].Name })
	return classes, nil
}

// studentsOf must be called with the lock held.
func (repo *rosterRepository) studentsOf(classID string) []roster.Student {
	students := make([]roster.Student, 0)
	for _, s := range repo.db.students {
		if s.ClassID == classID {
			students = append(students, *s)
		}
	}
	sort.Slice(students, func(i, j int) bool {
		if students[i].RollNumber != students[j].RollNumber {
			return students[i].RollNumber < students[j].RollNumber
		}
		return students[i].ID < students[j].ID
	})
	return students
}

func (repo *rosterRepository) GetClassesWithStudents(_ context.Context, ids []string, _ ...core.DBExecutor) ([]roster.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	classes := make([]roster.Class, 0, len(ids))
	for _, id := range ids {
		c, ok := repo.db.classes[id]
		if !ok {
			return nil, roster.ErrClassNotFound
		}
		classes = append(classes, roster.Class{ID: c.ID, Name: c.Name, Students: repo.studentsOf(c.ID)})
	}
	return classes, nil
}

func (repo *rosterRepository) ImportStudents(_ context.Context, rows []roster.NewStudent, _ ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// validate everything first so a conflict leaves no trace
	classIDs := make(map[string]string)
	for _, c := range repo.db.classes {
		classIDs[c.Name] = c.ID
	}
	taken := make(map[string]bool)
	for _, s := range repo.db.students {
		taken[s.ClassID+"#"+strconv.Itoa(s.RollNumber)] = true
	}
	newClasses := make(map[string]string)
	for _, row := range rows {
		id, ok := classIDs[row.ClassName]
		if !ok {
			if id, ok = newClasses[row.ClassName]; !ok {
				id = uuid.New().String()
				newClasses[row.ClassName] = id
			}
		}
		key := id + "#" + strconv.Itoa(row.RollNumber)
		if taken[key] {
			return 0, roster.ErrStudentConflict
		}
		taken[key] = true
	}

	for name, id := range newClasses {
		repo.db.classes[id] = &roster.Class{ID: id, Name: name}
		classIDs[name] = id
	}
	for _, row := range rows {
		s := &roster.Student{
			ID:            uuid.New().String(),
			ClassID:       classIDs[row.ClassName],
			Name:          row.Name,
			RollNumber:    row.RollNumber,
			GuardianPhone: row.GuardianPhone,
		}
		repo.db.students[s.ID] = s
	}
	return len(rows), nil
}
