package dummydb

import (
	"sync"

	"github.com/gabrielfriasw/srf-escolas-sub000/core/exam"
	"github.com/gabrielfriasw/srf-escolas-sub000/core/roster"
)

// DB is an in-memory database guarded by a single lock, so every repository call is atomic.
type DB struct {
	sync.RWMutex

	classes  map[string]*roster.Class // students are kept in the students table
	students map[string]*roster.Student

	sessions    map[string]*exam.Session
	allocations map[string][]*exam.Allocation // {session id: allocations}
	attendance  map[string][]*exam.Attendance  // {session id: records}
	seating     map[string][]*exam.Seating     // {session id: seats}
}

func Open() *DB {
	return &DB{
		classes:     make(map[string]*roster.Class),
		students:    make(map[string]*roster.Student),
		sessions:    make(map[string]*exam.Session),
		allocations: make(map[string][]*exam.Allocation),
		attendance:  make(map[string][]*exam.Attendance),
		seating:     make(map[string][]*exam.Seating),
	}
}
