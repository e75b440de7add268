package testutil

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/gabrielfriasw/srf-escolas-sub000/core"
	"github.com/gabrielfriasw/srf-escolas-sub000/core/roster"
	"github.com/gabrielfriasw/srf-escolas-sub000/storage/database"
)

// PrepareDB returns a migrated in-memory sqlite database, closed when the test ends.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("PrepareDB() failed to open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed to migrate: %v", err)
	}
	return db
}

// NewConfig returns the configuration used by the tests, without reading the environment.
func NewConfig() *core.Config {
	conf := &core.Config{
		Env:      "TEST",
		AppName:  "SRF Escolas",
		TestMode: true,
	}
	conf.Server.Address = ":0"
	conf.Server.ReadTimeout = 5 * time.Second
	conf.Server.WriteTimeout = 5 * time.Second
	conf.Server.DisableReqLogs = true
	conf.Database.Engine = database.EngineMemory
	conf.Ensalamento.MaxTotal = 40
	conf.Ensalamento.MaxPerClass = 2
	conf.Ensalamento.GridRows = 6
	conf.Ensalamento.GridColumns = 6
	conf.Roster.CacheTTL = time.Minute
	conf.Notify.CountryCode = "55"
	return conf
}

// Students builds n students of className with roll numbers 1..n.
func Students(className string, n int) []roster.NewStudent {
	rows := make([]roster.NewStudent, 0, n)
	for i := 1; i <= n; i++ {
		rows = append(rows, roster.NewStudent{
			ClassName:  className,
			RollNumber: i,
			Name:       fmt.Sprintf("%s Student %02d", className, i),
		})
	}
	return rows
}

// CreateRoster imports rows and returns every class with its students, keyed by class name.
func CreateRoster(t *testing.T, repo roster.Repository, rows ...roster.NewStudent) map[string]roster.Class {
	t.Helper()
	ctx := context.Background()

	if _, err := repo.ImportStudents(ctx, rows); err != nil {
		t.Fatalf("CreateRoster() failed to import: %v", err)
	}
	classes, err := repo.QueryClasses(ctx)
	if err != nil {
		t.Fatalf("CreateRoster() failed to query classes: %v", err)
	}
	ids := make([]string, 0, len(classes))
	for _, c := range classes {
		ids = append(ids, c.ID)
	}
	full, err := repo.GetClassesWithStudents(ctx, ids)
	if err != nil {
		t.Fatalf("CreateRoster() failed to load students: %v", err)
	}

	byName := make(map[string]roster.Class, len(full))
	for _, c := range full {
		byName[c.Name] = c
	}
	return byName
}

// SeededShuffler shuffles deterministically.
type SeededShuffler struct {
	rnd *rand.Rand
}

func NewSeededShuffler(seed int64) *SeededShuffler {
	return &SeededShuffler{rnd: rand.New(rand.NewSource(seed))}
}

func (s *SeededShuffler) Shuffle(n int, swap func(i, j int)) { s.rnd.Shuffle(n, swap) }

// EventRecorder is a core.ChangePublisher keeping what it receives.
type EventRecorder struct {
	Events []core.ChangeEvent
}

func (r *EventRecorder) Publish(evt core.ChangeEvent) { r.Events = append(r.Events, evt) }

// Tables returns the tables of the recorded events, in order.
func (r *EventRecorder) Tables() []string {
	tables := make([]string, 0, len(r.Events))
	for _, evt := range r.Events {
		tables = append(tables, evt.Table)
	}
	return tables
}

func (r *EventRecorder) Reset() { r.Events = nil }
