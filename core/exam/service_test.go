package exam_test

import (
	"context"
	"net/mail"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielfriasw/srf-escolas-sub000/core"
	"github.com/gabrielfriasw/srf-escolas-sub000/core/exam"
	"github.com/gabrielfriasw/srf-escolas-sub000/core/roster"
	dummydb "github.com/gabrielfriasw/srf-escolas-sub000/storage/database/dummy"
	"github.com/gabrielfriasw/srf-escolas-sub000/tests"
)

const examDate = "2024-03-01"

type fixture struct {
	svc     *exam.Service
	repo    exam.Repository
	classes map[string]roster.Class
	events  *testutil.EventRecorder
	mailer  *recordingMailer
}

type recordingMailer struct {
	sent []*core.EmailMessage
}

func (m *recordingMailer) SendMessages(messages ...*core.EmailMessage) {
	m.sent = append(m.sent, messages...)
}

func setup(t *testing.T, rows ...roster.NewStudent) *fixture {
	db := dummydb.Open()
	rosterRepo := dummydb.NewRosterRepository(db)
	f := &fixture{
		repo:   dummydb.NewExamRepository(db),
		events: &testutil.EventRecorder{},
		mailer: &recordingMailer{},
	}
	if len(rows) > 0 {
		f.classes = testutil.CreateRoster(t, rosterRepo, rows...)
	}

	validate, translator := core.NewValidator()
	exam.InitValidators(validate, translator)
	f.svc = exam.NewService(exam.ServiceDeps{
		Repo:      f.repo,
		Classes:   roster.NewService(rosterRepo, validate),
		Validate:  validate,
		Publisher: f.events,
		Mailer:    f.mailer,
		Shuffler:  testutil.NewSeededShuffler(1),
	})
	return f
}

func (f *fixture) classIDs(names ...string) []string {
	ids := make([]string, 0, len(names))
	for _, n := range names {
		ids = append(ids, f.classes[n].ID)
	}
	return ids
}

func newSession(name string, classIDs ...string) exam.NewSession {
	return exam.NewSession{Name: name, Date: examDate, OwnerID: "teacher-1", ClassIDs: classIDs}
}

func defaultRoster() []roster.NewStudent {
	var rows []roster.NewStudent
	rows = append(rows, testutil.Students("9A", 5)...)
	rows = append(rows, testutil.Students("9B", 3)...)
	rows = append(rows, testutil.Students("9C", 1)...)
	return rows
}

func studentIDs(allocs []exam.Allocation) []string {
	ids := make([]string, 0, len(allocs))
	for _, a := range allocs {
		ids = append(ids, a.StudentID)
	}
	return ids
}

func TestService_CreateAndDistribute(t *testing.T) {
	f := setup(t, defaultRoster()...)
	ctx := context.Background()

	details, err := f.svc.CreateAndDistribute(ctx, newSession(" Prova de Matemática ", f.classIDs("9A", "9B", "9C")...))
	require.NoError(t, err)

	assert.NotEmpty(t, details.ID)
	assert.Equal(t, "Prova de Matemática", details.Name)
	assert.Equal(t, exam.StatusPending, details.Status)
	assert.Len(t, details.Allocations, 5)

	perClass := make(map[string]int)
	for i, a := range details.Allocations {
		perClass[a.ClassName]++
		assert.Equal(t, details.ID, a.SessionID)
		assert.Equal(t, f.classes[a.ClassName].ID, a.OriginalClassID)
		if i > 0 {
			prev := details.Allocations[i-1]
			assert.True(t, prev.ClassName < a.ClassName || (prev.ClassName == a.ClassName && prev.RollNumber < a.RollNumber),
				"allocations out of order at %d", i)
		}
	}
	assert.Equal(t, map[string]int{"9A": 2, "9B": 2, "9C": 1}, perClass)
	assert.Equal(t, []string{core.TableExamSessions, core.TableExamAllocations}, f.events.Tables())

	stored, err := f.svc.GetSessionDetails(ctx, details.ID)
	require.NoError(t, err)
	assert.Equal(t, studentIDs(details.Allocations), studentIDs(stored.Allocations))
}

func TestService_CreateAndDistribute_errors(t *testing.T) {
	f := setup(t, append(testutil.Students("9A", 2), roster.NewStudent{ClassName: "Vazia", RollNumber: 1, Name: "Solo"})...)
	ctx := context.Background()

	tests := []struct {
		name    string
		ns      exam.NewSession
		wantErr func(error) bool
	}{
		{
			name:    "missing name",
			ns:      exam.NewSession{Date: examDate, OwnerID: "t", ClassIDs: f.classIDs("9A")},
			wantErr: func(err error) bool { return err != nil && !core.IsNotFound(err) },
		},
		{
			name:    "bad date",
			ns:      exam.NewSession{Name: "x", Date: "01/03/2024", OwnerID: "t", ClassIDs: f.classIDs("9A")},
			wantErr: func(err error) bool { return err != nil && !core.IsNotFound(err) },
		},
		{
			name:    "unknown class",
			ns:      newSession("x", "nope"),
			wantErr: core.IsNotFound,
		},
		{
			name:    "no classes",
			ns:      newSession("x"),
			wantErr: func(err error) bool { return err != nil && !core.IsNotFound(err) },
		},
		{
			name:    "empty classes",
			ns:      exam.NewSession{Name: "x", Date: examDate, OwnerID: "t", ClassIDs: []string{}},
			wantErr: func(err error) bool { return err != nil && !core.IsNotFound(err) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateAndDistribute(ctx, tt.ns)
			if !tt.wantErr(err) {
				t.Errorf("CreateAndDistribute() unexpected error = %v", err)
			}
		})
	}

	sessions, err := f.svc.QuerySessions(ctx, exam.SessionFilter{}, nil)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestService_CreateSession(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	sess, err := f.svc.CreateSession(ctx, newSession(" Recuperação "))
	require.NoError(t, err)
	assert.Equal(t, "Recuperação", sess.Name)
	assert.Equal(t, exam.StatusPending, sess.Status)

	_, err = f.svc.CreateSession(ctx, exam.NewSession{Date: examDate, OwnerID: "t"})
	assert.Error(t, err)
}

func TestNewService_limits(t *testing.T) {
	validate, _ := core.NewValidator()
	tests := []struct {
		name       string
		limits     exam.Limits
		grid       exam.Grid
		wantLimits exam.Limits
		wantGrid   exam.Grid
	}{
		{name: "zero", wantLimits: exam.DefaultLimits(), wantGrid: exam.DefaultGrid()},
		{
			name:       "partial",
			limits:     exam.Limits{MaxPerClass: 3},
			grid:       exam.Grid{Rows: 4},
			wantLimits: exam.Limits{MaxTotal: exam.DefaultMaxTotal, MaxPerClass: 3},
			wantGrid:   exam.Grid{Rows: 4, Columns: exam.DefaultGridColumns},
		},
		{
			name:       "negative",
			limits:     exam.Limits{MaxTotal: 10, MaxPerClass: -1},
			grid:       exam.Grid{Rows: -2, Columns: 8},
			wantLimits: exam.Limits{MaxTotal: 10, MaxPerClass: exam.DefaultMaxPerClass},
			wantGrid:   exam.Grid{Rows: exam.DefaultGridRows, Columns: 8},
		},
		{
			name:       "explicit",
			limits:     exam.Limits{MaxTotal: 30, MaxPerClass: 5},
			grid:       exam.Grid{Rows: 5, Columns: 7},
			wantLimits: exam.Limits{MaxTotal: 30, MaxPerClass: 5},
			wantGrid:   exam.Grid{Rows: 5, Columns: 7},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := exam.NewService(exam.ServiceDeps{Validate: validate, Limits: tt.limits, Grid: tt.grid})
			assert.Equal(t, tt.wantLimits, svc.Limits())
			assert.Equal(t, tt.wantGrid, svc.Grid())
		})
	}
}

func TestService_CreateAndDistribute_emptyPool(t *testing.T) {
	f := setup(t, testutil.Students("9A", 2)...)
	ctx := context.Background()

	// fill the only class on that date
	_, err := f.svc.CreateAndDistribute(ctx, newSession("first", f.classIDs("9A")...))
	require.NoError(t, err)
	f.events.Reset()

	_, err = f.svc.CreateAndDistribute(ctx, newSession("second", f.classIDs("9A")...))
	assert.Equal(t, exam.ErrEmptyDistribution, err)

	sessions, err := f.svc.QuerySessions(ctx, exam.SessionFilter{Date: examDate}, nil)
	require.NoError(t, err)
	if assert.Len(t, sessions, 1) {
		assert.Equal(t, "first", sessions[0].Name)
	}
	assert.Empty(t, f.events.Events)

	// no classes at all is rejected before anything is loaded
	_, err = f.svc.CreateAndDistribute(ctx, newSession("third"))
	var vErrs validator.ValidationErrors
	assert.True(t, errors.As(err, &vErrs), "err = %v", err)
}

func TestService_noDoubleAllocationOnSameDate(t *testing.T) {
	f := setup(t, defaultRoster()...)
	ctx := context.Background()
	all := f.classIDs("9A", "9B", "9C")

	first, err := f.svc.CreateAndDistribute(ctx, newSession("first", all...))
	require.NoError(t, err)
	second, err := f.svc.CreateAndDistribute(ctx, newSession("second", all...))
	require.NoError(t, err)

	// 9A has 3 left, 9B 1, 9C none
	assert.Len(t, second.Allocations, 3)
	taken := make(map[string]bool)
	for _, id := range studentIDs(first.Allocations) {
		taken[id] = true
	}
	for _, id := range studentIDs(second.Allocations) {
		assert.False(t, taken[id], "student %s allocated twice on %s", id, examDate)
	}

	// another date has the whole roster available again
	other := newSession("other day", all...)
	other.Date = "2024-03-02"
	third, err := f.svc.CreateAndDistribute(ctx, other)
	require.NoError(t, err)
	assert.Len(t, third.Allocations, 5)
}

func TestService_DistributeStudents(t *testing.T) {
	f := setup(t, defaultRoster()...)
	ctx := context.Background()

	sess, err := f.svc.CreateSession(ctx, newSession("re-run"))
	require.NoError(t, err)

	allocs, err := f.svc.DistributeStudents(ctx, sess.ID, f.classIDs("9A", "9C"))
	require.NoError(t, err)
	assert.Len(t, allocs, 3)

	// attendance and seating go away with the old allocations
	require.NoError(t, f.svc.MarkAllPresent(ctx, sess.ID, examDate))
	_, err = f.svc.PlaceStudent(ctx, sess.ID, allocs[0].StudentID, 0, 0)
	require.NoError(t, err)

	// re-distribution does not see its own students as taken
	allocs, err = f.svc.DistributeStudents(ctx, sess.ID, f.classIDs("9A", "9B", "9C"))
	require.NoError(t, err)
	assert.Len(t, allocs, 5)

	att, err := f.svc.GetAttendance(ctx, sess.ID, examDate)
	require.NoError(t, err)
	assert.Empty(t, att)
	seats, err := f.svc.GetSeating(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, seats)

	_, err = f.svc.DistributeStudents(ctx, "nope", f.classIDs("9A"))
	assert.True(t, core.IsNotFound(err))
}

func TestService_DistributeStudents_empty(t *testing.T) {
	f := setup(t, defaultRoster()...)
	ctx := context.Background()

	// a session that never got students is removed
	sess, err := f.svc.CreateSession(ctx, newSession("empty"))
	require.NoError(t, err)
	_, err = f.svc.DistributeStudents(ctx, sess.ID, nil)
	assert.Equal(t, exam.ErrEmptyDistribution, err)
	_, err = f.svc.GetSession(ctx, sess.ID)
	assert.Equal(t, exam.ErrSessionNotFound, err)

	// a session with allocations keeps them
	details, err := f.svc.CreateAndDistribute(ctx, newSession("kept", f.classIDs("9C")...))
	require.NoError(t, err)
	_, err = f.svc.DistributeStudents(ctx, details.ID, nil)
	assert.Equal(t, exam.ErrEmptyDistribution, err)
	kept, err := f.svc.GetSessionDetails(ctx, details.ID)
	require.NoError(t, err)
	assert.Equal(t, studentIDs(details.Allocations), studentIDs(kept.Allocations))
}

func TestService_QuerySessions(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	s1, err := f.svc.CreateSession(ctx, exam.NewSession{Name: "b", Date: "2024-03-01", OwnerID: "o1"})
	require.NoError(t, err)
	s2, err := f.svc.CreateSession(ctx, exam.NewSession{Name: "a", Date: "2024-03-02", OwnerID: "o2"})
	require.NoError(t, err)
	s2, err = f.svc.SetStatus(ctx, s2.ID, exam.StatusInProgress)
	require.NoError(t, err)

	names := func(ss []exam.Session) []string {
		out := make([]string, 0, len(ss))
		for _, s := range ss {
			out = append(out, s.Name)
		}
		return out
	}

	tests := []struct {
		name     string
		filter   exam.SessionFilter
		ordering []core.DBOrdering
		want     []string
		wantErr  bool
	}{
		{name: "all by name", ordering: []core.DBOrdering{{Field: "name", Ascending: true}}, want: []string{"a", "b"}},
		{name: "all by date desc", ordering: []core.DBOrdering{{Field: "date"}}, want: []string{"a", "b"}},
		{name: "by date", filter: exam.SessionFilter{Date: s1.Date}, want: []string{"b"}},
		{name: "by owner", filter: exam.SessionFilter{OwnerID: "o2"}, want: []string{"a"}},
		{name: "by status", filter: exam.SessionFilter{Status: " IN_PROGRESS "}, want: []string{"a"}},
		{name: "no match", filter: exam.SessionFilter{OwnerID: "o3"}, want: []string{}},
		{name: "bad status", filter: exam.SessionFilter{Status: "lol"}, wantErr: true},
		{name: "bad date", filter: exam.SessionFilter{Date: "yesterday"}, wantErr: true},
		{name: "bad ordering", ordering: []core.DBOrdering{{Field: "password"}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.QuerySessions(ctx, tt.filter, tt.ordering)
			if (err != nil) != tt.wantErr {
				t.Fatalf("QuerySessions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				assert.Equal(t, tt.want, names(got))
			}
		})
	}
}

func TestService_SetStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	sess, err := f.svc.CreateSession(ctx, newSession("status"))
	require.NoError(t, err)
	f.events.Reset()

	tests := []struct {
		name    string
		status  exam.Status
		want    exam.Status
		wantErr bool
	}{
		{name: "unknown", status: "cancelled", wantErr: true},
		{name: "skip", status: exam.StatusCompleted, wantErr: true},
		{name: "start", status: exam.StatusInProgress, want: exam.StatusInProgress},
		{name: "again", status: exam.StatusInProgress, want: exam.StatusInProgress},
		{name: "back", status: exam.StatusPending, wantErr: true},
		{name: "complete", status: exam.StatusCompleted, want: exam.StatusCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.SetStatus(ctx, sess.ID, tt.status)
			if tt.wantErr {
				var vErr *core.ValidationError
				assert.ErrorAs(t, err, &vErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)
		})
	}

	// the no-op does not publish
	assert.Equal(t, []string{core.TableExamSessions, core.TableExamSessions}, f.events.Tables())

	_, err = f.svc.SetStatus(ctx, "nope", exam.StatusInProgress)
	assert.Equal(t, exam.ErrSessionNotFound, err)
}

func TestService_UpdateStudentAllocation(t *testing.T) {
	f := setup(t, testutil.Students("9A", 2)...)
	ctx := context.Background()

	details, err := f.svc.CreateAndDistribute(ctx, newSession("temp", f.classIDs("9A")...))
	require.NoError(t, err)
	studentID := details.Allocations[0].StudentID
	name, num := "Convidado", 99

	alloc, err := f.svc.UpdateStudentAllocation(ctx, details.ID, studentID, exam.AllocationUpdate{TempName: &name, TempNumber: &num})
	require.NoError(t, err)
	assert.Equal(t, "Convidado", alloc.DisplayName())
	assert.Equal(t, 99, alloc.DisplayNumber())

	// nil keeps, empty clears
	empty := ""
	alloc, err = f.svc.UpdateStudentAllocation(ctx, details.ID, studentID, exam.AllocationUpdate{TempName: &empty})
	require.NoError(t, err)
	assert.Nil(t, alloc.TempName)
	assert.Equal(t, details.Allocations[0].StudentName, alloc.DisplayName())
	if assert.NotNil(t, alloc.TempNumber) {
		assert.Equal(t, 99, *alloc.TempNumber)
	}

	_, err = f.svc.UpdateStudentAllocation(ctx, details.ID, "nope", exam.AllocationUpdate{})
	assert.Equal(t, exam.ErrAllocationNotFound, err)
	_, err = f.svc.UpdateStudentAllocation(ctx, "nope", studentID, exam.AllocationUpdate{})
	assert.Equal(t, exam.ErrSessionNotFound, err)

	negative := -1
	_, err = f.svc.UpdateStudentAllocation(ctx, details.ID, studentID, exam.AllocationUpdate{TempNumber: &negative})
	assert.Error(t, err)
}

func TestService_TakeAttendance(t *testing.T) {
	f := setup(t, defaultRoster()...)
	ctx := context.Background()

	details, err := f.svc.CreateAndDistribute(ctx, newSession("attendance", f.classIDs("9A", "9B", "9C")...))
	require.NoError(t, err)
	student1 := details.Allocations[0].StudentID

	// replaced, not appended
	require.NoError(t, f.svc.TakeAttendance(ctx, details.ID, examDate, []exam.AttendanceRecord{{StudentID: student1, Status: exam.Absent}}))
	require.NoError(t, f.svc.TakeAttendance(ctx, details.ID, examDate, []exam.AttendanceRecord{{StudentID: student1, Status: exam.Present}}))

	records, err := f.svc.GetAttendance(ctx, details.ID, examDate)
	require.NoError(t, err)
	if assert.Len(t, records, 1) {
		assert.Equal(t, student1, records[0].StudentID)
		assert.Equal(t, exam.Present, records[0].Status)
	}

	// same records twice leave the same state
	all := make([]exam.AttendanceRecord, 0, len(details.Allocations))
	for i, a := range details.Allocations {
		st := exam.Present
		if i%2 == 1 {
			st = exam.Absent
		}
		all = append(all, exam.AttendanceRecord{StudentID: a.StudentID, Status: st})
	}
	require.NoError(t, f.svc.TakeAttendance(ctx, details.ID, examDate, all))
	once, err := f.svc.GetAttendance(ctx, details.ID, examDate)
	require.NoError(t, err)
	require.NoError(t, f.svc.TakeAttendance(ctx, details.ID, examDate, all))
	twice, err := f.svc.GetAttendance(ctx, details.ID, examDate)
	require.NoError(t, err)
	assert.Len(t, twice, len(details.Allocations))
	assert.Equal(t, attendanceState(once), attendanceState(twice))

	// other days are untouched
	require.NoError(t, f.svc.MarkAllPresent(ctx, details.ID, "2024-03-02"))
	require.NoError(t, f.svc.TakeAttendance(ctx, details.ID, examDate, nil))
	cleared, err := f.svc.GetAttendance(ctx, details.ID, examDate)
	require.NoError(t, err)
	assert.Empty(t, cleared)
	nextDay, err := f.svc.GetAttendance(ctx, details.ID, "2024-03-02")
	require.NoError(t, err)
	assert.Len(t, nextDay, len(details.Allocations))
}

func attendanceState(records []exam.Attendance) map[string]exam.AttendanceStatus {
	state := make(map[string]exam.AttendanceStatus, len(records))
	for _, r := range records {
		state[r.StudentID] = r.Status
	}
	return state
}

func TestService_TakeAttendance_invalid(t *testing.T) {
	f := setup(t, testutil.Students("9A", 2)...)
	ctx := context.Background()

	details, err := f.svc.CreateAndDistribute(ctx, newSession("invalid", f.classIDs("9A")...))
	require.NoError(t, err)
	s1, s2 := details.Allocations[0].StudentID, details.Allocations[1].StudentID
	require.NoError(t, f.svc.TakeAttendance(ctx, details.ID, examDate, []exam.AttendanceRecord{{StudentID: s2, Status: exam.Late}}))

	tests := []struct {
		name      string
		sessionID string
		date      string
		records   []exam.AttendanceRecord
	}{
		{name: "bad date", sessionID: details.ID, date: "2024-3-1", records: []exam.AttendanceRecord{{StudentID: s1, Status: exam.Present}}},
		{name: "bad status", sessionID: details.ID, date: examDate, records: []exam.AttendanceRecord{{StudentID: s1, Status: "sick"}}},
		{name: "missing student", sessionID: details.ID, date: examDate, records: []exam.AttendanceRecord{{Status: exam.Present}}},
		{name: "not allocated", sessionID: details.ID, date: examDate, records: []exam.AttendanceRecord{{StudentID: "other", Status: exam.Present}}},
		{
			name: "duplicate", sessionID: details.ID, date: examDate,
			records: []exam.AttendanceRecord{{StudentID: s1, Status: exam.Present}, {StudentID: s1, Status: exam.Absent}},
		},
		{name: "unknown session", sessionID: "nope", date: examDate, records: []exam.AttendanceRecord{{StudentID: s1, Status: exam.Present}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := f.svc.TakeAttendance(ctx, tt.sessionID, tt.date, tt.records); err == nil {
				t.Error("TakeAttendance() expected an error")
			}
		})
	}

	// failed calls keep the previous attendance
	records, err := f.svc.GetAttendance(ctx, details.ID, examDate)
	require.NoError(t, err)
	assert.Equal(t, map[string]exam.AttendanceStatus{s2: exam.Late}, attendanceState(records))
}

func TestService_AbsentStudents(t *testing.T) {
	f := setup(t, defaultRoster()...)
	ctx := context.Background()

	details, err := f.svc.CreateAndDistribute(ctx, newSession("absent", f.classIDs("9A", "9B", "9C")...))
	require.NoError(t, err)

	records := make([]exam.AttendanceRecord, 0, len(details.Allocations))
	var want []string
	for i, a := range details.Allocations {
		st := exam.Present
		if i != 1 {
			st = exam.Absent
			want = append(want, a.StudentID)
		}
		records = append(records, exam.AttendanceRecord{StudentID: a.StudentID, Status: st})
	}
	require.NoError(t, f.svc.TakeAttendance(ctx, details.ID, examDate, records))

	absent, err := f.svc.AbsentStudents(ctx, details.ID, examDate)
	require.NoError(t, err)
	assert.Equal(t, want, studentIDs(absent))

	none, err := f.svc.AbsentStudents(ctx, details.ID, "2024-03-05")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestService_UpdateSeating(t *testing.T) {
	f := setup(t, defaultRoster()...)
	ctx := context.Background()

	details, err := f.svc.CreateAndDistribute(ctx, newSession("seating", f.classIDs("9A", "9B", "9C")...))
	require.NoError(t, err)
	s1, s2 := details.Allocations[0].StudentID, details.Allocations[1].StudentID

	// bulk replace moves the student
	_, err = f.svc.UpdateSeating(ctx, details.ID, []exam.SeatPlacement{{StudentID: s1, X: 2, Y: 3}})
	require.NoError(t, err)
	seats, err := f.svc.UpdateSeating(ctx, details.ID, []exam.SeatPlacement{{StudentID: s1, X: 4, Y: 5}})
	require.NoError(t, err)
	if assert.Len(t, seats, 1) {
		assert.Equal(t, 4, seats[0].X)
		assert.Equal(t, 5, seats[0].Y)
	}
	chart, err := f.svc.SeatingChart(ctx, details.ID)
	require.NoError(t, err)
	_, taken := chart.At(2, 3)
	assert.False(t, taken)

	tests := []struct {
		name  string
		seats []exam.SeatPlacement
		check func(error) bool
	}{
		{
			name:  "same cell twice",
			seats: []exam.SeatPlacement{{StudentID: s1, X: 0, Y: 0}, {StudentID: s2, X: 0, Y: 0}},
			check: core.IsConflict,
		},
		{
			name:  "same student twice",
			seats: []exam.SeatPlacement{{StudentID: s1, X: 0, Y: 0}, {StudentID: s1, X: 1, Y: 0}},
			check: isValidation,
		},
		{name: "outside the grid", seats: []exam.SeatPlacement{{StudentID: s1, X: 6, Y: 0}}, check: isValidation},
		{name: "negative", seats: []exam.SeatPlacement{{StudentID: s1, X: -1, Y: 0}}, check: func(err error) bool { return err != nil }},
		{name: "not allocated", seats: []exam.SeatPlacement{{StudentID: "other", X: 0, Y: 0}}, check: isValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.UpdateSeating(ctx, details.ID, tt.seats)
			if !tt.check(err) {
				t.Errorf("UpdateSeating() unexpected error = %v", err)
			}
		})
	}

	// failed updates keep the stored seating
	seats, err = f.svc.GetSeating(ctx, details.ID)
	require.NoError(t, err)
	if assert.Len(t, seats, 1) {
		assert.Equal(t, s1, seats[0].StudentID)
	}

	// an empty list clears the room
	seats, err = f.svc.UpdateSeating(ctx, details.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, seats)
}

func isValidation(err error) bool {
	var vErr *core.ValidationError
	return errors.As(err, &vErr)
}

func TestService_PlaceStudent(t *testing.T) {
	f := setup(t, defaultRoster()...)
	ctx := context.Background()

	details, err := f.svc.CreateAndDistribute(ctx, newSession("place", f.classIDs("9A")...))
	require.NoError(t, err)
	s1, s2 := details.Allocations[0].StudentID, details.Allocations[1].StudentID

	_, err = f.svc.PlaceStudent(ctx, details.ID, s1, 0, 0)
	require.NoError(t, err)
	_, err = f.svc.PlaceStudent(ctx, details.ID, s2, 1, 0)
	require.NoError(t, err)

	_, err = f.svc.PlaceStudent(ctx, details.ID, s2, 0, 0)
	assert.True(t, core.IsConflict(err), "err = %v", err)

	seats, err := f.svc.PlaceStudent(ctx, details.ID, s1, 5, 5)
	require.NoError(t, err)
	got := make(map[string][2]int)
	for _, s := range seats {
		got[s.StudentID] = [2]int{s.X, s.Y}
	}
	assert.Equal(t, map[string][2]int{s1: {5, 5}, s2: {1, 0}}, got)

	_, err = f.svc.PlaceStudent(ctx, details.ID, "other", 2, 2)
	assert.True(t, isValidation(err), "err = %v", err)

	for _, tt := range []struct {
		name      string
		x, y      int
		wantField string
	}{
		{name: "column outside", x: 6, y: 0, wantField: "x"},
		{name: "row outside", x: 0, y: 6, wantField: "y"},
		{name: "both outside", x: 7, y: 9, wantField: "x"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.PlaceStudent(ctx, details.ID, s2, tt.x, tt.y)
			var vErr *core.ValidationError
			require.True(t, errors.As(err, &vErr), "err = %v", err)
			if assert.Len(t, vErr.Fields, 1) {
				assert.Equal(t, tt.wantField, vErr.Fields[0].Field)
			}
		})
	}
}

func TestService_DeleteSession(t *testing.T) {
	f := setup(t, testutil.Students("9A", 2)...)
	ctx := context.Background()

	details, err := f.svc.CreateAndDistribute(ctx, newSession("cascade", f.classIDs("9A")...))
	require.NoError(t, err)
	require.NoError(t, f.svc.MarkAllPresent(ctx, details.ID, examDate))
	_, err = f.svc.PlaceStudent(ctx, details.ID, details.Allocations[0].StudentID, 3, 3)
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteSession(ctx, details.ID))

	allocs, err := f.repo.QueryAllocations(ctx, details.ID)
	require.NoError(t, err)
	assert.Empty(t, allocs)
	att, err := f.repo.QueryAttendance(ctx, details.ID, examDate)
	require.NoError(t, err)
	assert.Empty(t, att)
	seats, err := f.repo.QuerySeating(ctx, details.ID)
	require.NoError(t, err)
	assert.Empty(t, seats)

	assert.True(t, core.IsNotFound(f.svc.DeleteSession(ctx, details.ID)))
	// students are free again on that date
	again, err := f.svc.CreateAndDistribute(ctx, newSession("again", f.classIDs("9A")...))
	require.NoError(t, err)
	assert.Len(t, again.Allocations, 2)
}

func TestService_SendAbsenceReport(t *testing.T) {
	f := setup(t, testutil.Students("9A", 2)...)
	ctx := context.Background()

	details, err := f.svc.CreateAndDistribute(ctx, newSession("Prova", f.classIDs("9A")...))
	require.NoError(t, err)
	absentID := details.Allocations[1].StudentID
	require.NoError(t, f.svc.TakeAttendance(ctx, details.ID, examDate, []exam.AttendanceRecord{
		{StudentID: details.Allocations[0].StudentID, Status: exam.Present},
		{StudentID: absentID, Status: exam.Absent},
	}))

	_, err = f.svc.SendAbsenceReport(ctx, details.ID, examDate, nil)
	assert.Equal(t, exam.ErrNoRecipients, err)

	to := []mail.Address{{Name: "Direção", Address: "direcao@escola.test"}}
	absent, err := f.svc.SendAbsenceReport(ctx, details.ID, examDate, to)
	require.NoError(t, err)
	assert.Equal(t, []string{absentID}, studentIDs(absent))

	require.Len(t, f.mailer.sent, 1)
	msg := f.mailer.sent[0]
	assert.Equal(t, to, msg.To)
	require.NoError(t, msg.Render("SRF Escolas"))
	assert.Contains(t, msg.TextContent, details.Allocations[1].StudentName)
	assert.Contains(t, msg.HTMLContent, "Prova")
	assert.NotContains(t, msg.TextContent, details.Allocations[0].StudentName)
}
