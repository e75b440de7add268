package exam

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/gabrielfriasw/srf-escolas-sub000/core"
	"github.com/gabrielfriasw/srf-escolas-sub000/core/roster"
)

var (
	// errors
	ErrSessionNotFound     = core.NewNotFoundError("exam session")
	ErrAllocationNotFound  = core.NewNotFoundError("exam allocation")
	ErrDuplicateAllocation = core.NewConflictError("exam allocation", "student is already allocated to this session")
	ErrEmptyDistribution   = errors.New("no candidate students to distribute")

	dateFieldText = "date must be formatted as YYYY-MM-DD"
)

// orderable session fields
var sessionOrderingFields = map[string]bool{
	"name":       true,
	"date":       true,
	"status":     true,
	"owner_id":   true,
	"created_at": true,
	"updated_at": true,
}

type (
	Repository interface {
		CreateSession(ctx context.Context, sess Session, exec ...core.DBExecutor) (Session, error)
		// CreateSessionWithAllocations stores the session and its allocations atomically.
		CreateSessionWithAllocations(ctx context.Context, sess Session, allocs []Allocation, exec ...core.DBExecutor) (Session, []Allocation, error)
		GetSession(ctx context.Context, id string, exec ...core.DBExecutor) (Session, error)
		// QuerySessions applies AND operation on the non-empty SessionFilter fields.
		QuerySessions(ctx context.Context, filter *SessionFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Session, error)
		UpdateSessionStatus(ctx context.Context, id string, status Status, updatedAt time.Time, exec ...core.DBExecutor) (Session, error)
		// DeleteSession deletes the session with its allocations, attendance and seating.
		DeleteSession(ctx context.Context, id string, exec ...core.DBExecutor) error

		// AllocatedStudentIDs returns the students allocated to any session held on date,
		// except the session excludeSessionID.
		AllocatedStudentIDs(ctx context.Context, date, excludeSessionID string, exec ...core.DBExecutor) (map[string]bool, error)
		// ReplaceAllocations atomically swaps the session's allocations for allocs.
		// Attendance and seating of the session go away with the old allocations.
		ReplaceAllocations(ctx context.Context, sessionID string, allocs []Allocation, exec ...core.DBExecutor) ([]Allocation, error)
		// QueryAllocations returns the allocations joined with the roster, in canonical order.
		QueryAllocations(ctx context.Context, sessionID string, exec ...core.DBExecutor) ([]Allocation, error)
		GetAllocation(ctx context.Context, sessionID, studentID string, exec ...core.DBExecutor) (Allocation, error)
		// UpdateAllocation stores the temp fields of alloc.
		UpdateAllocation(ctx context.Context, alloc Allocation, exec ...core.DBExecutor) (Allocation, error)

		// ReplaceAttendance atomically swaps the attendance of (sessionID, date) for records.
		ReplaceAttendance(ctx context.Context, sessionID, date string, records []Attendance, exec ...core.DBExecutor) error
		QueryAttendance(ctx context.Context, sessionID, date string, exec ...core.DBExecutor) ([]Attendance, error)

		// ReplaceSeating atomically swaps the seating of sessionID for seats.
		ReplaceSeating(ctx context.Context, sessionID string, seats []Seating, exec ...core.DBExecutor) ([]Seating, error)
		QuerySeating(ctx context.Context, sessionID string, exec ...core.DBExecutor) ([]Seating, error)
	}

	// ClassLoader loads source classes with their students.
	ClassLoader interface {
		GetClasses(ctx context.Context, ids []string) ([]roster.Class, error)
	}

	ServiceDeps struct {
		Repo      Repository
		Classes   ClassLoader
		Validate  *validator.Validate
		Publisher core.ChangePublisher // optional
		Logger    core.Logger          // optional
		Mailer    core.EmailService    // optional, needed for absence reports
		Limits    Limits
		Grid      Grid
		Shuffler  Shuffler // optional, defaults to DefaultShuffler
	}

	Service struct {
		repo      Repository
		classes   ClassLoader
		validate  *validator.Validate
		publisher core.ChangePublisher
		logger    core.Logger
		mailer    core.EmailService
		limits    Limits
		grid      Grid
		shuffler  Shuffler
	}
)

func NewService(deps ServiceDeps) *Service {
	svc := &Service{
		repo:      deps.Repo,
		classes:   deps.Classes,
		validate:  deps.Validate,
		publisher: deps.Publisher,
		logger:    deps.Logger,
		mailer:    deps.Mailer,
		limits:    deps.Limits,
		grid:      deps.Grid,
		shuffler:  deps.Shuffler,
	}
	if svc.publisher == nil {
		svc.publisher = core.NopPublisher{}
	}
	if svc.logger == nil {
		svc.logger = core.NopLogger{}
	}
	if svc.limits.MaxTotal <= 0 {
		svc.limits.MaxTotal = DefaultMaxTotal
	}
	if svc.limits.MaxPerClass <= 0 {
		svc.limits.MaxPerClass = DefaultMaxPerClass
	}
	if svc.grid.Rows <= 0 {
		svc.grid.Rows = DefaultGridRows
	}
	if svc.grid.Columns <= 0 {
		svc.grid.Columns = DefaultGridColumns
	}
	if svc.shuffler == nil {
		svc.shuffler = DefaultShuffler
	}
	return svc
}

func (svc *Service) publish(table, op, sessionID string) {
	svc.publisher.Publish(core.ChangeEvent{Table: table, Op: op, SessionID: sessionID, At: time.Now().UTC()})
}

func validateDate(date string) error {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return core.NewValidationError(errors.New(dateFieldText), core.FieldError{Field: "date", Error: dateFieldText})
	}
	return nil
}

func (svc *Service) Grid() Grid { return svc.grid }

func (svc *Service) Limits() Limits { return svc.limits }

// Sessions

// CreateSession stores a session without distributing anybody into it.
// It backs admin tooling; user facing creation goes through CreateAndDistribute.
func (svc *Service) CreateSession(ctx context.Context, ns NewSession) (Session, error) {
	ns.Clean()
	if err := svc.validate.StructExcept(ns, "ClassIDs"); err != nil {
		return Session{}, err
	}

	now := time.Now().UTC()
	sess, err := svc.repo.CreateSession(ctx, Session{
		Name:      ns.Name,
		Date:      ns.Date,
		Status:    StatusPending,
		OwnerID:   ns.OwnerID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Session{}, errors.Wrap(err, "creating exam session")
	}
	svc.publish(core.TableExamSessions, core.OpInsert, sess.ID)
	return sess, nil
}

// selectCandidates runs the eligibility filter and the distribution for a session held on date.
func (svc *Service) selectCandidates(ctx context.Context, date, sessionID string, classIDs []string) ([]Candidate, error) {
	classes, err := svc.classes.GetClasses(ctx, classIDs)
	if err != nil {
		return nil, errors.Wrap(err, "loading classes")
	}
	allocated, err := svc.repo.AllocatedStudentIDs(ctx, date, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "loading allocated students")
	}
	return Distribute(FilterEligible(classes, allocated), svc.limits, svc.shuffler), nil
}

func toAllocations(sessionID string, cs []Candidate) []Allocation {
	allocs := make([]Allocation, 0, len(cs))
	for _, c := range cs {
		allocs = append(allocs, Allocation{
			SessionID:       sessionID,
			StudentID:       c.StudentID,
			OriginalClassID: c.ClassID,
			StudentName:     c.Name,
			RollNumber:      c.RollNumber,
			ClassName:       c.ClassName,
		})
	}
	return allocs
}

// CreateAndDistribute creates a session and distributes the students of ns.ClassIDs into it.
// Nothing is stored when no student can be allocated.
func (svc *Service) CreateAndDistribute(ctx context.Context, ns NewSession) (SessionDetails, error) {
	ns.Clean()
	if err := svc.validate.Struct(ns); err != nil {
		return SessionDetails{}, err
	}

	selected, err := svc.selectCandidates(ctx, ns.Date, "", ns.ClassIDs)
	if err != nil {
		return SessionDetails{}, err
	}
	if len(selected) == 0 {
		return SessionDetails{}, ErrEmptyDistribution
	}

	now := time.Now().UTC()
	sess := Session{
		Name:      ns.Name,
		Date:      ns.Date,
		Status:    StatusPending,
		OwnerID:   ns.OwnerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	sess, allocs, err := svc.repo.CreateSessionWithAllocations(ctx, sess, toAllocations("", selected))
	if err != nil {
		return SessionDetails{}, errors.Wrap(err, "creating exam session with allocations")
	}
	svc.publish(core.TableExamSessions, core.OpInsert, sess.ID)
	svc.publish(core.TableExamAllocations, core.OpInsert, sess.ID)

	SortAllocations(allocs)
	return SessionDetails{Session: sess, Allocations: allocs}, nil
}

func (svc *Service) DeleteSession(ctx context.Context, id string) error {
	if err := svc.repo.DeleteSession(ctx, id); err != nil {
		return errors.Wrap(err, "deleting exam session")
	}
	svc.publish(core.TableExamSessions, core.OpDelete, id)
	return nil
}

// DistributeStudents (re)allocates students of classIDs to the session, replacing its current
// allocations along with their attendance and seating. When nobody can be allocated the session
// is left untouched, or deleted if it had no allocations yet, and ErrEmptyDistribution is returned.
func (svc *Service) DistributeStudents(ctx context.Context, sessionID string, classIDs []string) ([]Allocation, error) {
	sess, err := svc.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	selected, err := svc.selectCandidates(ctx, sess.Date, sess.ID, classIDs)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		existing, err := svc.repo.QueryAllocations(ctx, sess.ID)
		if err != nil {
			return nil, errors.Wrap(err, "querying allocations")
		}
		if len(existing) == 0 {
			svc.logger.Info(fmt.Sprintf("empty distribution: removing exam session %s", sess.ID))
			if err = svc.repo.DeleteSession(ctx, sess.ID); err != nil {
				return nil, errors.Wrap(err, "removing undistributed exam session")
			}
			svc.publish(core.TableExamSessions, core.OpDelete, sess.ID)
		}
		return nil, ErrEmptyDistribution
	}

	allocs, err := svc.repo.ReplaceAllocations(ctx, sess.ID, toAllocations(sess.ID, selected))
	if err != nil {
		return nil, errors.Wrap(err, "replacing allocations")
	}
	svc.publish(core.TableExamAllocations, core.OpInsert, sess.ID)

	SortAllocations(allocs)
	return allocs, nil
}

func (svc *Service) GetSession(ctx context.Context, id string) (Session, error) {
	return svc.repo.GetSession(ctx, id)
}

func (svc *Service) GetSessionDetails(ctx context.Context, id string) (SessionDetails, error) {
	sess, err := svc.repo.GetSession(ctx, id)
	if err != nil {
		return SessionDetails{}, err
	}
	allocs, err := svc.repo.QueryAllocations(ctx, id)
	if err != nil {
		return SessionDetails{}, errors.Wrap(err, "querying allocations")
	}
	SortAllocations(allocs)
	return SessionDetails{Session: sess, Allocations: allocs}, nil
}

func (svc *Service) QuerySessions(ctx context.Context, filter SessionFilter, ordering []core.DBOrdering) ([]Session, error) {
	filter.Clean()
	if err := svc.validate.Struct(filter); err != nil {
		return nil, err
	}
	for _, ord := range ordering {
		if !sessionOrderingFields[ord.Field] {
			msg := fmt.Sprintf("cannot order by %q", ord.Field)
			return nil, core.NewValidationError(errors.New(msg), core.FieldError{Field: "ordering", Error: msg})
		}
	}
	return svc.repo.QuerySessions(ctx, &filter, ordering)
}

// SetStatus moves the session along pending -> in_progress -> completed.
func (svc *Service) SetStatus(ctx context.Context, id string, status Status) (Session, error) {
	if !status.IsValid() {
		return Session{}, core.NewValidationError(
			errors.New(sessionStatusText),
			core.FieldError{Field: "status", Error: sessionStatusText},
		)
	}
	sess, err := svc.repo.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}

	next, err := Transition(ctx, sess.Status, status)
	if err != nil {
		return Session{}, core.NewValidationError(err, core.FieldError{Field: "status", Error: err.Error()})
	}
	if next == sess.Status {
		return sess, nil
	}

	sess, err = svc.repo.UpdateSessionStatus(ctx, id, next, time.Now().UTC())
	if err != nil {
		return Session{}, errors.Wrap(err, "updating exam session status")
	}
	svc.publish(core.TableExamSessions, core.OpUpdate, id)
	return sess, nil
}

// Allocations

func (svc *Service) UpdateStudentAllocation(ctx context.Context, sessionID, studentID string, upd AllocationUpdate) (Allocation, error) {
	if err := svc.validate.Struct(upd); err != nil {
		return Allocation{}, err
	}
	if _, err := svc.repo.GetSession(ctx, sessionID); err != nil {
		return Allocation{}, err
	}
	alloc, err := svc.repo.GetAllocation(ctx, sessionID, studentID)
	if err != nil {
		return Allocation{}, err
	}

	if upd.TempName != nil {
		if name := core.CleanString(*upd.TempName); name != "" {
			alloc.TempName = &name
		} else {
			alloc.TempName = nil
		}
	}
	if upd.TempNumber != nil {
		if num := *upd.TempNumber; num != 0 {
			alloc.TempNumber = &num
		} else {
			alloc.TempNumber = nil
		}
	}

	alloc, err = svc.repo.UpdateAllocation(ctx, alloc)
	if err != nil {
		return Allocation{}, errors.Wrap(err, "updating allocation")
	}
	svc.publish(core.TableExamAllocations, core.OpUpdate, sessionID)
	return alloc, nil
}

// allocationsByStudent returns the session's allocations keyed by student id.
func (svc *Service) allocationsByStudent(ctx context.Context, sessionID string) (map[string]Allocation, []Allocation, error) {
	if _, err := svc.repo.GetSession(ctx, sessionID); err != nil {
		return nil, nil, err
	}
	allocs, err := svc.repo.QueryAllocations(ctx, sessionID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "querying allocations")
	}
	byStudent := make(map[string]Allocation, len(allocs))
	for _, a := range allocs {
		byStudent[a.StudentID] = a
	}
	return byStudent, allocs, nil
}

// Attendance

// TakeAttendance replaces the whole attendance of the session on date with records.
func (svc *Service) TakeAttendance(ctx context.Context, sessionID, date string, records []AttendanceRecord) error {
	if err := validateDate(date); err != nil {
		return err
	}
	allocated, _, err := svc.allocationsByStudent(ctx, sessionID)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(records))
	rows := make([]Attendance, 0, len(records))
	for i, rec := range records {
		if err = svc.validate.Struct(rec); err != nil {
			return err
		}
		field := fmt.Sprintf("records[%d]", i)
		if seen[rec.StudentID] {
			msg := fmt.Sprintf("student %s appears more than once", rec.StudentID)
			return core.NewValidationError(errors.New(msg), core.FieldError{Field: field, Error: msg})
		}
		if _, ok := allocated[rec.StudentID]; !ok {
			msg := fmt.Sprintf("student %s is not allocated to this session", rec.StudentID)
			return core.NewValidationError(errors.New(msg), core.FieldError{Field: field, Error: msg})
		}
		seen[rec.StudentID] = true
		rows = append(rows, Attendance{SessionID: sessionID, StudentID: rec.StudentID, Date: date, Status: rec.Status})
	}

	if err = svc.repo.ReplaceAttendance(ctx, sessionID, date, rows); err != nil {
		return errors.Wrap(err, "replacing attendance")
	}
	svc.publish(core.TableExamAttendance, core.OpInsert, sessionID)
	return nil
}

// MarkAllPresent records every allocated student as present on date.
func (svc *Service) MarkAllPresent(ctx context.Context, sessionID, date string) error {
	if err := validateDate(date); err != nil {
		return err
	}
	_, allocs, err := svc.allocationsByStudent(ctx, sessionID)
	if err != nil {
		return err
	}
	records := make([]AttendanceRecord, 0, len(allocs))
	for _, a := range allocs {
		records = append(records, AttendanceRecord{StudentID: a.StudentID, Status: Present})
	}
	return svc.TakeAttendance(ctx, sessionID, date, records)
}

func (svc *Service) GetAttendance(ctx context.Context, sessionID, date string) ([]Attendance, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}
	if _, err := svc.repo.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return svc.repo.QueryAttendance(ctx, sessionID, date)
}

// AbsentStudents returns the allocations of the students marked absent on date, in canonical order.
func (svc *Service) AbsentStudents(ctx context.Context, sessionID, date string) ([]Allocation, error) {
	records, err := svc.GetAttendance(ctx, sessionID, date)
	if err != nil {
		return nil, err
	}
	allocated, _, err := svc.allocationsByStudent(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	absent := make([]Allocation, 0)
	for _, rec := range records {
		if rec.Status != Absent {
			continue
		}
		if a, ok := allocated[rec.StudentID]; ok {
			absent = append(absent, a)
		}
	}
	SortAllocations(absent)
	return absent, nil
}

// Seating

func seatingError(i int, err error) error {
	var oog ErrOutOfGrid
	if errors.As(err, &oog) {
		return core.NewValidationError(err, core.FieldError{Field: fmt.Sprintf("seats[%d]", i), Error: err.Error()})
	}
	var taken ErrSeatTaken
	if errors.As(err, &taken) {
		return core.NewConflictError("exam seating", err.Error())
	}
	return err
}

// UpdateSeating replaces the whole seating of the session with seats.
func (svc *Service) UpdateSeating(ctx context.Context, sessionID string, seats []SeatPlacement) ([]Seating, error) {
	allocated, _, err := svc.allocationsByStudent(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	chart := NewSeatingChart(svc.grid)
	rows := make([]Seating, 0, len(seats))
	for i, seat := range seats {
		if err = svc.validate.Struct(seat); err != nil {
			return nil, err
		}
		field := fmt.Sprintf("seats[%d]", i)
		if _, ok := allocated[seat.StudentID]; !ok {
			msg := fmt.Sprintf("student %s is not allocated to this session", seat.StudentID)
			return nil, core.NewValidationError(errors.New(msg), core.FieldError{Field: field, Error: msg})
		}
		if _, _, ok := chart.SeatOf(seat.StudentID); ok {
			msg := fmt.Sprintf("student %s appears more than once", seat.StudentID)
			return nil, core.NewValidationError(errors.New(msg), core.FieldError{Field: field, Error: msg})
		}
		if err = chart.Place(seat.StudentID, seat.X, seat.Y); err != nil {
			return nil, seatingError(i, err)
		}
		rows = append(rows, Seating{SessionID: sessionID, StudentID: seat.StudentID, X: seat.X, Y: seat.Y})
	}

	stored, err := svc.repo.ReplaceSeating(ctx, sessionID, rows)
	if err != nil {
		return nil, errors.Wrap(err, "replacing seating")
	}
	svc.publish(core.TableExamSeating, core.OpInsert, sessionID)
	return stored, nil
}

// PlaceStudent seats (or moves) one student, keeping everybody else where they are.
func (svc *Service) PlaceStudent(ctx context.Context, sessionID, studentID string, x, y int) ([]Seating, error) {
	chart, err := svc.SeatingChart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err = chart.Place(studentID, x, y); err != nil {
		var oog ErrOutOfGrid
		if errors.As(err, &oog) {
			field := "x"
			if x >= 0 && x < oog.Grid.Columns {
				field = "y"
			}
			return nil, core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
		}
		return nil, seatingError(0, err)
	}
	return svc.UpdateSeating(ctx, sessionID, chart.Placements())
}

func (svc *Service) GetSeating(ctx context.Context, sessionID string) ([]Seating, error) {
	if _, err := svc.repo.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return svc.repo.QuerySeating(ctx, sessionID)
}

// SeatingChart loads the session's seating into a SeatingChart.
func (svc *Service) SeatingChart(ctx context.Context, sessionID string) (*SeatingChart, error) {
	seats, err := svc.GetSeating(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	chart, err := ChartFromSeating(svc.grid, seats)
	if err != nil {
		return nil, errors.Wrap(err, "loading seating chart")
	}
	return chart, nil
}
