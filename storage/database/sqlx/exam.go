package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/gabrielfriasw/srf-escolas-sub000/core"
	"github.com/gabrielfriasw/srf-escolas-sub000/core/exam"
	"github.com/gabrielfriasw/srf-escolas-sub000/storage/database"
)

type (
	sessionRow struct {
		ID        string    `db:"id"`
		Name      string    `db:"name"`
		Date      string    `db:"date"`
		Status    string    `db:"status"`
		OwnerID   string    `db:"owner_id"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	allocationRow struct {
		ID              string      `db:"id"`
		SessionID       string      `db:"session_id"`
		StudentID       string      `db:"student_id"`
		OriginalClassID string      `db:"original_class_id"`
		TempName        null.String `db:"temp_name"`
		TempNumber      null.Int    `db:"temp_number"`

		// joined
		StudentName   null.String `db:"student_name"`
		RollNumber    null.Int    `db:"roll_number"`
		ClassName     null.String `db:"class_name"`
		GuardianPhone null.String `db:"guardian_phone"`
	}

	attendanceRow struct {
		ID        string `db:"id"`
		SessionID string `db:"session_id"`
		StudentID string `db:"student_id"`
		Date      string `db:"date"`
		Status    string `db:"status"`
	}

	seatingRow struct {
		ID        string `db:"id"`
		SessionID string `db:"session_id"`
		StudentID string `db:"student_id"`
		X         int    `db:"position_x"`
		Y         int    `db:"position_y"`
	}
)

const (
	sessionColumns = "id, name, date, status, owner_id, created_at, updated_at"

	allocationSelect = `SELECT a.id, a.session_id, a.student_id, a.original_class_id, a.temp_name, a.temp_number,
	st.name AS student_name, st.roll_number, c.name AS class_name, st.guardian_phone
FROM exam_allocations a
LEFT JOIN students st ON st.id = a.student_id
LEFT JOIN classes c ON c.id = a.original_class_id`

	insertAllocations = `INSERT INTO exam_allocations (id, session_id, student_id, original_class_id, temp_name, temp_number)
VALUES (:id, :session_id, :student_id, :original_class_id, :temp_name, :temp_number)`

	insertAttendance = `INSERT INTO exam_attendance (id, session_id, student_id, date, status)
VALUES (:id, :session_id, :student_id, :date, :status)`

	insertSeating = `INSERT INTO exam_seating (id, session_id, student_id, position_x, position_y)
VALUES (:id, :session_id, :student_id, :position_x, :position_y)`
)

type examRepository struct {
	db core.DB
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db core.DB) *examRepository {
	return &examRepository{db: db}
}

func (repo examRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.db
}

// inTx runs fn with the caller's executor if one was given, in a new transaction otherwise.
func (repo examRepository) inTx(ctx context.Context, svcExec []core.DBExecutor, fn func(exe core.DBExecutor) error) error {
	if len(svcExec) > 0 {
		return fn(svcExec[0])
	}
	return core.RunInTx(ctx, repo.db, fn)
}

// trapErr maps "no rows" to notFound and unique violations to conflict; anything else is a backend error.
func trapErr(err error, op, entity string, notFound, conflict error) error {
	if err == nil {
		return nil
	}
	if notFound != nil && errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	if database.IsUniqueViolation(err) {
		if conflict != nil {
			return conflict
		}
		return core.NewConflictError(entity, err.Error())
	}
	return core.NewBackendError(op, entity, err)
}

func toSessionRow(sess exam.Session) sessionRow {
	return sessionRow{
		ID:        sess.ID,
		Name:      sess.Name,
		Date:      sess.Date,
		Status:    string(sess.Status),
		OwnerID:   sess.OwnerID,
		CreatedAt: sess.CreatedAt.UTC(),
		UpdatedAt: sess.UpdatedAt.UTC(),
	}
}

func (r sessionRow) toSession() exam.Session {
	return exam.Session{
		ID:        r.ID,
		Name:      r.Name,
		Date:      r.Date,
		Status:    exam.Status(r.Status),
		OwnerID:   r.OwnerID,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func toAllocationRow(a exam.Allocation) allocationRow {
	return allocationRow{
		ID:              a.ID,
		SessionID:       a.SessionID,
		StudentID:       a.StudentID,
		OriginalClassID: a.OriginalClassID,
		TempName:        null.StringFromPtr(a.TempName),
		TempNumber:      null.IntFromPtr(a.TempNumber),
	}
}

func (r allocationRow) toAllocation() exam.Allocation {
	return exam.Allocation{
		ID:              r.ID,
		SessionID:       r.SessionID,
		StudentID:       r.StudentID,
		OriginalClassID: r.OriginalClassID,
		TempName:        r.TempName.Ptr(),
		TempNumber:      r.TempNumber.Ptr(),
		StudentName:     r.StudentName.String,
		RollNumber:      r.RollNumber.Int,
		ClassName:       r.ClassName.String,
		GuardianPhone:   r.GuardianPhone.String,
	}
}

// Sessions

func (repo examRepository) insertSession(ctx context.Context, exe core.DBExecutor, sess exam.Session) (exam.Session, error) {
	sess.ID = uuid.New().String()
	_, err := exe.NamedExecContext(ctx,
		"INSERT INTO exam_sessions ("+sessionColumns+") VALUES (:id, :name, :date, :status, :owner_id, :created_at, :updated_at)",
		toSessionRow(sess))
	if err != nil {
		return exam.Session{}, trapErr(err, "inserting", "exam session", nil, nil)
	}
	return sess, nil
}

func (repo examRepository) insertAllocations(ctx context.Context, exe core.DBExecutor, sessionID string, allocs []exam.Allocation) ([]exam.Allocation, error) {
	if len(allocs) == 0 {
		return []exam.Allocation{}, nil
	}
	stored := make([]exam.Allocation, 0, len(allocs))
	rows := make([]allocationRow, 0, len(allocs))
	for _, a := range allocs {
		a.ID = uuid.New().String()
		a.SessionID = sessionID
		stored = append(stored, a)
		rows = append(rows, toAllocationRow(a))
	}
	if _, err := exe.NamedExecContext(ctx, insertAllocations, rows); err != nil {
		return nil, trapErr(err, "inserting", "exam allocations", nil, exam.ErrDuplicateAllocation)
	}
	return stored, nil
}

func (repo examRepository) CreateSession(ctx context.Context, sess exam.Session, exec ...core.DBExecutor) (exam.Session, error) {
	return repo.insertSession(ctx, repo.getExec(exec), sess)
}

func (repo examRepository) CreateSessionWithAllocations(ctx context.Context, sess exam.Session, allocs []exam.Allocation, exec ...core.DBExecutor) (exam.Session, []exam.Allocation, error) {
	var stored []exam.Allocation
	err := repo.inTx(ctx, exec, func(exe core.DBExecutor) error {
		var err error
		if sess, err = repo.insertSession(ctx, exe, sess); err != nil {
			return err
		}
		stored, err = repo.insertAllocations(ctx, exe, sess.ID, allocs)
		return err
	})
	if err != nil {
		return exam.Session{}, nil, err
	}
	return sess, stored, nil
}

func (repo examRepository) GetSession(ctx context.Context, id string, exec ...core.DBExecutor) (exam.Session, error) {
	exe := repo.getExec(exec)
	var row sessionRow
	err := exe.GetContext(ctx, &row, exe.Rebind("SELECT "+sessionColumns+" FROM exam_sessions WHERE id = ?"), id)
	if err != nil {
		return exam.Session{}, trapErr(err, "finding", "exam session", exam.ErrSessionNotFound, nil)
	}
	return row.toSession(), nil
}

func (repo examRepository) QuerySessions(ctx context.Context, filter *exam.SessionFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]exam.Session, error) {
	exe := repo.getExec(exec)

	var where []string
	var args []interface{}
	if filter != nil {
		if filter.Date != "" {
			where = append(where, "date = ?")
			args = append(args, filter.Date)
		}
		if filter.OwnerID != "" {
			where = append(where, "owner_id = ?")
			args = append(args, filter.OwnerID)
		}
		if filter.Status != "" {
			where = append(where, "status = ?")
			args = append(args, string(filter.Status))
		}
	}

	q := "SELECT " + sessionColumns + " FROM exam_sessions"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		q += " ORDER BY " + strings.Join(orderList, ", ")
	} else {
		q += " ORDER BY date DESC, created_at DESC"
	}

	var rows []sessionRow
	if err := exe.SelectContext(ctx, &rows, exe.Rebind(q), args...); err != nil {
		return nil, trapErr(err, "querying", "exam sessions", nil, nil)
	}
	sessions := make([]exam.Session, 0, len(rows))
	for _, r := range rows {
		sessions = append(sessions, r.toSession())
	}
	return sessions, nil
}

func (repo examRepository) UpdateSessionStatus(ctx context.Context, id string, status exam.Status, updatedAt time.Time, exec ...core.DBExecutor) (exam.Session, error) {
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx,
		exe.Rebind("UPDATE exam_sessions SET status = ?, updated_at = ? WHERE id = ?"),
		string(status), updatedAt.UTC(), id)
	if err != nil {
		return exam.Session{}, trapErr(err, "updating", "exam session", nil, nil)
	}
	if n, err := res.RowsAffected(); err != nil {
		return exam.Session{}, trapErr(err, "updating", "exam session", nil, nil)
	} else if n == 0 {
		return exam.Session{}, exam.ErrSessionNotFound
	}
	return repo.GetSession(ctx, id, exe)
}

func (repo examRepository) DeleteSession(ctx context.Context, id string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM exam_sessions WHERE id = ?"), id)
	if err != nil {
		return trapErr(err, "deleting", "exam session", nil, nil)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return trapErr(err, "deleting", "exam session", nil, nil)
	}
	if n == 0 {
		return exam.ErrSessionNotFound
	}
	return nil
}

// Allocations

func (repo examRepository) AllocatedStudentIDs(ctx context.Context, date, excludeSessionID string, exec ...core.DBExecutor) (map[string]bool, error) {
	exe := repo.getExec(exec)
	var ids []string
	err := exe.SelectContext(ctx, &ids, exe.Rebind(`SELECT a.student_id
FROM exam_allocations a
JOIN exam_sessions s ON s.id = a.session_id
WHERE s.date = ? AND s.id <> ?`), date, excludeSessionID)
	if err != nil {
		return nil, trapErr(err, "querying", "allocated students", nil, nil)
	}
	allocated := make(map[string]bool, len(ids))
	for _, id := range ids {
		allocated[id] = true
	}
	return allocated, nil
}

func (repo examRepository) ReplaceAllocations(ctx context.Context, sessionID string, allocs []exam.Allocation, exec ...core.DBExecutor) ([]exam.Allocation, error) {
	var stored []exam.Allocation
	err := repo.inTx(ctx, exec, func(exe core.DBExecutor) error {
		// attendance and seating rows cascade
		if _, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM exam_allocations WHERE session_id = ?"), sessionID); err != nil {
			return trapErr(err, "deleting", "exam allocations", nil, nil)
		}
		var err error
		stored, err = repo.insertAllocations(ctx, exe, sessionID, allocs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (repo examRepository) QueryAllocations(ctx context.Context, sessionID string, exec ...core.DBExecutor) ([]exam.Allocation, error) {
	exe := repo.getExec(exec)
	var rows []allocationRow
	q := allocationSelect + "\nWHERE a.session_id = ?\nORDER BY c.name, st.roll_number, a.student_id"
	if err := exe.SelectContext(ctx, &rows, exe.Rebind(q), sessionID); err != nil {
		return nil, trapErr(err, "querying", "exam allocations", nil, nil)
	}
	allocs := make([]exam.Allocation, 0, len(rows))
	for _, r := range rows {
		allocs = append(allocs, r.toAllocation())
	}
	return allocs, nil
}

func (repo examRepository) GetAllocation(ctx context.Context, sessionID, studentID string, exec ...core.DBExecutor) (exam.Allocation, error) {
	exe := repo.getExec(exec)
	var row allocationRow
	q := allocationSelect + "\nWHERE a.session_id = ? AND a.student_id = ?"
	if err := exe.GetContext(ctx, &row, exe.Rebind(q), sessionID, studentID); err != nil {
		return exam.Allocation{}, trapErr(err, "finding", "exam allocation", exam.ErrAllocationNotFound, nil)
	}
	return row.toAllocation(), nil
}

func (repo examRepository) UpdateAllocation(ctx context.Context, alloc exam.Allocation, exec ...core.DBExecutor) (exam.Allocation, error) {
	exe := repo.getExec(exec)
	row := toAllocationRow(alloc)
	res, err := exe.ExecContext(ctx,
		exe.Rebind("UPDATE exam_allocations SET temp_name = ?, temp_number = ? WHERE session_id = ? AND student_id = ?"),
		row.TempName, row.TempNumber, row.SessionID, row.StudentID)
	if err != nil {
		return exam.Allocation{}, trapErr(err, "updating", "exam allocation", nil, nil)
	}
	if n, err := res.RowsAffected(); err != nil {
		return exam.Allocation{}, trapErr(err, "updating", "exam allocation", nil, nil)
	} else if n == 0 {
		return exam.Allocation{}, exam.ErrAllocationNotFound
	}
	return repo.GetAllocation(ctx, alloc.SessionID, alloc.StudentID, exe)
}

// Attendance

func (repo examRepository) ReplaceAttendance(ctx context.Context, sessionID, date string, records []exam.Attendance, exec ...core.DBExecutor) error {
	return repo.inTx(ctx, exec, func(exe core.DBExecutor) error {
		_, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM exam_attendance WHERE session_id = ? AND date = ?"), sessionID, date)
		if err != nil {
			return trapErr(err, "deleting", "exam attendance", nil, nil)
		}
		if len(records) == 0 {
			return nil
		}
		rows := make([]attendanceRow, 0, len(records))
		for _, rec := range records {
			rows = append(rows, attendanceRow{
				ID:        uuid.New().String(),
				SessionID: sessionID,
				StudentID: rec.StudentID,
				Date:      date,
				Status:    string(rec.Status),
			})
		}
		if _, err = exe.NamedExecContext(ctx, insertAttendance, rows); err != nil {
			return trapErr(err, "inserting", "exam attendance", nil, nil)
		}
		return nil
	})
}

func (repo examRepository) QueryAttendance(ctx context.Context, sessionID, date string, exec ...core.DBExecutor) ([]exam.Attendance, error) {
	exe := repo.getExec(exec)
	var rows []attendanceRow
	err := exe.SelectContext(ctx, &rows,
		exe.Rebind("SELECT id, session_id, student_id, date, status FROM exam_attendance WHERE session_id = ? AND date = ? ORDER BY student_id"),
		sessionID, date)
	if err != nil {
		return nil, trapErr(err, "querying", "exam attendance", nil, nil)
	}
	records := make([]exam.Attendance, 0, len(rows))
	for _, r := range rows {
		records = append(records, exam.Attendance{
			ID:        r.ID,
			SessionID: r.SessionID,
			StudentID: r.StudentID,
			Date:      r.Date,
			Status:    exam.AttendanceStatus(r.Status),
		})
	}
	return records, nil
}

// Seating

func (repo examRepository) ReplaceSeating(ctx context.Context, sessionID string, seats []exam.Seating, exec ...core.DBExecutor) ([]exam.Seating, error) {
	stored := make([]exam.Seating, 0, len(seats))
	err := repo.inTx(ctx, exec, func(exe core.DBExecutor) error {
		if _, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM exam_seating WHERE session_id = ?"), sessionID); err != nil {
			return trapErr(err, "deleting", "exam seating", nil, nil)
		}
		if len(seats) == 0 {
			return nil
		}
		rows := make([]seatingRow, 0, len(seats))
		for _, s := range seats {
			s.ID = uuid.New().String()
			s.SessionID = sessionID
			stored = append(stored, s)
			rows = append(rows, seatingRow{ID: s.ID, SessionID: s.SessionID, StudentID: s.StudentID, X: s.X, Y: s.Y})
		}
		if _, err := exe.NamedExecContext(ctx, insertSeating, rows); err != nil {
			return trapErr(err, "inserting", "exam seating", nil, nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (repo examRepository) QuerySeating(ctx context.Context, sessionID string, exec ...core.DBExecutor) ([]exam.Seating, error) {
	exe := repo.getExec(exec)
	var rows []seatingRow
	err := exe.SelectContext(ctx, &rows,
		exe.Rebind("SELECT id, session_id, student_id, position_x, position_y FROM exam_seating WHERE session_id = ? ORDER BY position_y, position_x"),
		sessionID)
	if err != nil {
		return nil, trapErr(err, "querying", "exam seating", nil, nil)
	}
	seats := make([]exam.Seating, 0, len(rows))
	for _, r := range rows {
		seats = append(seats, exam.Seating{ID: r.ID, SessionID: r.SessionID, StudentID: r.StudentID, X: r.X, Y: r.Y})
	}
	return seats, nil
}
