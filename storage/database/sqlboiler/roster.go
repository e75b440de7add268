package boiledrepos

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/strmangle"

	"github.com/gabrielfriasw/srf-escolas-sub000/core"
	"github.com/gabrielfriasw/srf-escolas-sub000/core/roster"
	"github.com/gabrielfriasw/srf-escolas-sub000/storage/database"
)

type (
	classRow struct {
		ID   string `boil:"id"`
		Name string `boil:"name"`
	}

	studentRow struct {
		ID            string      `boil:"id"`
		ClassID       string      `boil:"class_id"`
		Name          string      `boil:"name"`
		RollNumber    int         `boil:"roll_number"`
		GuardianPhone null.String `boil:"guardian_phone"`
	}
)

type rosterRepository struct {
	db core.DB
}

var _ roster.Repository = (*rosterRepository)(nil) // interface compliance check

func NewRosterRepository(db core.DB) *rosterRepository {
	return &rosterRepository{db: db}
}

func (repo rosterRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.db
}

// placeholders returns count comma separated bind params starting at start, in the executor's dialect.
func placeholders(exe core.DBExecutor, count, start int) string {
	return strmangle.Placeholders(exe.DriverName() == database.EnginePostgres, count, start, 1)
}

func (repo rosterRepository) unboilStudent(row studentRow) roster.Student {
	return roster.Student{
		ID:            row.ID,
		ClassID:       row.ClassID,
		Name:          row.Name,
		RollNumber:    row.RollNumber,
		GuardianPhone: row.GuardianPhone.String,
	}
}

func (repo rosterRepository) QueryClasses(ctx context.Context, exec ...core.DBExecutor) ([]roster.Class, error) {
	var rows []classRow
	if err := queries.Raw("SELECT id, name FROM classes ORDER BY name").Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, core.NewBackendError("querying", "classes", err)
	}
	classes := make([]roster.Class, 0, len(rows))
	for _, r := range rows {
		classes = append(classes, roster.Class{ID: r.ID, Name: r.Name})
	}
	return classes, nil
}

func (repo rosterRepository) GetClassesWithStudents(ctx context.Context, ids []string, exec ...core.DBExecutor) ([]roster.Class, error) {
	if len(ids) == 0 {
		return []roster.Class{}, nil
	}
	exe := repo.getExec(exec)
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	in := placeholders(exe, len(ids), 1)

	var classRows []classRow
	err := queries.Raw("SELECT id, name FROM classes WHERE id IN ("+in+")", args...).Bind(ctx, exe, &classRows)
	if err != nil {
		return nil, core.NewBackendError("querying", "classes", err)
	}
	byID := make(map[string]*roster.Class, len(classRows))
	for _, r := range classRows {
		byID[r.ID] = &roster.Class{ID: r.ID, Name: r.Name, Students: []roster.Student{}}
	}
	if len(byID) != len(ids) {
		return nil, roster.ErrClassNotFound
	}

	var studentRows []studentRow
	err = queries.Raw(
		"SELECT id, class_id, name, roll_number, guardian_phone FROM students WHERE class_id IN ("+in+") ORDER BY class_id, roll_number, id",
		args...,
	).Bind(ctx, exe, &studentRows)
	if err != nil {
		return nil, core.NewBackendError("querying", "students", err)
	}
	for _, r := range studentRows {
		c := byID[r.ClassID]
		c.Students = append(c.Students, repo.unboilStudent(r))
	}

	classes := make([]roster.Class, 0, len(ids))
	for _, id := range ids {
		classes = append(classes, *byID[id])
	}
	return classes, nil
}

func (repo rosterRepository) ImportStudents(ctx context.Context, rows []roster.NewStudent, exec ...core.DBExecutor) (int, error) {
	if len(exec) > 0 {
		return repo.importStudents(ctx, exec[0], rows)
	}
	var n int
	err := core.RunInTx(ctx, repo.db, func(tx core.DBExecutor) error {
		var err error
		n, err = repo.importStudents(ctx, tx, rows)
		return err
	})
	return n, err
}

func (repo rosterRepository) importStudents(ctx context.Context, exe core.DBExecutor, rows []roster.NewStudent) (int, error) {
	classIDs := make(map[string]string) // {name: id}
	for _, row := range rows {
		classID, ok := classIDs[row.ClassName]
		if !ok {
			var err error
			if classID, err = repo.getOrCreateClass(ctx, exe, row.ClassName); err != nil {
				return 0, err
			}
			classIDs[row.ClassName] = classID
		}

		_, err := queries.Raw(
			"INSERT INTO students (id, class_id, name, roll_number, guardian_phone) VALUES ("+placeholders(exe, 5, 1)+")",
			uuid.New().String(), classID, row.Name, row.RollNumber, null.NewString(row.GuardianPhone, row.GuardianPhone != ""),
		).ExecContext(ctx, exe)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return 0, roster.ErrStudentConflict
			}
			return 0, core.NewBackendError("inserting", "student", err)
		}
	}
	return len(rows), nil
}

func (repo rosterRepository) getOrCreateClass(ctx context.Context, exe core.DBExecutor, name string) (string, error) {
	var found []classRow
	err := queries.Raw("SELECT id, name FROM classes WHERE name = "+placeholders(exe, 1, 1), name).Bind(ctx, exe, &found)
	if err != nil {
		return "", core.NewBackendError("finding", "class", err)
	}
	if len(found) > 0 {
		return found[0].ID, nil
	}

	id := uuid.New().String()
	_, err = queries.Raw("INSERT INTO classes (id, name) VALUES ("+placeholders(exe, 2, 1)+")", id, strings.TrimSpace(name)).ExecContext(ctx, exe)
	if err != nil {
		return "", core.NewBackendError("inserting", "class", errors.Wrapf(err, "class %q", name))
	}
	return id, nil
}
