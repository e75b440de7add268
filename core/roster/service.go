package roster

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/gabrielfriasw/srf-escolas-sub000/core"
)

var (
	// errors
	ErrClassNotFound   = core.NewNotFoundError("class")
	ErrStudentConflict = core.NewConflictError("student", "a student with this roll number already exists in the class")
)

type (
	Repository interface {
		// QueryClasses returns every class ordered by name, without students.
		QueryClasses(ctx context.Context, exec ...core.DBExecutor) ([]Class, error)
		// GetClassesWithStudents returns the classes in the order of ids, each with its students
		// ordered by roll number. Returns ErrClassNotFound if any id is unknown.
		GetClassesWithStudents(ctx context.Context, ids []string, exec ...core.DBExecutor) ([]Class, error)
		// ImportStudents creates the students (and missing classes) atomically.
		ImportStudents(ctx context.Context, rows []NewStudent, exec ...core.DBExecutor) (int, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

func (svc *Service) QueryClasses(ctx context.Context) ([]Class, error) {
	return svc.repo.QueryClasses(ctx)
}

// GetClasses loads the classes with their students. Duplicate ids are collapsed, first occurrence wins.
func (svc *Service) GetClasses(ctx context.Context, ids []string) ([]Class, error) {
	if len(ids) == 0 {
		return []Class{}, nil
	}
	seen := make(map[string]bool, len(ids))
	uniq := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			uniq = append(uniq, id)
		}
	}
	return svc.repo.GetClassesWithStudents(ctx, uniq)
}

// ImportStudents validates all the rows before storing any of them.
func (svc *Service) ImportStudents(ctx context.Context, rows []NewStudent) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	type key struct {
		class string
		roll  int
	}
	seen := make(map[key]int, len(rows))
	for i := range rows {
		rows[i].Clean()
		if err := svc.validate.Struct(rows[i]); err != nil {
			return 0, core.NewValidationError(
				fmt.Errorf("row %d: %w", i+1, err),
				core.FieldError{Field: fmt.Sprintf("rows[%d]", i), Error: err.Error()},
			)
		}
		k := key{rows[i].ClassName, rows[i].RollNumber}
		if prev, ok := seen[k]; ok {
			return 0, core.NewConflictError("student",
				fmt.Sprintf("rows %d and %d share class %q and roll number %d", prev+1, i+1, k.class, k.roll))
		}
		seen[k] = i
	}
	return svc.repo.ImportStudents(ctx, rows)
}
