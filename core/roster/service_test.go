package roster_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielfriasw/srf-escolas-sub000/core"
	"github.com/gabrielfriasw/srf-escolas-sub000/core/roster"
	dummydb "github.com/gabrielfriasw/srf-escolas-sub000/storage/database/dummy"
)

func newService() *roster.Service {
	validate, _ := core.NewValidator()
	return roster.NewService(dummydb.NewRosterRepository(dummydb.Open()), validate)
}

func TestService_ImportStudents(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	n, err := svc.ImportStudents(ctx, []roster.NewStudent{
		{ClassName: " 7A ", RollNumber: 2, Name: "Bia", GuardianPhone: "(11) 98888-7777"},
		{ClassName: "7A", RollNumber: 1, Name: "  Ana  "},
		{ClassName: "7B", RollNumber: 1, Name: "Caio"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	classes, err := svc.QueryClasses(ctx)
	require.NoError(t, err)
	require.Len(t, classes, 2)
	assert.Equal(t, "7A", classes[0].Name)
	assert.Equal(t, "7B", classes[1].Name)

	full, err := svc.GetClasses(ctx, []string{classes[0].ID})
	require.NoError(t, err)
	require.Len(t, full, 1)
	if assert.Len(t, full[0].Students, 2) {
		assert.Equal(t, "Ana", full[0].Students[0].Name)
		assert.Equal(t, 1, full[0].Students[0].RollNumber)
		assert.Equal(t, "(11) 98888-7777", full[0].Students[1].GuardianPhone)
	}
}

func TestService_ImportStudents_invalid(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	_, err := svc.ImportStudents(ctx, []roster.NewStudent{{ClassName: "7A", RollNumber: 1, Name: "Ana"}})
	require.NoError(t, err)

	tests := []struct {
		name    string
		rows    []roster.NewStudent
		wantErr func(error) bool
	}{
		{name: "blank name", rows: []roster.NewStudent{{ClassName: "7A", RollNumber: 3, Name: "  "}}, wantErr: isValidation},
		{name: "no class", rows: []roster.NewStudent{{RollNumber: 3, Name: "Edu"}}, wantErr: isValidation},
		{name: "zero roll number", rows: []roster.NewStudent{{ClassName: "7A", Name: "Edu"}}, wantErr: isValidation},
		{
			name: "duplicate in the file",
			rows: []roster.NewStudent{
				{ClassName: "7C", RollNumber: 1, Name: "Edu"},
				{ClassName: "7C", RollNumber: 1, Name: "Fabi"},
			},
			wantErr: core.IsConflict,
		},
		{
			name: "already stored",
			rows: []roster.NewStudent{
				{ClassName: "7D", RollNumber: 1, Name: "Gabi"},
				{ClassName: "7A", RollNumber: 1, Name: "Hugo"},
			},
			wantErr: core.IsConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := svc.ImportStudents(ctx, tt.rows)
			if !tt.wantErr(err) {
				t.Errorf("ImportStudents() unexpected error = %v", err)
			}
			if n != 0 {
				t.Errorf("ImportStudents() = %d, want 0", n)
			}
		})
	}

	// nothing from the failed imports was stored
	classes, err := svc.QueryClasses(ctx)
	require.NoError(t, err)
	assert.Len(t, classes, 1)
}

func isValidation(err error) bool {
	_, ok := err.(*core.ValidationError)
	return ok
}

func TestService_GetClasses(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	_, err := svc.ImportStudents(ctx, []roster.NewStudent{
		{ClassName: "8A", RollNumber: 1, Name: "Ana"},
		{ClassName: "8B", RollNumber: 1, Name: "Beto"},
	})
	require.NoError(t, err)
	classes, err := svc.QueryClasses(ctx)
	require.NoError(t, err)
	a, b := classes[0].ID, classes[1].ID

	got, err := svc.GetClasses(ctx, []string{b, a, b})
	require.NoError(t, err)
	if assert.Len(t, got, 2) {
		assert.Equal(t, "8B", got[0].Name)
		assert.Equal(t, "8A", got[1].Name)
	}

	got, err = svc.GetClasses(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = svc.GetClasses(ctx, []string{a, "nope"})
	assert.True(t, core.IsNotFound(err))
}
