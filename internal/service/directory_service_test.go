package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/issue-service/internal/config"
	"github.com/spec-kit/issue-service/internal/domain"
	apperrors "github.com/spec-kit/issue-service/pkg/util/errorutil"
)

func testSeed() *config.Seed {
	inactive := false
	return &config.Seed{
		Departments: []config.SeedDepartment{
			{ID: "it", Name: "IT Services"},
			{ID: "cs", Name: "Computer Science"},
			{ID: "closed", Name: "Old Faculty", Active: &inactive},
		},
		Categories: []config.SeedCategory{
			{ID: "tech", Name: "Technical Support", DefaultPriority: "MEDIUM", ResponseWindow: 24 * time.Hour, DepartmentID: "it"},
			{ID: "course", Name: "Course Administration", DefaultPriority: "LOW", ResponseWindow: 72 * time.Hour, DepartmentID: "cs"},
			{ID: "retired", Name: "Retired", DefaultPriority: "LOW", ResponseWindow: time.Hour, DepartmentID: "it", Active: &inactive},
		},
		Users: []config.SeedUser{
			{ID: "s-1", Name: "Sam Student", Email: "sam@uni.edu", Role: "student"},
			{ID: "s-2", Name: "Sky Student", Email: "sky@uni.edu", Role: "student"},
			{ID: "l-cs", Name: "Ada Lovelace", Email: "ada@uni.edu", Role: "lecturer", DepartmentID: "cs"},
			{ID: "l-it", Name: "Grace Hopper", Email: "grace@uni.edu", Role: "lecturer", DepartmentID: "it"},
			{ID: "l-old", Name: "Old Lecturer", Email: "old@uni.edu", Role: "lecturer", DepartmentID: "cs", Active: &inactive},
			{ID: "a-1", Name: "Alan Admin", Email: "alan@uni.edu", Role: "admin"},
		},
	}
}

func TestDirectoryService_ImportSeedIsRepeatable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seed := testSeed()
	seed.Categories[0].ResponseWindow = 48 * time.Hour
	require.NoError(t, f.directory.ImportSeed(ctx, seed))

	category, err := f.store.Categories().GetByID(ctx, "tech")
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, category.ResponseWindow)

	user, err := f.store.Users().GetByID(ctx, "l-cs")
	require.NoError(t, err)
	require.NotNil(t, user.DepartmentID)
	assert.Equal(t, domain.DepartmentID("cs"), *user.DepartmentID)
	assert.Equal(t, domain.RoleLecturer, user.Role)
}

func TestDirectoryService_ListDepartmentsSkipsInactive(t *testing.T) {
	f := newFixture(t)
	departments, err := f.directory.ListDepartments(context.Background())
	require.NoError(t, err)

	ids := make([]domain.DepartmentID, 0, len(departments))
	for _, d := range departments {
		ids = append(ids, d.ID)
	}
	assert.ElementsMatch(t, []domain.DepartmentID{"it", "cs"}, ids)
}

func TestDirectoryService_ListAssignees(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.directory.ListAssignees(ctx, student, nil)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	all, err := f.directory.ListAssignees(ctx, admin, nil)
	require.NoError(t, err)
	ids := make([]domain.UserID, 0, len(all))
	for _, u := range all {
		ids = append(ids, u.ID)
	}
	assert.ElementsMatch(t, []domain.UserID{"l-cs", "l-it", "a-1"}, ids)

	cs := deptCS
	scoped, err := f.directory.ListAssignees(ctx, csLecturer, &cs)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, domain.UserID("l-cs"), scoped[0].ID)
}
