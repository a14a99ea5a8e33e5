package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ShouryaBatra/homestead-careers-api/internal/models"
	appErrors "github.com/ShouryaBatra/homestead-careers-api/pkg/errors"
)

type mockUserRepo struct {
	users []models.User
	byID  map[string]*models.User
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	return m.users, len(m.users), nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func TestUserServiceGet(t *testing.T) {
	repo := &mockUserRepo{byID: map[string]*models.User{
		"u1": {ID: "u1", Email: "kid@example.com", Role: models.RoleStudent},
	}}
	svc := NewUserService(repo, zap.NewNop())
	admin := &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}

	user, err := svc.Get(context.Background(), "u1", admin)
	require.NoError(t, err)
	assert.Equal(t, "kid@example.com", user.Email)

	_, err = svc.Get(context.Background(), "missing", admin)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestUserServiceGetSelfOnlyForNonAdmins(t *testing.T) {
	repo := &mockUserRepo{byID: map[string]*models.User{
		"u1": {ID: "u1", Email: "kid@example.com", Role: models.RoleStudent},
		"u2": {ID: "u2", Email: "boss@example.com", Role: models.RoleEmployer},
	}}
	svc := NewUserService(repo, zap.NewNop())
	student := &models.JWTClaims{UserID: "u1", Role: models.RoleStudent}

	user, err := svc.Get(context.Background(), "u1", student)
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)

	_, err = svc.Get(context.Background(), "u2", student)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestUserServiceListPagination(t *testing.T) {
	repo := &mockUserRepo{users: []models.User{
		{ID: "u1", Role: models.RoleStudent},
		{ID: "u2", Role: models.RoleEmployer},
	}}
	svc := NewUserService(repo, zap.NewNop())

	users, pagination, err := svc.List(context.Background(), models.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	require.NotNil(t, pagination)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 2, pagination.TotalCount)
}
