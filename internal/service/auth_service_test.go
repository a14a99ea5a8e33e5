package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ShouryaBatra/homestead-careers-api/internal/models"
	appErrors "github.com/ShouryaBatra/homestead-careers-api/pkg/errors"
)

type mockAuthRepo struct {
	userByEmail      *models.User
	userByID         *models.User
	findByEmailErr   error
	createErr        error
	created          []*models.User
	refreshTokens    map[string]*models.RefreshToken
	auditLogs        []*models.AuditLog
	lastLoginUpdated bool
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	if m.userByEmail == nil {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.userByID != nil {
		return m.userByID, nil
	}
	if m.userByEmail != nil {
		return m.userByEmail, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, user)
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	for _, token := range m.refreshTokens {
		if token.UserID == userID {
			token.Revoked = true
			token.RevokedAt = &now
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func newAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: time.Hour * 24,
	})
}

func TestAuthServiceRegisterStudent(t *testing.T) {
	repo := &mockAuthRepo{}
	svc := newAuthService(repo)

	grade := 10
	res, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "Kid@Example.com",
		Password: "password",
		Name:     "Kid",
		Role:     models.RoleStudent,
		Grade:    &grade,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	require.Len(t, repo.created, 1)
	assert.Equal(t, "kid@example.com", repo.created[0].Email)
	assert.Equal(t, models.RoleStudent, repo.created[0].Role)
	require.NotNil(t, repo.created[0].Grade)
	assert.Equal(t, 10, *repo.created[0].Grade)
	assert.NotEmpty(t, repo.auditLogs)
}

func TestAuthServiceRegisterStudentRequiresGrade(t *testing.T) {
	repo := &mockAuthRepo{}
	svc := newAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "kid@example.com",
		Password: "password",
		Name:     "Kid",
		Role:     models.RoleStudent,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Empty(t, repo.created)
}

func TestAuthServiceRegisterGradeOutOfRange(t *testing.T) {
	repo := &mockAuthRepo{}
	svc := newAuthService(repo)

	grade := 8
	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "kid@example.com",
		Password: "password",
		Name:     "Kid",
		Role:     models.RoleStudent,
		Grade:    &grade,
	})
	require.Error(t, err)
	assert.Empty(t, repo.created)
}

func TestAuthServiceRegisterEmployerRejectsGrade(t *testing.T) {
	repo := &mockAuthRepo{}
	svc := newAuthService(repo)

	grade := 10
	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "boss@example.com",
		Password: "password",
		Name:     "Boss",
		Role:     models.RoleEmployer,
		Grade:    &grade,
	})
	require.Error(t, err)
	assert.Empty(t, repo.created)
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", Email: "boss@example.com"}}
	svc := newAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "boss@example.com",
		Password: "password",
		Name:     "Boss",
		Role:     models.RoleEmployer,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Empty(t, repo.created)
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "123", Email: "user@example.com", PasswordHash: string(password), Role: models.RoleAdmin}}
	svc := newAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.True(t, repo.lastLoginUpdated)
	assert.NotEmpty(t, repo.refreshTokens)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "123", Email: "user@example.com", PasswordHash: string(password)}}
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "nope"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestAuthServiceRefreshTokenRotation(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: make(map[string]*models.RefreshToken)}
	user := &models.User{ID: "u1", Email: "user@example.com", PasswordHash: "hash", Role: models.RoleAdmin}
	repo.userByEmail = user
	repo.userByID = user
	token := &models.RefreshToken{ID: "rt1", UserID: user.ID, Token: "token", ExpiresAt: time.Now().Add(time.Hour)}
	repo.refreshTokens[token.Token] = token

	svc := newAuthService(repo)

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "token", res.RefreshToken)
	assert.True(t, repo.refreshTokens["token"].Revoked)
}

func TestAuthServiceRefreshTokenExpired(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: map[string]*models.RefreshToken{
		"stale": {ID: "rt1", UserID: "u1", Token: "stale", ExpiresAt: time.Now().Add(-time.Hour)},
	}}
	svc := newAuthService(repo)

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestValidateToken(t *testing.T) {
	repo := &mockAuthRepo{}
	svc := newAuthService(repo)
	user := &models.User{ID: "u1", Email: "user@example.com", Role: models.RoleAdmin}
	token, _, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestAuthServiceLogoutRevokesOnlyPresentedToken(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: map[string]*models.RefreshToken{
		"here":  {ID: "rt1", UserID: "u1", Token: "here", ExpiresAt: time.Now().Add(time.Hour)},
		"phone": {ID: "rt2", UserID: "u1", Token: "phone", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	svc := newAuthService(repo)

	err := svc.Logout(context.Background(), "here", "u1", false, models.LoginRequest{})
	require.NoError(t, err)
	assert.True(t, repo.refreshTokens["here"].Revoked)
	assert.False(t, repo.refreshTokens["phone"].Revoked)
}

func TestAuthServiceLogoutAllSessions(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: map[string]*models.RefreshToken{
		"here":  {ID: "rt1", UserID: "u1", Token: "here", ExpiresAt: time.Now().Add(time.Hour)},
		"phone": {ID: "rt2", UserID: "u1", Token: "phone", ExpiresAt: time.Now().Add(time.Hour)},
		"other": {ID: "rt3", UserID: "u2", Token: "other", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	svc := newAuthService(repo)

	err := svc.Logout(context.Background(), "here", "u1", true, models.LoginRequest{})
	require.NoError(t, err)
	assert.True(t, repo.refreshTokens["here"].Revoked)
	assert.True(t, repo.refreshTokens["phone"].Revoked)
	assert.False(t, repo.refreshTokens["other"].Revoked)
}

func TestAuthServiceLogoutRejectsForeignToken(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: map[string]*models.RefreshToken{
		"other": {ID: "rt1", UserID: "u2", Token: "other", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	svc := newAuthService(repo)

	err := svc.Logout(context.Background(), "other", "u1", false, models.LoginRequest{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestAuthServiceMeResolvesStoredProfile(t *testing.T) {
	grade := 11
	repo := &mockAuthRepo{userByID: &models.User{ID: "u1", Email: "kid@example.com", Name: "Kid", Role: models.RoleStudent, Grade: &grade}}
	svc := newAuthService(repo)

	info, err := svc.Me(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "kid@example.com", info.Email)
	assert.Equal(t, models.RoleStudent, info.Role)
	require.NotNil(t, info.Grade)
	assert.Equal(t, 11, *info.Grade)
}

func TestAuthServiceMeDeletedAccount(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{})

	_, err := svc.Me(context.Background(), "ghost")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}
