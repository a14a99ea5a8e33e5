package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ShouryaBatra/homestead-careers-api/internal/models"
	appErrors "github.com/ShouryaBatra/homestead-careers-api/pkg/errors"
)

type mockApplicationRepo struct {
	byID             map[string]*models.Application
	created          []*models.Application
	statusUpdates    []models.ApplicationStatus
	listByPostingIDs [][]string
}

func (m *mockApplicationRepo) Create(ctx context.Context, application *models.Application) error {
	if application.ID == "" {
		application.ID = "generated"
	}
	m.created = append(m.created, application)
	return nil
}

func (m *mockApplicationRepo) FindByID(ctx context.Context, id string) (*models.Application, error) {
	application, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *application
	return &copied, nil
}

func (m *mockApplicationRepo) ListByApplicant(ctx context.Context, userID string) ([]models.Application, error) {
	var out []models.Application
	for _, a := range m.byID {
		if a.ApplicantUserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *mockApplicationRepo) ListByPostingIDs(ctx context.Context, postingIDs []string) ([]models.Application, error) {
	m.listByPostingIDs = append(m.listByPostingIDs, postingIDs)
	idSet := make(map[string]struct{}, len(postingIDs))
	for _, id := range postingIDs {
		idSet[id] = struct{}{}
	}
	var out []models.Application
	for _, a := range m.byID {
		if _, ok := idSet[a.JobID]; ok {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *mockApplicationRepo) ListAll(ctx context.Context) ([]models.Application, error) {
	var out []models.Application
	for _, a := range m.byID {
		out = append(out, *a)
	}
	return out, nil
}

func (m *mockApplicationRepo) UpdateStatus(ctx context.Context, id string, status models.ApplicationStatus) error {
	m.statusUpdates = append(m.statusUpdates, status)
	if a, ok := m.byID[id]; ok {
		a.Status = status
	}
	return nil
}

type mockPostingReader struct {
	byID    map[string]*models.Posting
	byOwner map[string][]models.Posting
}

func (m *mockPostingReader) FindByID(ctx context.Context, id string) (*models.Posting, error) {
	posting, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return posting, nil
}

func (m *mockPostingReader) ListByOwner(ctx context.Context, ownerUserID string) ([]models.Posting, error) {
	return m.byOwner[ownerUserID], nil
}

func newApplicationService(repo *mockApplicationRepo, postings *mockPostingReader) (*ApplicationService, *mockAuditLog) {
	audit := &mockAuditLog{}
	return NewApplicationService(repo, postings, audit, validator.New(), zap.NewNop()), audit
}

func validSubmitRequest(jobID string, answers []string) SubmitApplicationRequest {
	return SubmitApplicationRequest{
		JobID:   jobID,
		Name:    "Kid",
		Email:   "Kid@Example.com",
		Age:     16,
		Address: "1 Main St",
		Phone:   "555-0100",
		Skills:  "Friendly",
		Answers: answers,
	}
}

func TestApplicationSubmitDefaultsToWaiting(t *testing.T) {
	repo := &mockApplicationRepo{byID: map[string]*models.Application{}}
	postings := &mockPostingReader{byID: map[string]*models.Posting{
		"p1": {ID: "p1", Title: "Barista", Questions: []string{"Why here?"}},
	}}
	svc, audit := newApplicationService(repo, postings)

	application, err := svc.Submit(context.Background(), "student1", validSubmitRequest("p1", []string{"Because"}), models.LoginRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusWaiting, application.Status)
	assert.Equal(t, "waiting", application.StatusLabel())
	assert.Equal(t, "kid@example.com", application.Email)
	require.Len(t, repo.created, 1)
	assert.NotEmpty(t, audit.entries)
}

func TestApplicationSubmitUnknownPosting(t *testing.T) {
	repo := &mockApplicationRepo{byID: map[string]*models.Application{}}
	postings := &mockPostingReader{byID: map[string]*models.Posting{}}
	svc, _ := newApplicationService(repo, postings)

	_, err := svc.Submit(context.Background(), "student1", validSubmitRequest("ghost", nil), models.LoginRequest{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Empty(t, repo.created)
}

func TestApplicationSubmitAnswerCountMustMatch(t *testing.T) {
	repo := &mockApplicationRepo{byID: map[string]*models.Application{}}
	postings := &mockPostingReader{byID: map[string]*models.Posting{
		"p1": {ID: "p1", Title: "Barista", Questions: []string{"Q1", "Q2"}},
	}}
	svc, _ := newApplicationService(repo, postings)

	_, err := svc.Submit(context.Background(), "student1", validSubmitRequest("p1", []string{"only one"}), models.LoginRequest{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Empty(t, repo.created)
}

func TestApplicationSubmitBlankAnswerRejected(t *testing.T) {
	repo := &mockApplicationRepo{byID: map[string]*models.Application{}}
	postings := &mockPostingReader{byID: map[string]*models.Posting{
		"p1": {ID: "p1", Title: "Barista", Questions: []string{"Q1"}},
	}}
	svc, _ := newApplicationService(repo, postings)

	_, err := svc.Submit(context.Background(), "student1", validSubmitRequest("p1", []string{"   "}), models.LoginRequest{})
	require.Error(t, err)
	assert.Empty(t, repo.created)
}

func TestApplicationSubmitAllowsDuplicates(t *testing.T) {
	repo := &mockApplicationRepo{byID: map[string]*models.Application{}}
	postings := &mockPostingReader{byID: map[string]*models.Posting{
		"p1": {ID: "p1", Title: "Barista", Questions: nil},
	}}
	svc, _ := newApplicationService(repo, postings)

	_, err := svc.Submit(context.Background(), "student1", validSubmitRequest("p1", nil), models.LoginRequest{})
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), "student1", validSubmitRequest("p1", nil), models.LoginRequest{})
	require.NoError(t, err)
	assert.Len(t, repo.created, 2)
}

func TestApplicationListByApplicantOmitsOrphanTitles(t *testing.T) {
	repo := &mockApplicationRepo{byID: map[string]*models.Application{
		"a1": {ID: "a1", JobID: "p1", ApplicantUserID: "student1"},
		"a2": {ID: "a2", JobID: "deleted", ApplicantUserID: "student1"},
	}}
	postings := &mockPostingReader{byID: map[string]*models.Posting{
		"p1": {ID: "p1", Title: "Barista"},
	}}
	svc, _ := newApplicationService(repo, postings)

	applications, err := svc.ListByApplicant(context.Background(), "student1")
	require.NoError(t, err)
	require.Len(t, applications, 2)

	titles := map[string]string{}
	for _, a := range applications {
		titles[a.ID] = a.JobTitle
	}
	assert.Equal(t, "Barista", titles["a1"])
	assert.Empty(t, titles["a2"])
}

func TestApplicationListForReviewerAdminSeesAll(t *testing.T) {
	repo := &mockApplicationRepo{byID: map[string]*models.Application{
		"a1": {ID: "a1", JobID: "p1", ApplicantUserID: "student1"},
		"a2": {ID: "a2", JobID: "p2", ApplicantUserID: "student2"},
	}}
	postings := &mockPostingReader{byID: map[string]*models.Posting{}}
	svc, _ := newApplicationService(repo, postings)

	applications, err := svc.ListForReviewer(context.Background(), &models.JWTClaims{UserID: "admin1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Len(t, applications, 2)
}

func TestApplicationListForReviewerEmployerScoped(t *testing.T) {
	repo := &mockApplicationRepo{byID: map[string]*models.Application{
		"a1": {ID: "a1", JobID: "p1", ApplicantUserID: "student1"},
		"a2": {ID: "a2", JobID: "p2", ApplicantUserID: "student2"},
	}}
	postings := &mockPostingReader{
		byID:    map[string]*models.Posting{"p1": {ID: "p1", Title: "Barista", OwnerUserID: "boss1"}},
		byOwner: map[string][]models.Posting{"boss1": {{ID: "p1", Title: "Barista", OwnerUserID: "boss1"}}},
	}
	svc, _ := newApplicationService(repo, postings)

	applications, err := svc.ListForReviewer(context.Background(), &models.JWTClaims{UserID: "boss1", Role: models.RoleEmployer})
	require.NoError(t, err)
	require.Len(t, applications, 1)
	assert.Equal(t, "a1", applications[0].ID)
}

func TestApplicationListForReviewerEmployerWithoutPostings(t *testing.T) {
	repo := &mockApplicationRepo{byID: map[string]*models.Application{
		"a1": {ID: "a1", JobID: "p1", ApplicantUserID: "student1"},
	}}
	postings := &mockPostingReader{byID: map[string]*models.Posting{}, byOwner: map[string][]models.Posting{}}
	svc, _ := newApplicationService(repo, postings)

	applications, err := svc.ListForReviewer(context.Background(), &models.JWTClaims{UserID: "boss1", Role: models.RoleEmployer})
	require.NoError(t, err)
	assert.Empty(t, applications)
	assert.Empty(t, repo.listByPostingIDs, "empty posting set must never reach the store")
}

func TestApplicationListForReviewerStudentForbidden(t *testing.T) {
	repo := &mockApplicationRepo{byID: map[string]*models.Application{}}
	postings := &mockPostingReader{byID: map[string]*models.Posting{}}
	svc, _ := newApplicationService(repo, postings)

	_, err := svc.ListForReviewer(context.Background(), &models.JWTClaims{UserID: "student1", Role: models.RoleStudent})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestApplicationSetStatusLastWriteWins(t *testing.T) {
	repo := &mockApplicationRepo{byID: map[string]*models.Application{
		"a1": {ID: "a1", JobID: "p1", ApplicantUserID: "student1"},
	}}
	postings := &mockPostingReader{byID: map[string]*models.Posting{
		"p1": {ID: "p1", Title: "Barista", OwnerUserID: "boss1"},
	}}
	svc, _ := newApplicationService(repo, postings)
	reviewer := &models.JWTClaims{UserID: "boss1", Role: models.RoleEmployer}

	application, err := svc.SetStatus(context.Background(), "a1", SetStatusRequest{Status: models.ApplicationStatusAccepted}, reviewer, models.LoginRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusAccepted, application.Status)

	application, err = svc.SetStatus(context.Background(), "a1", SetStatusRequest{Status: models.ApplicationStatusRejected}, reviewer, models.LoginRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusRejected, application.Status)
	assert.Equal(t, []models.ApplicationStatus{models.ApplicationStatusAccepted, models.ApplicationStatusRejected}, repo.statusUpdates)
}

func TestApplicationSetStatusEmployerCannotTouchOthers(t *testing.T) {
	repo := &mockApplicationRepo{byID: map[string]*models.Application{
		"a1": {ID: "a1", JobID: "p1", ApplicantUserID: "student1"},
	}}
	postings := &mockPostingReader{byID: map[string]*models.Posting{
		"p1": {ID: "p1", Title: "Barista", OwnerUserID: "boss1"},
	}}
	svc, _ := newApplicationService(repo, postings)

	_, err := svc.SetStatus(context.Background(), "a1", SetStatusRequest{Status: models.ApplicationStatusAccepted}, &models.JWTClaims{UserID: "boss2", Role: models.RoleEmployer}, models.LoginRequest{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Empty(t, repo.statusUpdates)
}

func TestApplicationSetStatusOrphanEmployerForbiddenAdminAllowed(t *testing.T) {
	repo := &mockApplicationRepo{byID: map[string]*models.Application{
		"a1": {ID: "a1", JobID: "deleted", ApplicantUserID: "student1"},
	}}
	postings := &mockPostingReader{byID: map[string]*models.Posting{}}
	svc, _ := newApplicationService(repo, postings)

	_, err := svc.SetStatus(context.Background(), "a1", SetStatusRequest{Status: models.ApplicationStatusAccepted}, &models.JWTClaims{UserID: "boss1", Role: models.RoleEmployer}, models.LoginRequest{})
	require.Error(t, err)

	application, err := svc.SetStatus(context.Background(), "a1", SetStatusRequest{Status: models.ApplicationStatusAccepted}, &models.JWTClaims{UserID: "admin1", Role: models.RoleAdmin}, models.LoginRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusAccepted, application.Status)
}

func TestApplicationSetStatusInvalidValue(t *testing.T) {
	repo := &mockApplicationRepo{byID: map[string]*models.Application{}}
	postings := &mockPostingReader{byID: map[string]*models.Posting{}}
	svc, _ := newApplicationService(repo, postings)

	_, err := svc.SetStatus(context.Background(), "a1", SetStatusRequest{Status: "maybe"}, &models.JWTClaims{UserID: "admin1", Role: models.RoleAdmin}, models.LoginRequest{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
