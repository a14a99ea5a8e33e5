package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ShouryaBatra/homestead-careers-api/internal/models"
	"github.com/ShouryaBatra/homestead-careers-api/internal/service"
	appErrors "github.com/ShouryaBatra/homestead-careers-api/pkg/errors"
	"github.com/ShouryaBatra/homestead-careers-api/pkg/response"
)

// ApplicationHandler handles job application endpoints.
type ApplicationHandler struct {
	service *service.ApplicationService
}

// NewApplicationHandler creates a new application handler.
func NewApplicationHandler(svc *service.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{service: svc}
}

// Submit godoc
// @Summary Submit application
// @Description Apply to a posting; answers must match the posting's questions one to one
// @Tags Applications
// @Accept json
// @Produce json
// @Param payload body service.SubmitApplicationRequest true "Application payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /applications [post]
func (h *ApplicationHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SubmitApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid application payload"))
		return
	}

	meta := models.LoginRequest{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
	application, err := h.service.Submit(c.Request.Context(), claims.UserID, req, meta)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, application)
}

// ListMine godoc
// @Summary List own applications
// @Description Applications submitted by the authenticated student, with job titles attached
// @Tags Applications
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /applications/mine [get]
func (h *ApplicationHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	applications, err := h.service.ListByApplicant(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, applications, nil)
}

// ListForReview godoc
// @Summary List applications for review
// @Description Admins see every application; employers see applications to their own postings
// @Tags Applications
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /applications/review [get]
func (h *ApplicationHandler) ListForReview(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	applications, err := h.service.ListForReviewer(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, applications, nil)
}

// SetStatus godoc
// @Summary Set application status
// @Description Accept or reject an application; the latest decision wins
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body service.SetStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /applications/{id}/status [patch]
func (h *ApplicationHandler) SetStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	meta := models.LoginRequest{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
	application, err := h.service.SetStatus(c.Request.Context(), c.Param("id"), req, claims, meta)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, application, nil)
}
