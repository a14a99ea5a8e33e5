package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ShouryaBatra/homestead-careers-api/internal/models"
	"github.com/ShouryaBatra/homestead-careers-api/internal/service"
	appErrors "github.com/ShouryaBatra/homestead-careers-api/pkg/errors"
	"github.com/ShouryaBatra/homestead-careers-api/pkg/response"
)

// PostingHandler handles job posting endpoints.
type PostingHandler struct {
	service *service.PostingService
}

// NewPostingHandler creates a new posting handler.
func NewPostingHandler(svc *service.PostingService) *PostingHandler {
	return &PostingHandler{service: svc}
}

// Create godoc
// @Summary Create posting
// @Description Create a job posting; it stays hidden until an admin approves it
// @Tags Postings
// @Accept json
// @Produce json
// @Param payload body service.CreatePostingRequest true "Posting payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /postings [post]
func (h *PostingHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreatePostingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid posting payload"))
		return
	}

	meta := models.LoginRequest{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
	posting, err := h.service.Create(c.Request.Context(), claims.UserID, req, meta)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, posting)
}

// ListApproved godoc
// @Summary List approved postings
// @Description The public job board; only approved postings appear
// @Tags Postings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /postings [get]
func (h *PostingHandler) ListApproved(c *gin.Context) {
	postings, err := h.service.ListApproved(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, postings, nil)
}

// ListMine godoc
// @Summary List own postings
// @Description Postings created by the authenticated user, regardless of approval
// @Tags Postings
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /postings/mine [get]
func (h *PostingHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	postings, err := h.service.ListByOwner(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, postings, nil)
}

// ListAll godoc
// @Summary List all postings
// @Description Admin view of every posting, optionally filtered by approval state
// @Tags Postings
// @Produce json
// @Param status query string false "Filter: approved or pending"
// @Param approved query bool false "Filter by approved flag"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /postings/all [get]
func (h *PostingHandler) ListAll(c *gin.Context) {
	var filter models.PostingFilter

	switch c.Query("status") {
	case "approved":
		val := true
		filter.Approved = &val
	case "pending":
		val := false
		filter.Approved = &val
	}

	if approved := c.Query("approved"); approved != "" {
		if val, err := strconv.ParseBool(approved); err == nil {
			filter.Approved = &val
		}
	}

	postings, err := h.service.ListAll(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, postings, nil)
}

// Get godoc
// @Summary Get posting
// @Description Get posting detail; unapproved postings are visible only to their owner or an admin
// @Tags Postings
// @Produce json
// @Param id path string true "Posting ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /postings/{id} [get]
func (h *PostingHandler) Get(c *gin.Context) {
	posting, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, posting, nil)
}

// Approve godoc
// @Summary Approve posting
// @Description Publish a posting to the job board; approving twice is a no-op
// @Tags Postings
// @Produce json
// @Param id path string true "Posting ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /postings/{id}/approve [post]
func (h *PostingHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	meta := models.LoginRequest{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
	posting, err := h.service.Approve(c.Request.Context(), c.Param("id"), claims.UserID, meta)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, posting, nil)
}

// Delete godoc
// @Summary Delete posting
// @Description Remove a posting; existing applications are kept
// @Tags Postings
// @Produce json
// @Param id path string true "Posting ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /postings/{id} [delete]
func (h *PostingHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	meta := models.LoginRequest{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claims.UserID, meta); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
