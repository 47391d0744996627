package api

import (
	"alcyxob/workout-tracker/internal/domain"
	"alcyxob/workout-tracker/internal/reconcile"
	"alcyxob/workout-tracker/internal/service"
	"alcyxob/workout-tracker/internal/weekly"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// WeekHandler holds the week service dependency.
type WeekHandler struct {
	weekService service.WeekService
	policy      reconcile.Policy // configured policy, the base for request overrides
}

// NewWeekHandler creates a new WeekHandler.
func NewWeekHandler(weekService service.WeekService, policy reconcile.Policy) *WeekHandler {
	return &WeekHandler{weekService: weekService, policy: policy}
}

// --- DTOs for API (Data Transfer Objects) ---

// SettingsRequest replaces week settings. Omitted fields keep their value.
type SettingsRequest struct {
	Benchmarks     map[string]int    `json:"benchmarks"`
	CustomTypes    []string          `json:"customTypes"`
	TypeCategories map[string]string `json:"typeCategories"`
}

func (r *SettingsRequest) toDomain() domain.WeekSettings {
	if r == nil {
		return domain.WeekSettings{}
	}
	return domain.WeekSettings{
		Benchmarks:     r.Benchmarks,
		CustomTypes:    r.CustomTypes,
		TypeCategories: r.TypeCategories,
	}
}

// RebuildRequest tunes a rebuild or dedupe. Every field is optional.
type RebuildRequest struct {
	BurstWindow       string           `json:"burstWindow"` // Go duration, e.g. "5m"; "0s" collapses the whole day
	CollapseSupersets *bool            `json:"collapseSupersets"`
	DryRun            bool             `json:"dryRun"`
	Overrides         *SettingsRequest `json:"overrides"`
}

// CommentRequest sets or clears one day comment.
type CommentRequest struct {
	Text string `json:"text"`
}

// RestoreRequest names the snapshot to restore.
type RestoreRequest struct {
	Key string `json:"key" binding:"required"`
}

// WeekResponse is the DTO for returning a week.
type WeekResponse struct {
	Document   *domain.WeeklyDocument `json:"document"`
	Persisted  bool                   `json:"persisted"`
	Normalized bool                   `json:"normalized"`
	Warnings   []string               `json:"warnings,omitempty"`
}

// SnapshotResponse is one archived week.
type SnapshotResponse struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
	DownloadURL  string    `json:"downloadUrl,omitempty"`
}

// --- Handler Methods ---

// policyFromRequest builds an explicit policy when the request overrides any part of it.
// base supplies the fields the request leaves out.
func policyFromRequest(req RebuildRequest, base reconcile.Policy) (*reconcile.Policy, error) {
	if req.BurstWindow == "" && req.CollapseSupersets == nil {
		return nil, nil
	}
	p := base
	if req.BurstWindow != "" {
		d, err := time.ParseDuration(req.BurstWindow)
		if err != nil {
			return nil, err
		}
		p.BurstWindow = d
	}
	if req.CollapseSupersets != nil {
		p.CollapseSupersets = *req.CollapseSupersets
	}
	return &p, nil
}

func dryRunParam(c *gin.Context) bool {
	v, _ := strconv.ParseBool(c.Query("dryRun"))
	return v
}

// GetWeek godoc
// @Summary Get a week
// @Description Returns the weekly document for the week starting on weekKey. Missing weeks are synthesized, not stored.
// @Tags Weeks
// @Produce json
// @Param X-User-ID header string true "User scope"
// @Param weekKey path string true "Monday of the week, YYYY-MM-DD"
// @Success 200 {object} WeekResponse
// @Failure 400 {object} gin.H "Invalid week key"
// @Failure 409 {object} gin.H "Stored week cannot be normalized"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /weeks/{weekKey} [get]
func (h *WeekHandler) GetWeek(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user.")
		return
	}
	view, err := h.weekService.GetWeek(c.Request.Context(), userID, c.Param("weekKey"))
	if err != nil {
		abortWithServiceError(c, err, "Failed to retrieve week.")
		return
	}
	c.JSON(http.StatusOK, WeekResponse{
		Document:   view.Document,
		Persisted:  view.Persisted,
		Normalized: view.Normalized,
		Warnings:   view.Warnings,
	})
}

// InspectWeek godoc
// @Summary Inspect a stored week
// @Description Reports order, count and metadata problems without changing anything.
// @Tags Weeks
// @Produce json
// @Param X-User-ID header string true "User scope"
// @Param weekKey path string true "Monday of the week, YYYY-MM-DD"
// @Success 200 {object} weekly.Report
// @Failure 404 {object} gin.H "Week not found"
// @Router /weeks/{weekKey}/inspect [get]
func (h *WeekHandler) InspectWeek(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user.")
		return
	}
	var report *weekly.Report
	if report, err = h.weekService.InspectWeek(c.Request.Context(), userID, c.Param("weekKey")); err != nil {
		abortWithServiceError(c, err, "Failed to inspect week.")
		return
	}
	c.JSON(http.StatusOK, report)
}

// NormalizeWeek godoc
// @Summary Repair the day order of a week
// @Tags Weeks
// @Produce json
// @Param X-User-ID header string true "User scope"
// @Param weekKey path string true "Monday of the week, YYYY-MM-DD"
// @Param dryRun query bool false "Report without writing"
// @Success 200 {object} service.RepairOutcome
// @Failure 404 {object} gin.H "Week not found"
// @Failure 409 {object} gin.H "Days belong to another week"
// @Router /weeks/{weekKey}/normalize [post]
func (h *WeekHandler) NormalizeWeek(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user.")
		return
	}
	out, err := h.weekService.NormalizeWeek(c.Request.Context(), userID, c.Param("weekKey"), dryRunParam(c))
	if err != nil {
		abortWithServiceError(c, err, "Failed to normalize week.")
		return
	}
	c.JSON(http.StatusOK, out)
}

// RepairWeek godoc
// @Summary Normalize a week, rebuilding it from the session log if needed
// @Tags Weeks
// @Produce json
// @Param X-User-ID header string true "User scope"
// @Param weekKey path string true "Monday of the week, YYYY-MM-DD"
// @Param dryRun query bool false "Report without writing"
// @Success 200 {object} service.RepairOutcome
// @Router /weeks/{weekKey}/repair [post]
func (h *WeekHandler) RepairWeek(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user.")
		return
	}
	out, err := h.weekService.RepairWeek(c.Request.Context(), userID, c.Param("weekKey"), dryRunParam(c))
	if err != nil {
		abortWithServiceError(c, err, "Failed to repair week.")
		return
	}
	c.JSON(http.StatusOK, out)
}

// RebuildWeek godoc
// @Summary Rebuild a week from the session log
// @Tags Weeks
// @Accept json
// @Produce json
// @Param X-User-ID header string true "User scope"
// @Param weekKey path string true "Monday of the week, YYYY-MM-DD"
// @Param request body RebuildRequest false "Policy and settings overrides"
// @Success 200 {object} service.RepairOutcome
// @Failure 400 {object} gin.H "Invalid input"
// @Router /weeks/{weekKey}/rebuild [post]
func (h *WeekHandler) RebuildWeek(c *gin.Context) {
	h.rebuild(c, false)
}

// DedupeWeek godoc
// @Summary Rebuild a week and delete duplicate sessions from the log
// @Description Uses the cleanup policy (superset collapse on) unless the request overrides it.
// @Tags Weeks
// @Accept json
// @Produce json
// @Param X-User-ID header string true "User scope"
// @Param weekKey path string true "Monday of the week, YYYY-MM-DD"
// @Param request body RebuildRequest false "Policy and settings overrides"
// @Success 200 {object} service.RepairOutcome
// @Router /weeks/{weekKey}/dedupe [post]
func (h *WeekHandler) DedupeWeek(c *gin.Context) {
	h.rebuild(c, true)
}

func (h *WeekHandler) rebuild(c *gin.Context, dedupe bool) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user.")
		return
	}
	var req RebuildRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
			return
		}
	}
	base := h.policy
	if dedupe {
		base.CollapseSupersets = true
	}
	policy, err := policyFromRequest(req, base)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid burstWindow: "+err.Error())
		return
	}
	opts := service.RebuildOptions{
		Policy:    policy,
		Overrides: req.Overrides.toDomain(),
		DryRun:    req.DryRun || dryRunParam(c),
	}

	var out *service.RepairOutcome
	if dedupe {
		out, err = h.weekService.DedupeWeek(c.Request.Context(), userID, c.Param("weekKey"), opts)
	} else {
		out, err = h.weekService.RebuildWeek(c.Request.Context(), userID, c.Param("weekKey"), opts)
	}
	if err != nil {
		abortWithServiceError(c, err, "Failed to rebuild week.")
		return
	}
	c.JSON(http.StatusOK, out)
}

// UpdateSettings godoc
// @Summary Replace week settings
// @Tags Weeks
// @Accept json
// @Produce json
// @Param X-User-ID header string true "User scope"
// @Param weekKey path string true "Monday of the week, YYYY-MM-DD"
// @Param settings body SettingsRequest true "Settings; omitted fields keep their value"
// @Success 200 {object} domain.WeeklyDocument
// @Failure 400 {object} gin.H "Invalid input"
// @Router /weeks/{weekKey}/settings [put]
func (h *WeekHandler) UpdateSettings(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user.")
		return
	}
	var req SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	doc, err := h.weekService.UpdateSettings(c.Request.Context(), userID, c.Param("weekKey"), req.toDomain())
	if err != nil {
		abortWithServiceError(c, err, "Failed to update settings.")
		return
	}
	c.JSON(http.StatusOK, doc)
}

// SetComment godoc
// @Summary Set or clear a day comment
// @Tags Weeks
// @Accept json
// @Produce json
// @Param X-User-ID header string true "User scope"
// @Param weekKey path string true "Monday of the week, YYYY-MM-DD"
// @Param date path string true "Day within the week, YYYY-MM-DD"
// @Param type path string true "Workout type"
// @Param comment body CommentRequest true "Comment text; empty clears it"
// @Success 200 {object} domain.WeeklyDocument
// @Failure 409 {object} gin.H "Date outside the week"
// @Router /weeks/{weekKey}/days/{date}/comments/{type} [put]
func (h *WeekHandler) SetComment(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user.")
		return
	}
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	doc, err := h.weekService.SetComment(c.Request.Context(), userID, c.Param("weekKey"), c.Param("date"), c.Param("type"), req.Text)
	if err != nil {
		abortWithServiceError(c, err, "Failed to save comment.")
		return
	}
	c.JSON(http.StatusOK, doc)
}

// ListSnapshots godoc
// @Summary List archived versions of a week
// @Tags Snapshots
// @Produce json
// @Param X-User-ID header string true "User scope"
// @Param weekKey path string true "Monday of the week, YYYY-MM-DD"
// @Success 200 {array} SnapshotResponse
// @Failure 501 {object} gin.H "Snapshots are not configured"
// @Router /weeks/{weekKey}/snapshots [get]
func (h *WeekHandler) ListSnapshots(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user.")
		return
	}
	weekKey := c.Param("weekKey")
	infos, err := h.weekService.ListSnapshots(c.Request.Context(), userID, weekKey)
	if err != nil {
		abortWithServiceError(c, err, "Failed to list snapshots.")
		return
	}
	resp := make([]SnapshotResponse, len(infos))
	for i, info := range infos {
		resp[i] = SnapshotResponse{Key: info.Key, Size: info.Size, LastModified: info.LastModified}
		if url, err := h.weekService.SnapshotURL(c.Request.Context(), userID, weekKey, info.Key); err == nil {
			resp[i].DownloadURL = url
		}
	}
	c.JSON(http.StatusOK, resp)
}

// RestoreSnapshot godoc
// @Summary Restore a week from a snapshot
// @Description The current version is archived before it is replaced.
// @Tags Snapshots
// @Accept json
// @Produce json
// @Param X-User-ID header string true "User scope"
// @Param weekKey path string true "Monday of the week, YYYY-MM-DD"
// @Param request body RestoreRequest true "Snapshot key"
// @Success 200 {object} domain.WeeklyDocument
// @Failure 404 {object} gin.H "Snapshot not found"
// @Router /weeks/{weekKey}/restore [post]
func (h *WeekHandler) RestoreSnapshot(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user.")
		return
	}
	var req RestoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	doc, err := h.weekService.RestoreSnapshot(c.Request.Context(), userID, c.Param("weekKey"), req.Key)
	if err != nil {
		abortWithServiceError(c, err, "Failed to restore snapshot.")
		return
	}
	c.JSON(http.StatusOK, doc)
}
