package api

import (
	"alcyxob/workout-tracker/internal/domain"
	"alcyxob/workout-tracker/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SessionHandler exposes the session log.
type SessionHandler struct {
	weekService service.WeekService
}

func NewSessionHandler(weekService service.WeekService) *SessionHandler {
	return &SessionHandler{weekService: weekService}
}

// --- DTOs ---

// LogSessionRequest is one completed session sent by the logging flow.
type LogSessionRequest struct {
	DateISO       string   `json:"dateISO" binding:"omitempty,datetime=2006-01-02"`
	SessionTypes  []string `json:"sessionTypes" binding:"required,min=1"`
	CompletedAt   int64    `json:"completedAt" binding:"omitempty,min=0"` // Epoch millis
	Manual        bool     `json:"manual"`
	ExerciseCount *int     `json:"exerciseCount" binding:"omitempty,min=0"`
}

// SessionResponse is the DTO for one logged session.
type SessionResponse struct {
	ID            string   `json:"id"`
	DateISO       string   `json:"dateISO,omitempty"`
	SessionTypes  []string `json:"sessionTypes"`
	CompletedAt   int64    `json:"completedAt,omitempty"`
	Manual        bool     `json:"manual"`
	ExerciseCount *int     `json:"exerciseCount,omitempty"`
}

// LogSessionResponse returns the stored session with the updated week.
type LogSessionResponse struct {
	Session SessionResponse        `json:"session"`
	Week    *domain.WeeklyDocument `json:"week"`
	Rebuilt bool                   `json:"rebuilt"`
}

// MapSessionToResponse converts a domain.SessionEvent to SessionResponse DTO.
func MapSessionToResponse(ev *domain.SessionEvent) SessionResponse {
	if ev == nil {
		return SessionResponse{}
	}
	return SessionResponse{
		ID:            ev.ID,
		DateISO:       ev.DateISO,
		SessionTypes:  ev.SessionTypes,
		CompletedAt:   ev.Timestamp(),
		Manual:        ev.Manual,
		ExerciseCount: ev.ExerciseCount,
	}
}

// MapSessionsToResponse converts a slice of domain.SessionEvent to a slice of SessionResponse DTO.
func MapSessionsToResponse(events []domain.SessionEvent) []SessionResponse {
	responses := make([]SessionResponse, len(events))
	for i := range events {
		responses[i] = MapSessionToResponse(&events[i])
	}
	return responses
}

// --- Handler Methods ---

// LogSession godoc
// @Summary Log a completed session
// @Description Appends the session to the log and folds it into its week. Without dateISO the day is derived from completedAt.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param X-User-ID header string true "User scope"
// @Param session body LogSessionRequest true "Session details"
// @Success 201 {object} LogSessionResponse
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 500 {object} gin.H "Internal Server Error"
// @Router /sessions [post]
func (h *SessionHandler) LogSession(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user.")
		return
	}
	var req LogSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	res, err := h.weekService.LogSession(c.Request.Context(), userID, service.LogSessionInput{
		DateISO:       req.DateISO,
		SessionTypes:  req.SessionTypes,
		CompletedAt:   req.CompletedAt,
		Manual:        req.Manual,
		ExerciseCount: req.ExerciseCount,
	})
	if err != nil {
		abortWithServiceError(c, err, "Failed to log session.")
		return
	}
	c.JSON(http.StatusCreated, LogSessionResponse{
		Session: MapSessionToResponse(&res.Event),
		Week:    res.Document,
		Rebuilt: res.Rebuilt,
	})
}

// ListSessions godoc
// @Summary List logged sessions
// @Tags Sessions
// @Produce json
// @Param X-User-ID header string true "User scope"
// @Param from query string false "First day, YYYY-MM-DD"
// @Param to query string false "Last day, YYYY-MM-DD"
// @Success 200 {array} SessionResponse
// @Failure 400 {object} gin.H "Invalid range"
// @Router /sessions [get]
func (h *SessionHandler) ListSessions(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user.")
		return
	}
	from, to := c.Query("from"), c.Query("to")
	if (from == "") != (to == "") {
		abortWithError(c, http.StatusBadRequest, "Both from and to are required for a range.")
		return
	}
	events, err := h.weekService.ListSessions(c.Request.Context(), userID, from, to)
	if err != nil {
		abortWithServiceError(c, err, "Failed to list sessions.")
		return
	}
	c.JSON(http.StatusOK, MapSessionsToResponse(events))
}

// DeleteSession godoc
// @Summary Delete a logged session
// @Description Removes the session and rebuilds the week it belonged to.
// @Tags Sessions
// @Produce json
// @Param X-User-ID header string true "User scope"
// @Param sessionId path string true "Session ID"
// @Success 200 {object} service.RepairOutcome
// @Success 204 "Deleted; the session had no day so no week changed"
// @Failure 404 {object} gin.H "Session not found"
// @Router /sessions/{sessionId} [delete]
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user.")
		return
	}
	out, err := h.weekService.DeleteSession(c.Request.Context(), userID, c.Param("sessionId"))
	if err != nil {
		abortWithServiceError(c, err, "Failed to delete session.")
		return
	}
	if out == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, out)
}
