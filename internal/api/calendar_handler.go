package api

import (
	"alcyxob/workout-tracker/internal/calendar"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// CalendarHandler answers week-boundary questions for clients.
type CalendarHandler struct {
	loc *time.Location
	now func() time.Time
}

func NewCalendarHandler(loc *time.Location) *CalendarHandler {
	if loc == nil {
		loc = time.Local
	}
	return &CalendarHandler{loc: loc, now: time.Now}
}

// CalendarWeekResponse describes the Monday-based week containing a date.
type CalendarWeekResponse struct {
	Date       string   `json:"date"`
	WeekKey    string   `json:"weekKey"`
	Dates      []string `json:"dates"`
	DayIndex   int      `json:"dayIndex"`
	WeekNumber int      `json:"weekNumber,omitempty"` // Weeks since the "since" query date, 1-based
}

// GetWeek godoc
// @Summary Resolve the week containing a date
// @Tags Calendar
// @Produce json
// @Param date query string false "Day, YYYY-MM-DD; defaults to today"
// @Param since query string false "Week 1 of the program, YYYY-MM-DD"
// @Success 200 {object} CalendarWeekResponse
// @Failure 400 {object} gin.H "Invalid date"
// @Router /calendar/week [get]
func (h *CalendarHandler) GetWeek(c *gin.Context) {
	day := calendar.ToISODate(h.now().In(h.loc))
	if q := c.Query("date"); q != "" {
		day = q
	}
	t, err := calendar.ParseISODate(day, time.UTC)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	weekKey := calendar.WeekKeyOf(t)
	dates, err := calendar.WeekDates(weekKey)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to compute week dates.")
		return
	}
	resp := CalendarWeekResponse{
		Date:     calendar.ToISODate(t),
		WeekKey:  weekKey,
		Dates:    dates,
		DayIndex: calendar.DayIndex(weekKey, calendar.ToISODate(t)),
	}
	if since := c.Query("since"); since != "" {
		start, err := calendar.ParseISODate(since, time.UTC)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		resp.WeekNumber = calendar.WeeksBetween(calendar.MondayOf(start), calendar.MondayOf(t)) + 1
	}
	c.JSON(http.StatusOK, resp)
}
