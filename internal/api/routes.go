package api

import (
	"alcyxob/workout-tracker/internal/metrics"
	"alcyxob/workout-tracker/internal/reconcile"
	"alcyxob/workout-tracker/internal/service"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RouterOptions carries the non-service inputs of SetupRoutes.
type RouterOptions struct {
	Policy      reconcile.Policy // base for per-request policy overrides
	Location    *time.Location   // timezone of the calendar endpoint
	Metrics     *metrics.Metrics // nil disables the metrics route
	MetricsPath string
}

func SetupRoutes(router *gin.Engine, weekService service.WeekService, opts RouterOptions) {
	weekHandler := NewWeekHandler(weekService, opts.Policy)
	sessionHandler := NewSessionHandler(weekService)
	calendarHandler := NewCalendarHandler(opts.Location)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if opts.Metrics != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(opts.Metrics.Handler()))
	}

	apiV1 := router.Group("/api/v1")
	{
		// GET /api/v1/calendar/week?date=YYYY-MM-DD
		apiV1.GET("/calendar/week", calendarHandler.GetWeek)
	}

	scoped := apiV1.Group("")
	scoped.Use(UserScopeMiddleware())
	{
		// --- Week Routes ---
		weekGroup := scoped.Group("/weeks/:weekKey")
		{
			weekGroup.GET("", weekHandler.GetWeek)
			weekGroup.GET("/inspect", weekHandler.InspectWeek)
			weekGroup.POST("/normalize", weekHandler.NormalizeWeek)
			weekGroup.POST("/repair", weekHandler.RepairWeek)
			weekGroup.POST("/rebuild", weekHandler.RebuildWeek)
			weekGroup.POST("/dedupe", weekHandler.DedupeWeek)
			weekGroup.PUT("/settings", weekHandler.UpdateSettings)
			// PUT /api/v1/weeks/{weekKey}/days/{date}/comments/{type}
			weekGroup.PUT("/days/:date/comments/:type", weekHandler.SetComment)

			// --- Snapshots ---
			weekGroup.GET("/snapshots", weekHandler.ListSnapshots)
			weekGroup.POST("/restore", weekHandler.RestoreSnapshot)
		}

		// --- Session Log Routes ---
		sessionGroup := scoped.Group("/sessions")
		{
			sessionGroup.POST("", sessionHandler.LogSession)
			sessionGroup.GET("", sessionHandler.ListSessions)
			sessionGroup.DELETE("/:sessionId", sessionHandler.DeleteSession)
		}
	}
}
