package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"moodrisk/internal/lexicon"
	"moodrisk/internal/metrics"
	"moodrisk/internal/models"
	"moodrisk/internal/repository"
	"moodrisk/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultPageSize    = 20
	maxPageSize        = 100
	defaultHistoryDays = 30
)

// ModelInfo describes the configured AI client on the health endpoint
type ModelInfo interface {
	GetModelInfo() map[string]interface{}
}

// Handler handles HTTP requests
type Handler struct {
	journal   *service.Journal
	analytics *service.Analytics
	alerts    *service.Alerts
	lexicon   *lexicon.Lexicon
	ai        ModelInfo
	metrics   *metrics.Collector
	logger    *zap.Logger
}

// NewHandler creates a new API handler. ai and collector may be nil.
func NewHandler(
	journal *service.Journal,
	analytics *service.Analytics,
	alerts *service.Alerts,
	lex *lexicon.Lexicon,
	ai ModelInfo,
	collector *metrics.Collector,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		journal:   journal,
		analytics: analytics,
		alerts:    alerts,
		lexicon:   lex,
		ai:        ai,
		metrics:   collector,
		logger:    logger,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.Use(h.observe())

	api := r.Group("/api/v1")
	{
		// Stateless risk scoring
		api.POST("/screen", h.Screen)
		api.POST("/analyze", h.Analyze)

		users := api.Group("/users/:userId")

		users.POST("/entries", h.CreateEntry)
		users.GET("/entries", h.ListEntries)
		users.GET("/entries/:id", h.GetEntry)
		users.POST("/entries/:id/reanalyze", h.ReanalyzeEntry)

		users.GET("/trajectory", h.GetTrajectory)
		users.GET("/risk-history", h.GetRiskHistory)
		users.GET("/summary", h.GetSummary)
		users.GET("/distortions", h.GetDistortions)

		users.GET("/alerts", h.ListAlerts)
		users.GET("/alerts/unread", h.ListUnreadAlerts)
		users.GET("/alerts/unread-count", h.CountUnreadAlerts)
		users.PUT("/alerts/read-all", h.MarkAllAlertsRead)
		users.PUT("/alerts/:id/read", h.MarkAlertRead)
	}

	r.GET("/health", h.HealthCheck)
	r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
}

// observe records request counts and latency by route template
func (h *Handler) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		h.metrics.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

// Screen runs the lexicon-only quick screen
func (h *Handler) Screen(c *gin.Context) {
	var req models.ScreenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.journal.QuickScreen(req.Text))
}

// Analyze fuses caller supplied AI values with the lexicon
func (h *Handler) Analyze(c *gin.Context) {
	var req models.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.journal.AnalyzeRisk(req))
}

// CreateEntry analyzes and stores a journal entry
func (h *Handler) CreateEntry(c *gin.Context) {
	var req models.EntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.journal.CreateEntry(c.Request.Context(), c.Param("userId"), req)
	if err != nil {
		h.fail(c, err, "failed to create entry")
		return
	}

	c.JSON(http.StatusCreated, result)
}

// ListEntries returns a page of entries, most recent first
func (h *Handler) ListEntries(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultPageSize)
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	limit = min(limit, maxPageSize)

	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}

	entries, err := h.journal.Entries(c.Request.Context(), c.Param("userId"), limit, offset)
	if err != nil {
		h.fail(c, err, "failed to get entries")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"limit":   limit,
		"offset":  offset,
		"total":   len(entries),
	})
}

// GetEntry returns one entry of the user
func (h *Handler) GetEntry(c *gin.Context) {
	entry, err := h.journal.Entry(c.Request.Context(), c.Param("userId"), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to get entry")
		return
	}

	c.JSON(http.StatusOK, entry)
}

// ReanalyzeEntry runs the analysis again on a stored entry
func (h *Handler) ReanalyzeEntry(c *gin.Context) {
	result, err := h.journal.ReanalyzeEntry(c.Request.Context(), c.Param("userId"), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to reanalyze entry")
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetTrajectory classifies the user's latest moods
func (h *Handler) GetTrajectory(c *gin.Context) {
	result, err := h.analytics.Trajectory(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.fail(c, err, "failed to get trajectory")
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetRiskHistory returns risk points of the last ?days= days
func (h *Handler) GetRiskHistory(c *gin.Context) {
	days, err := queryInt(c, "days", defaultHistoryDays)
	if err != nil || days < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid days"})
		return
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	points, err := h.analytics.RiskHistory(c.Request.Context(), c.Param("userId"), since)
	if err != nil {
		h.fail(c, err, "failed to get risk history")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"days":   days,
		"points": points,
	})
}

// GetSummary returns aggregate statistics
func (h *Handler) GetSummary(c *gin.Context) {
	summary, err := h.analytics.Summary(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.fail(c, err, "failed to get summary")
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetDistortions returns how often each cognitive distortion appeared
func (h *Handler) GetDistortions(c *gin.Context) {
	freq, err := h.analytics.DistortionFrequency(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.fail(c, err, "failed to get distortions")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"frequency": freq,
		"top":       service.TopDistortions(freq),
	})
}

func (h *Handler) ListAlerts(c *gin.Context) {
	alerts, err := h.alerts.List(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.fail(c, err, "failed to get alerts")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts": alerts,
		"total":  len(alerts),
	})
}

func (h *Handler) ListUnreadAlerts(c *gin.Context) {
	alerts, err := h.alerts.Unread(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.fail(c, err, "failed to get alerts")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts": alerts,
		"total":  len(alerts),
	})
}

func (h *Handler) CountUnreadAlerts(c *gin.Context) {
	count, err := h.alerts.UnreadCount(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.fail(c, err, "failed to count alerts")
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *Handler) MarkAlertRead(c *gin.Context) {
	alertID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert ID"})
		return
	}

	if err := h.alerts.MarkRead(c.Request.Context(), c.Param("userId"), alertID); err != nil {
		h.fail(c, err, "failed to mark alert read")
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": alertID, "is_read": true})
}

func (h *Handler) MarkAllAlertsRead(c *gin.Context) {
	n, err := h.alerts.MarkAllRead(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.fail(c, err, "failed to mark alerts read")
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": n})
}

// HealthCheck reports lexicon and AI provider state
func (h *Handler) HealthCheck(c *gin.Context) {
	status := "ok"
	if !h.lexicon.Ready() {
		status = "degraded"
	}

	var ai interface{} = "disabled"
	if h.ai != nil {
		ai = h.ai.GetModelInfo()
	}

	c.JSON(http.StatusOK, gin.H{
		"status": status,
		"lexicon": gin.H{
			"words":          h.lexicon.Size(),
			"crisis_phrases": h.lexicon.CrisisPhraseCount(),
		},
		"ai": ai,
	})
}

// fail maps service errors onto status codes. Internal details stay in the log.
func (h *Handler) fail(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrInvalidEntry):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error(message,
			zap.String("path", c.FullPath()),
			zap.String("user_id", c.Param("userId")),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
