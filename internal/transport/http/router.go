package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"voyant/internal/logger"
	"voyant/internal/store"
)

// LedgerReader is the read-only store surface the API exposes.
type LedgerReader interface {
	RecentTrades(ctx context.Context, limit int) ([]store.TradeRecordModel, error)
	RecentReflections(ctx context.Context, limit int) ([]store.ReflectionModel, error)
}

// SchedulerState reports loop liveness for /api/status. Optional.
type SchedulerState interface {
	LastRuns() (decision, reflection time.Time)
	FailStreak() int
}

type Router struct {
	ledger    LedgerReader
	scheduler SchedulerState
}

func NewRouter(ledger LedgerReader, scheduler SchedulerState) *Router {
	return &Router{ledger: ledger, scheduler: scheduler}
}

func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/trades", r.handleTrades)
	group.GET("/reflections", r.handleReflections)
	group.GET("/summary", r.handleSummary)
	group.GET("/status", r.handleStatus)
}

func (r *Router) handleTrades(c *gin.Context) {
	limit := clampLimit(c.DefaultQuery("limit", "50"))
	trades, err := r.ledger.RecentTrades(c.Request.Context(), limit)
	if err != nil {
		logger.Errorf("[api] trades query failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

func (r *Router) handleReflections(c *gin.Context) {
	limit := clampLimit(c.DefaultQuery("limit", "14"))
	refs, err := r.ledger.RecentReflections(c.Request.Context(), limit)
	if err != nil {
		logger.Errorf("[api] reflections query failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reflections": refs, "count": len(refs)})
}

// handleSummary aggregates the recent ledger into per-status and per-action
// counts, the at-a-glance view a dashboard polls.
func (r *Router) handleSummary(c *gin.Context) {
	trades, err := r.ledger.RecentTrades(c.Request.Context(), 500)
	if err != nil {
		logger.Errorf("[api] summary query failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	byStatus := map[string]int{}
	byAction := map[string]int{}
	degraded := 0
	for _, tr := range trades {
		byStatus[tr.Status]++
		byAction[tr.Action]++
		if tr.Degraded {
			degraded++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"cycles":    len(trades),
		"by_status": byStatus,
		"by_action": byAction,
		"degraded":  degraded,
	})
}

func (r *Router) handleStatus(c *gin.Context) {
	if r.scheduler == nil {
		c.JSON(http.StatusOK, gin.H{"scheduler": "unavailable"})
		return
	}
	lastDecision, lastReflection := r.scheduler.LastRuns()
	c.JSON(http.StatusOK, gin.H{
		"last_decision":   formatRun(lastDecision),
		"last_reflection": formatRun(lastReflection),
		"fail_streak":     r.scheduler.FailStreak(),
	})
}

func formatRun(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func clampLimit(raw string) int {
	limit, _ := strconv.Atoi(raw)
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	return limit
}
