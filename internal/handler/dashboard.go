package handler

import (
	"net/http"
	"strconv"
	"time"

	"rentcheck/internal/middleware"
	"rentcheck/internal/rent"
	"rentcheck/internal/store"
	"rentcheck/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// DashboardHandler serves the landlord's portfolio summary and the
// notification history. These stay readable even when the last sync failed.
type DashboardHandler struct {
	Store *store.Store
}

func NewDashboardHandler(st *store.Store) *DashboardHandler {
	return &DashboardHandler{Store: st}
}

func (h *DashboardHandler) Summary(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not logged in")
		return
	}

	ctx := c.Request.Context()
	props, err := h.Store.PropertiesByUser(ctx, user.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to load properties")
		return
	}
	unmatched, err := h.Store.UnmatchedForUser(ctx, user.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to load unmatched transactions")
		return
	}

	totalArrears := decimal.Zero
	inArrears := 0
	var lastSynced *time.Time
	for _, p := range props {
		standing := rent.StandingOf(p.Balance)
		if !standing.Current {
			inArrears++
			totalArrears = totalArrears.Add(standing.Arrears)
		}
		if p.LastSyncedAt != nil && (lastSynced == nil || p.LastSyncedAt.After(*lastSynced)) {
			lastSynced = p.LastSyncedAt
		}
	}

	util.Success(c, util.Response{
		"properties":      len(props),
		"in_arrears":      inArrears,
		"total_arrears":   totalArrears.StringFixed(2),
		"unmatched_count": len(unmatched),
		"bank_connected":  user.BankConnected(),
		"last_synced_at":  lastSynced,
	})
}

func (h *DashboardHandler) ListNotifications(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not logged in")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := h.Store.NotificationsByUser(c.Request.Context(), user.ID, limit)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to list notifications")
		return
	}

	resp := make([]gin.H, 0, len(records))
	for _, n := range records {
		resp = append(resp, gin.H{
			"id":          n.ID,
			"property_id": n.PropertyID,
			"kind":        n.Kind,
			"message":     n.Message,
			"sent_at":     n.SentAt,
			"cycle_start": n.WindowStart,
		})
	}
	util.Success(c, util.Response{"notifications": resp})
}
