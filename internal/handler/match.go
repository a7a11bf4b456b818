package handler

import (
	"context"
	"net/http"
	"time"

	"rentcheck/internal/middleware"
	"rentcheck/internal/models"
	"rentcheck/internal/store"
	"rentcheck/internal/util"

	"github.com/gin-gonic/gin"
)

// LedgerApplier folds newly assigned matches into the property balance.
type LedgerApplier interface {
	ApplyLedger(ctx context.Context, propertyID uint, now time.Time) error
}

// MatchHandler serves the manual review queue: transactions the matcher
// could not attribute to a property.
type MatchHandler struct {
	Store  *store.Store
	Ledger LedgerApplier
}

func NewMatchHandler(st *store.Store, ledger LedgerApplier) *MatchHandler {
	return &MatchHandler{Store: st, Ledger: ledger}
}

func matchResp(r *models.MatchRecord) gin.H {
	resp := gin.H{
		"id":          r.ID,
		"external_id": r.ExternalID,
		"date":        r.Date,
		"amount":      r.Amount.StringFixed(2),
		"description": r.Description,
		"basis":       r.Basis,
		"partial":     r.Partial,
	}
	if r.PropertyID != nil {
		resp["property_id"] = *r.PropertyID
	}
	return resp
}

// ListUnmatched returns transactions retained for manual assignment.
func (h *MatchHandler) ListUnmatched(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not logged in")
		return
	}

	records, err := h.Store.UnmatchedForUser(c.Request.Context(), user.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to list unmatched transactions")
		return
	}

	resp := make([]gin.H, 0, len(records))
	for i := range records {
		resp = append(resp, matchResp(&records[i]))
	}
	util.Success(c, util.Response{"unmatched": resp})
}

type assignReq struct {
	PropertyID uint `json:"property_id" binding:"required"`
}

// Assign binds an unmatched transaction to a property and applies it to the
// balance. Records already bound to a property cannot be reassigned.
func (h *MatchHandler) Assign(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not logged in")
		return
	}

	matchID := c.Param("id")
	var req assignReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request")
		return
	}

	ctx := c.Request.Context()
	prop, err := h.Store.PropertyByID(ctx, req.PropertyID)
	if err != nil || prop.UserID != user.ID {
		util.Error(c, http.StatusNotFound, util.CodeNotFound, "property not found")
		return
	}

	record, err := h.Store.AssignMatch(ctx, user.ID, matchID, prop.ID)
	if err != nil {
		util.Error(c, http.StatusConflict, util.CodeConflict, "transaction cannot be assigned")
		return
	}

	if err := h.Ledger.ApplyLedger(ctx, prop.ID, time.Now()); err != nil {
		// the assignment is persisted; the next sync tick will apply it
		util.Success(c, util.Response{"match": matchResp(record), "applied": false})
		return
	}
	util.Success(c, util.Response{"match": matchResp(record), "applied": true})
}
