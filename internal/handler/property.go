package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"rentcheck/internal/middleware"
	"rentcheck/internal/models"
	"rentcheck/internal/rent"
	"rentcheck/internal/store"
	"rentcheck/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// PropertyHandler serves the rental property CRUD and per-property history.
type PropertyHandler struct {
	Store *store.Store
}

func NewPropertyHandler(st *store.Store) *PropertyHandler {
	return &PropertyHandler{Store: st}
}

type propertyReq struct {
	Name             string `json:"name" binding:"required,max=128"`
	Address          string `json:"address" binding:"max=255"`
	RentAmount       string `json:"rent_amount" binding:"required"`
	Frequency        string `json:"frequency" binding:"required,oneof=weekly fortnightly monthly"`
	DueDay           int    `json:"due_day" binding:"required"`
	Keyword          string `json:"keyword" binding:"required"`
	TenantNickname   string `json:"tenant_nickname" binding:"max=64"`
	TolerancePercent string `json:"tolerance_percent"`
}

type propertyResp struct {
	ID               uint       `json:"id"`
	Name             string     `json:"name"`
	Address          string     `json:"address"`
	RentAmount       string     `json:"rent_amount"`
	Frequency        string     `json:"frequency"`
	DueDay           int        `json:"due_day"`
	Keyword          string     `json:"keyword"`
	TenantNickname   string     `json:"tenant_nickname"`
	TolerancePercent string     `json:"tolerance_percent"`
	Balance          string     `json:"balance"`
	RentCurrent      bool       `json:"rent_current"`
	Arrears          string     `json:"arrears"`
	NextDueDate      *time.Time `json:"next_due_date,omitempty"`
	LastSyncedAt     *time.Time `json:"last_synced_at,omitempty"`
	LastAlertAt      *time.Time `json:"last_alert_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func toPropertyResp(p *models.Property) propertyResp {
	standing := rent.StandingOf(p.Balance)
	resp := propertyResp{
		ID:               p.ID,
		Name:             p.Name,
		Address:          p.Address,
		RentAmount:       p.RentAmount.StringFixed(2),
		Frequency:        p.Frequency,
		DueDay:           p.DueDay,
		Keyword:          p.Keyword,
		TenantNickname:   p.TenantNickname,
		TolerancePercent: p.TolerancePercent.String(),
		Balance:          p.Balance.StringFixed(2),
		RentCurrent:      standing.Current,
		Arrears:          standing.Arrears.StringFixed(2),
		LastSyncedAt:     p.LastSyncedAt,
		LastAlertAt:      p.LastAlertAt,
		CreatedAt:        p.CreatedAt,
	}
	// the current cycle's close is when the next rent falls due
	if c, err := rent.CurrentCycle(p.Schedule(), time.Now()); err == nil {
		resp.NextDueDate = &c.End
	}
	return resp
}

// validate checks the request fields and builds the typed parts.
func (r *propertyReq) validate() (amount, tolerance decimal.Decimal, err error) {
	amount, err = decimal.NewFromString(r.RentAmount)
	if err != nil {
		return
	}
	if err = util.ValidateRentAmount(amount); err != nil {
		return
	}
	if err = util.ValidateKeyword(r.Keyword); err != nil {
		return
	}
	tolerance = decimal.Zero
	if r.TolerancePercent != "" {
		tolerance, err = decimal.NewFromString(r.TolerancePercent)
		if err != nil {
			return
		}
	}
	// due-day validity depends on the frequency; the schedule check owns it
	err = rent.Schedule{Frequency: rent.Frequency(r.Frequency), DueDay: r.DueDay}.Validate()
	return
}

func (h *PropertyHandler) CreateProperty(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not logged in")
		return
	}

	var req propertyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request")
		return
	}
	amount, tolerance, err := req.validate()
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}

	prop := models.Property{
		UserID:           user.ID,
		Name:             strings.TrimSpace(req.Name),
		Address:          strings.TrimSpace(req.Address),
		RentAmount:       amount,
		Frequency:        req.Frequency,
		DueDay:           req.DueDay,
		Keyword:          strings.TrimSpace(req.Keyword),
		TenantNickname:   strings.TrimSpace(req.TenantNickname),
		TolerancePercent: tolerance,
		Balance:          decimal.Zero,
	}
	if err := h.Store.CreateProperty(c.Request.Context(), &prop); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to create property")
		return
	}

	util.Success(c, util.Response{"property": toPropertyResp(&prop)})
}

func (h *PropertyHandler) ListProperties(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not logged in")
		return
	}

	props, err := h.Store.PropertiesByUser(c.Request.Context(), user.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to list properties")
		return
	}

	resp := make([]propertyResp, 0, len(props))
	for i := range props {
		resp = append(resp, toPropertyResp(&props[i]))
	}
	util.Success(c, util.Response{"properties": resp})
}

// ownedProperty loads the property from the :id param and checks it belongs
// to the current user.
func (h *PropertyHandler) ownedProperty(c *gin.Context) (*models.Property, bool) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not logged in")
		return nil, false
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid property id")
		return nil, false
	}
	prop, err := h.Store.PropertyByID(c.Request.Context(), uint(id))
	if err != nil || prop.UserID != user.ID {
		util.Error(c, http.StatusNotFound, util.CodeNotFound, "property not found")
		return nil, false
	}
	return prop, true
}

func (h *PropertyHandler) GetProperty(c *gin.Context) {
	prop, ok := h.ownedProperty(c)
	if !ok {
		return
	}
	util.Success(c, util.Response{"property": toPropertyResp(prop)})
}

func (h *PropertyHandler) UpdateProperty(c *gin.Context) {
	prop, ok := h.ownedProperty(c)
	if !ok {
		return
	}

	var req propertyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request")
		return
	}
	amount, tolerance, err := req.validate()
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}

	prop.Name = strings.TrimSpace(req.Name)
	prop.Address = strings.TrimSpace(req.Address)
	prop.RentAmount = amount
	prop.Frequency = req.Frequency
	prop.DueDay = req.DueDay
	prop.Keyword = strings.TrimSpace(req.Keyword)
	prop.TenantNickname = strings.TrimSpace(req.TenantNickname)
	prop.TolerancePercent = tolerance

	if err := h.Store.SaveProperty(c.Request.Context(), prop); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to update property")
		return
	}
	util.Success(c, util.Response{"property": toPropertyResp(prop)})
}

func (h *PropertyHandler) DeleteProperty(c *gin.Context) {
	prop, ok := h.ownedProperty(c)
	if !ok {
		return
	}
	if err := h.Store.DeleteProperty(c.Request.Context(), prop); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to delete property")
		return
	}
	util.Success(c, util.Response{"message": "deleted"})
}

// ListTransactions returns the bank transactions bound to one property.
func (h *PropertyHandler) ListTransactions(c *gin.Context) {
	prop, ok := h.ownedProperty(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	txns, err := h.Store.TransactionsByProperty(c.Request.Context(), prop.ID, limit)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to list transactions")
		return
	}

	resp := make([]gin.H, 0, len(txns))
	for _, t := range txns {
		resp = append(resp, gin.H{
			"external_id": t.ExternalID,
			"date":        t.Date,
			"amount":      t.Amount.StringFixed(2),
			"description": t.Description,
		})
	}
	util.Success(c, util.Response{"transactions": resp})
}
