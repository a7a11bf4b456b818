package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"rentcheck/internal/bank"
	"rentcheck/internal/middleware"
	"rentcheck/internal/store"
	"rentcheck/internal/util"

	"github.com/gin-gonic/gin"
)

// Syncer runs one property through the reconciliation engine on demand.
type Syncer interface {
	SyncProperty(ctx context.Context, propertyID uint, now time.Time) error
}

// BankHandler manages the user's bank connection and manual syncs.
type BankHandler struct {
	Store  *store.Store
	Bank   bank.Client
	Syncer Syncer
	EncKey string
}

func NewBankHandler(st *store.Store, client bank.Client, syncer Syncer, encKey string) *BankHandler {
	return &BankHandler{Store: st, Bank: client, Syncer: syncer, EncKey: encKey}
}

type connectReq struct {
	// a user access token pasted from the provider's developer portal, or an
	// OAuth authorization code plus the redirect URI it was issued for
	Token       string `json:"token"`
	Code        string `json:"code"`
	RedirectURI string `json:"redirect_uri"`
}

// Connect links a bank account. The token is verified with a live accounts
// call before it is sealed and stored; a bad token is rejected here rather
// than failing silently on the first sync.
func (h *BankHandler) Connect(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not logged in")
		return
	}

	var req connectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request")
		return
	}

	ctx := c.Request.Context()
	token := strings.TrimSpace(req.Token)
	if token == "" && req.Code != "" {
		exchanged, err := h.Bank.ExchangeCode(ctx, req.Code, req.RedirectURI)
		if err != nil {
			util.Error(c, http.StatusBadGateway, util.CodeBankAuth, "authorization code exchange failed")
			return
		}
		token = exchanged
	}
	if token == "" {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "token or code is required")
		return
	}

	accounts, err := h.Bank.Accounts(ctx, token)
	if err != nil {
		if errors.Is(err, bank.ErrAuthFailed) {
			util.Error(c, http.StatusUnauthorized, util.CodeBankAuth, "bank rejected the token")
		} else {
			util.Error(c, http.StatusBadGateway, util.CodeServerErr, "bank is unreachable, try again")
		}
		return
	}

	sealed, err := util.SealToken(h.EncKey, token)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to store token")
		return
	}

	now := time.Now()
	user.BankTokenEnc = sealed
	user.BankConnectedAt = &now
	if err := h.Store.SaveUser(ctx, user); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to store token")
		return
	}

	util.Success(c, util.Response{
		"message":  "bank connected",
		"accounts": accountList(accounts),
	})
}

func (h *BankHandler) Disconnect(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not logged in")
		return
	}

	user.BankTokenEnc = ""
	user.BankConnectedAt = nil
	if err := h.Store.SaveUser(c.Request.Context(), user); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to disconnect")
		return
	}
	util.Success(c, util.Response{"message": "bank disconnected"})
}

// Accounts lists the linked accounts using the stored token.
func (h *BankHandler) Accounts(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not logged in")
		return
	}
	if !user.BankConnected() {
		util.Error(c, http.StatusBadRequest, util.CodeBankAuth, "no bank connection")
		return
	}

	token, err := util.OpenToken(h.EncKey, user.BankTokenEnc)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to read stored token")
		return
	}
	accounts, err := h.Bank.Accounts(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, bank.ErrAuthFailed) {
			util.Error(c, http.StatusUnauthorized, util.CodeBankAuth, "bank connection needs re-authorization")
		} else {
			util.Error(c, http.StatusBadGateway, util.CodeServerErr, "bank is unreachable, try again")
		}
		return
	}

	util.Success(c, util.Response{"accounts": accountList(accounts)})
}

// SyncProperty forces one property through the sync engine outside the tick
// schedule. The per-cycle poll budget still applies.
func (h *BankHandler) SyncProperty(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not logged in")
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid property id")
		return
	}
	ctx := c.Request.Context()
	prop, err := h.Store.PropertyByID(ctx, uint(id))
	if err != nil || prop.UserID != user.ID {
		util.Error(c, http.StatusNotFound, util.CodeNotFound, "property not found")
		return
	}

	if err := h.Syncer.SyncProperty(ctx, prop.ID, time.Now()); err != nil {
		if errors.Is(err, bank.ErrAuthFailed) {
			util.Error(c, http.StatusUnauthorized, util.CodeBankAuth, "bank connection needs re-authorization")
		} else {
			util.Error(c, http.StatusBadGateway, util.CodeServerErr, "sync failed, try again")
		}
		return
	}

	fresh, err := h.Store.PropertyByID(ctx, prop.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to reload property")
		return
	}
	util.Success(c, util.Response{"property": toPropertyResp(fresh)})
}

func accountList(accounts []bank.Account) []gin.H {
	resp := make([]gin.H, 0, len(accounts))
	for _, a := range accounts {
		resp = append(resp, gin.H{
			"id":   a.ID,
			"name": a.Name,
			"bank": a.Bank,
			"type": a.Type,
		})
	}
	return resp
}
