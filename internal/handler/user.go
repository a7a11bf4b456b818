package handler

import (
	"net/http"

	"rentcheck/internal/middleware"
	"rentcheck/internal/util"

	"github.com/gin-gonic/gin"
)

// UserHandler serves the current-user profile.
type UserHandler struct{}

func NewUserHandler() *UserHandler {
	return &UserHandler{}
}

func (h *UserHandler) GetMe(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not logged in")
		return
	}

	util.Success(c, util.Response{
		"user": gin.H{
			"id":                user.ID,
			"email":             user.Email,
			"display_name":      user.DisplayName,
			"bank_connected":    user.BankConnected(),
			"bank_connected_at": user.BankConnectedAt,
			"last_login_at":     user.LastLoginAt,
		},
	})
}
