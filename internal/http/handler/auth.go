package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"reminders/internal/auth"
)

const maxClientIDLen = 200

type AuthHandler struct {
	JWT *auth.JWT
	Log *slog.Logger
}

type tokenReq struct {
	ClientID string `json:"client_id"`
}

type tokenResp struct {
	Token     string    `json:"token"`
	ClientID  string    `json:"client_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Token issues a device token for client_id. The route sits behind the
// static API token only.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req tokenReq
	if err := decode(r, &req); err != nil {
		Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.ClientID = strings.TrimSpace(req.ClientID)
	if req.ClientID == "" || len(req.ClientID) > maxClientIDLen {
		Error(w, "client_id is required (max 200 characters)", http.StatusBadRequest)
		return
	}

	token, exp, err := h.JWT.Sign(req.ClientID)
	if err != nil {
		WriteErr(w, h.Log, err)
		return
	}
	JSON(w, tokenResp{Token: token, ClientID: req.ClientID, ExpiresAt: exp}, http.StatusOK)
}
