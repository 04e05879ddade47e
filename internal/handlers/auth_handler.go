// File: internal/handlers/auth_handler.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/iyunix/go-roomchat/internal/auth"
	"github.com/iyunix/go-roomchat/internal/domain"
	"github.com/iyunix/go-roomchat/internal/services"
)

type AuthHandler struct {
	secretKey []byte
	logger    services.Logger
}

func NewAuthHandler(secretKey []byte, logger services.Logger) *AuthHandler {
	return &AuthHandler{secretKey: secretKey, logger: logger}
}

type tokenRequest struct {
	Name string `json:"name"`
	Tier string `json:"tier"`
}

// IssueToken hands out a signed identity token. Tier assignment would
// normally come from a billing system; here the request states it.
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, "Name is required", http.StatusBadRequest)
		return
	}

	token, err := auth.GenerateToken(req.Name, domain.ParseTier(req.Tier), h.secretKey)
	if err != nil {
		h.logger.Error("token generation failed", "name", req.Name, "error", err)
		writeError(w, "Could not issue token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
