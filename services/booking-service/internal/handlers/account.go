package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/calbook/calbook/libs/auth"
	"github.com/calbook/calbook/libs/httpx"
	"github.com/calbook/calbook/services/booking-service/internal/model"
	"github.com/calbook/calbook/services/booking-service/internal/storage"
)

type storeTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handler) Sellers(w http.ResponseWriter, r *http.Request) {
	sellers, err := h.accounts.ListSellers(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list sellers failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to fetch sellers")
		return
	}
	items := make([]userItem, 0, len(sellers))
	for _, s := range sellers {
		items = append(items, toUserItem(s))
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	u, err := h.accounts.GetByID(r.Context(), id.UserID)
	if errors.Is(err, model.ErrUserNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "load profile failed", "user_id", id.UserID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toProfileItem(u))
}

// BecomeSeller promotes the caller to the seller role.
func (h *Handler) BecomeSeller(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	u, err := h.accounts.SetRole(r.Context(), id.UserID, model.RoleSeller)
	if errors.Is(err, model.ErrUserNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "set role failed", "user_id", id.UserID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to update role")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toProfileItem(u))
}

// StoreToken saves the caller's calendar refresh token, creating the user
// record on first sign-in.
func (h *Handler) StoreToken(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	if strings.TrimSpace(id.Email) == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "identity has no email")
		return
	}

	var req storeTokenRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	token := strings.TrimSpace(req.RefreshToken)
	if token == "" {
		httpx.WriteError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	u, err := h.accounts.UpsertCredential(r.Context(), storage.CredentialUpsert{
		ID:           id.UserID,
		Email:        strings.ToLower(strings.TrimSpace(id.Email)),
		Name:         id.Name,
		Image:        id.Image,
		RefreshToken: token,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "store refresh token failed", "user_id", id.UserID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to store refresh token")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toProfileItem(u))
}
