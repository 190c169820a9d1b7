package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/domain"
)

type Accounts interface {
	Register(ctx context.Context, name, email, password string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*domain.User, error)
	GetUser(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
}

type SessionWriter interface {
	Create(ctx context.Context, userID string) (string, error)
	Delete(ctx context.Context, token string) error
}

type AccountHandler struct {
	accounts   Accounts
	sessions   SessionWriter
	sessionTTL time.Duration
	secure     bool
}

func NewAccountHandler(accounts Accounts, sessions SessionWriter, sessionTTL time.Duration, secureCookies bool) *AccountHandler {
	return &AccountHandler{
		accounts:   accounts,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		secure:     secureCookies,
	}
}

type credentialsDTO struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	user, err := h.accounts.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	user, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	token, err := h.sessions.Create(r.Context(), user.ID.Hex())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setSessionCookie(w, token, h.sessionTTL)
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "user": user})
}

func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if err := h.sessions.Delete(r.Context(), cookie.Value); err != nil {
			log.Warn().Err(err).Msg("session delete failed on logout")
		}
	}

	h.setSessionCookie(w, "", -time.Second)
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Session reports the caller's membership state; the cart syncer polls this
// to detect login/logout transitions.
func (h *AccountHandler) Session(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusOK, map[string]interface{}{"status": "unauthenticated"})
		return
	}

	user, err := h.accounts.GetUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "authenticated",
		"user":   user,
	})
}

func (h *AccountHandler) setSessionCookie(w http.ResponseWriter, token string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
