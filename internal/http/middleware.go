package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/session"
)

// SessionCookie is the name of the cookie carrying the session token.
const SessionCookie = "storefront_session"

type ctxKey int

const userIDKey ctxKey = iota

// Sessions is the slice of session.Store the middleware needs.
type Sessions interface {
	Get(ctx context.Context, token string) (string, error)
}

// ContextWithUserID is exported for handler tests.
func ContextWithUserID(ctx context.Context, userID primitive.ObjectID) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func userIDFromContext(ctx context.Context) (primitive.ObjectID, bool) {
	id, ok := ctx.Value(userIDKey).(primitive.ObjectID)
	return id, ok
}

// SessionMiddleware resolves the session cookie to a user id and stores it
// in the request context. Requests without a valid session pass through
// anonymously; individual handlers decide whether that is acceptable.
func SessionMiddleware(sessions Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookie)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			userHex, err := sessions.Get(r.Context(), cookie.Value)
			if err != nil {
				if !errors.Is(err, session.ErrSessionNotFound) {
					log.Warn().Err(err).Msg("session lookup failed")
				}
				next.ServeHTTP(w, r)
				return
			}

			userID, err := primitive.ObjectIDFromHex(userHex)
			if err != nil {
				log.Warn().Str("user_id", userHex).Msg("session holds malformed user id")
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
		})
	}
}

// userLookup is what RequireAdmin needs from the account service.
type userLookup interface {
	IsAdmin(ctx context.Context, userID primitive.ObjectID) (bool, error)
}

// RequireAdmin rejects requests whose session user lacks the admin role.
func RequireAdmin(users userLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := userIDFromContext(r.Context())
			if !ok {
				respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
				return
			}

			isAdmin, err := users.IsAdmin(r.Context(), userID)
			if err != nil {
				handleServiceError(w, err)
				return
			}
			if !isAdmin {
				respondError(w, http.StatusForbidden, "forbidden", "admin role required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
