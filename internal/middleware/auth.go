package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pliu/dmchat/internal/auth"
	"github.com/pliu/dmchat/internal/common"
	"github.com/pliu/dmchat/internal/models"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// UserFinder confirms that a token's user still exists.
type UserFinder interface {
	FindUserByID(ctx context.Context, id string) (*models.User, error)
}

// AuthMiddleware rejects requests without a valid token for an existing user
// and stores the user id in the request context.
func AuthMiddleware(secretKey []byte, users UserFinder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.TokenFromRequest(r)
			if token == "" {
				unauthorized(w, "Unauthorized - No Token Provided")
				return
			}

			userID, err := auth.GetUserIDFromToken(token, secretKey)
			if err != nil {
				unauthorized(w, "Unauthorized - Invalid Token")
				return
			}

			if _, err := users.FindUserByID(r.Context(), userID); err != nil {
				if errors.Is(err, common.ErrNotFound) {
					unauthorized(w, "Unauthorized - User Not Found")
					return
				}
				writeJSON(w, http.StatusInternalServerError, "Internal server error")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext returns the id stored by AuthMiddleware.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	return id, ok && id != ""
}

func unauthorized(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnauthorized, msg)
}

func writeJSON(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
