package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/AdamBeresnev/poolbracket/internal/actor"
	"github.com/AdamBeresnev/poolbracket/internal/apperr"
	"github.com/AdamBeresnev/poolbracket/internal/httputil"
	"github.com/AdamBeresnev/poolbracket/internal/token"
	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
)

type ContextKey string

const (
	UserIDKey      ContextKey = "userID"
	credentialsKey ContextKey = "credentials"
)

// SessionUserKey is the session entry holding the signed-in organizer.
const SessionUserKey = "userID"

// GuestUserID is the organizer behind the guest login.
const GuestUserID = "00000000-0000-0000-0000-000000000001"

// Authenticate collects whatever identity the request carries: a bearer
// token (organizer or table device) or the organizer session. It never
// rejects a request; handlers decide what they need.
func Authenticate(sessionManager *scs.SessionManager, tokens *token.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var creds actor.Credentials

			if raw, ok := bearerToken(r); ok {
				creds.BearerToken = raw
				if id, err := tokens.ValidateUser(raw); err == nil {
					creds.UserID = &id
				} else if _, err := tokens.ValidateTable(raw); err == nil {
					creds.TableScoped = true
				}
			} else if userIDStr := sessionManager.GetString(r.Context(), SessionUserKey); userIDStr != "" {
				userID, err := uuid.Parse(userIDStr)
				if err != nil {
					sessionManager.Remove(r.Context(), SessionUserKey)
				} else {
					creds.UserID = &userID
				}
			}

			ctx := context.WithValue(r.Context(), credentialsKey, creds)
			if creds.UserID != nil && !creds.TableScoped {
				ctx = context.WithValue(ctx, UserIDKey, *creds.UserID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser lets through only requests made by a signed-in organizer.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUserIDFromContext(r.Context()); !ok {
			httputil.Error(w, apperr.Unauthorized("Authentication required."))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, raw, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	val := ctx.Value(UserIDKey)
	if val == nil {
		return uuid.Nil, false
	}

	id, ok := val.(uuid.UUID)
	return id, ok
}

func CredentialsFromContext(ctx context.Context) actor.Credentials {
	creds, _ := ctx.Value(credentialsKey).(actor.Credentials)
	return creds
}
