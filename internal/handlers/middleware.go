package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/studentbulle/internal/app"
	"github.com/shrimpsizemoose/studentbulle/internal/apperrors"
	"github.com/shrimpsizemoose/studentbulle/internal/metrics"
	"github.com/shrimpsizemoose/studentbulle/internal/models"
)

type contextKey string

const (
	requestIDKey  contextKey = "requestID"
	sessionKey    contextKey = "session"
	viaCookieKey  contextKey = "sessionViaCookie"
	csrfHeader               = "X-CSRF-Token"
	requestHeader            = "X-Request-ID"
)

// RequestID tags every request with the caller's X-Request-ID or a fresh uuid.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set(requestHeader, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func RequestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// AccessLog logs every request and records its duration by route pattern.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		duration := time.Since(start)
		metrics.APIRequestDuration.WithLabelValues(
			route,
			r.Method,
			strconv.Itoa(status),
		).Observe(duration.Seconds())

		logger.Info.Printf("[%s] %s %s %d %s", RequestIDFrom(r.Context()), r.Method, r.URL.Path, status, duration)
	})
}

// LoadSession attaches the session named by the bearer token or the cookie,
// whichever resolves first. Requests without a live session pass through
// anonymously.
func LoadSession(service *app.Service) func(http.Handler) http.Handler {
	cookieName := service.Config.Auth.CookieName

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, candidate := range sessionTokens(r, cookieName) {
				session, err := service.Auth.Resolve(r.Context(), candidate.token)
				if errors.Is(err, apperrors.ErrNoSession) {
					logger.Debug.Printf("[%s] stale session token (cookie=%t)", RequestIDFrom(r.Context()), candidate.viaCookie)
					continue
				}
				if err != nil {
					writeError(w, r, err)
					return
				}

				ctx := context.WithValue(r.Context(), sessionKey, session)
				ctx = context.WithValue(ctx, viaCookieKey, candidate.viaCookie)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type sessionToken struct {
	token     string
	viaCookie bool
}

// sessionTokens lists the tokens a request carries, bearer first.
func sessionTokens(r *http.Request, cookieName string) []sessionToken {
	var tokens []sessionToken

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")); token != "" {
			tokens = append(tokens, sessionToken{token: token})
		}
	}
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		tokens = append(tokens, sessionToken{token: cookie.Value, viaCookie: true})
	}
	return tokens
}

// SessionFrom returns the session loaded for this request, or nil.
func SessionFrom(ctx context.Context) *models.Session {
	session, _ := ctx.Value(sessionKey).(*models.Session)
	return session
}

func RequireRole(service *app.Service, min models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := service.Auth.Require(SessionFrom(r.Context()), min); err != nil {
				writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CSRFGuard demands X-CSRF-Token on state-changing requests that were
// authenticated by cookie. Bearer requests are not exposed to CSRF.
func CSRFGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		session := SessionFrom(r.Context())
		viaCookie, _ := r.Context().Value(viaCookieKey).(bool)
		if session == nil || !viaCookie {
			next.ServeHTTP(w, r)
			return
		}

		sent := r.Header.Get(csrfHeader)
		if subtle.ConstantTimeCompare([]byte(sent), []byte(session.CSRFToken)) != 1 {
			writeError(w, r, apperrors.Forbidden("missing or invalid %s header", csrfHeader))
			return
		}
		next.ServeHTTP(w, r)
	})
}
