package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type ctxKey string

const principalKey ctxKey = "auth_principal"

var tracer = otel.Tracer("github.com/orthoflow/practice-service/auth")

// Failure reasons reported to MetricsRecorder.
const (
	ReasonMissingAuthorization = "missing_authorization"
	ReasonInvalidHeader        = "invalid_header_format"
	ReasonInvalidToken         = "invalid_token"
)

var (
	errMissingAuthorization = errors.New("missing authorization")
	errInvalidHeader        = errors.New("invalid authorization header")
)

// MetricsRecorder counts rejected requests by reason.
type MetricsRecorder interface {
	RecordAuthFailure(ctx context.Context, reason string)
}

// PermissionMetricsRecorder records the outcome and latency of permission checks.
type PermissionMetricsRecorder interface {
	RecordPermissionCheck(ctx context.Context, permission string, durationMs float64, allowed bool)
}

// TokenVerifier is implemented by *Verifier.
type TokenVerifier interface {
	ParseAndVerifyToken(token string) (*Principal, error)
}

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(r *http.Request) (string, string, error) {
	authz := r.Header.Get("Authorization")
	if authz == "" {
		return "", ReasonMissingAuthorization, errMissingAuthorization
	}
	scheme, token, ok := strings.Cut(authz, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ReasonInvalidHeader, errInvalidHeader
	}
	return strings.TrimSpace(token), "", nil
}

// Middleware authenticates the request and stores the Principal in its context.
func Middleware(ver TokenVerifier, logger zerolog.Logger) func(http.Handler) http.Handler {
	return MiddlewareWithMetrics(ver, logger, nil)
}

// MiddlewareWithMetrics is Middleware that also reports failures to metrics.
func MiddlewareWithMetrics(ver TokenVerifier, logger zerolog.Logger, metrics MetricsRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(r.Context(), "auth.Middleware", trace.WithSpanKind(trace.SpanKindInternal))
			defer span.End()

			reject := func(reason string, err error) {
				span.SetStatus(codes.Error, err.Error())
				span.SetAttributes(attribute.String("error.type", reason))
				if metrics != nil {
					metrics.RecordAuthFailure(ctx, reason)
				}
				http.Error(w, err.Error(), http.StatusUnauthorized)
			}

			token, reason, err := bearerToken(r)
			if err != nil {
				reject(reason, err)
				return
			}

			pr, err := ver.ParseAndVerifyToken(token)
			if err != nil {
				logger.Warn().Err(err).Str("path", r.URL.Path).Msg("token validation failed")
				reject(ReasonInvalidToken, ErrInvalidToken)
				return
			}

			span.SetAttributes(
				attribute.String("user.id", pr.UserID),
				attribute.StringSlice("user.roles", pr.Roles),
			)
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(ctx, pr)))
		})
	}
}

// RequirePermission rejects requests whose principal lacks per.
func RequirePermission(per string, perms Permissions) func(http.Handler) http.Handler {
	return RequirePermissionWithMetrics(per, perms, nil)
}

// RequirePermissionWithMetrics is RequirePermission with check metrics.
// A missing principal is 401, a principal without the permission 403.
func RequirePermissionWithMetrics(per string, perms Permissions, metrics PermissionMetricsRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, span := tracer.Start(r.Context(), "auth.RequirePermission",
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(attribute.String("permission.required", per)),
			)
			defer span.End()

			pr, authenticated := FromContext(ctx)
			allowed := authenticated && HasPermission(pr, per, perms)
			span.SetAttributes(attribute.Bool("permission.allowed", allowed))
			if metrics != nil {
				metrics.RecordPermissionCheck(ctx, per, float64(time.Since(start).Milliseconds()), allowed)
			}

			switch {
			case !authenticated:
				span.SetStatus(codes.Error, "unauthenticated")
				http.Error(w, "unauthenticated", http.StatusUnauthorized)
			case !allowed:
				zerolog.Ctx(ctx).Info().
					Str("user_id", pr.UserID).
					Strs("roles", pr.Roles).
					Str("permission", per).
					Msg("permission denied")
				span.SetStatus(codes.Error, "forbidden")
				http.Error(w, "forbidden", http.StatusForbidden)
			default:
				next.ServeHTTP(w, r.WithContext(ctx))
			}
		})
	}
}

// ContextWithPrincipal returns ctx carrying pr, as Middleware stores it.
func ContextWithPrincipal(ctx context.Context, pr *Principal) context.Context {
	return context.WithValue(ctx, principalKey, pr)
}

// FromContext returns the Principal stored by Middleware.
func FromContext(ctx context.Context) (*Principal, bool) {
	pr, ok := ctx.Value(principalKey).(*Principal)
	return pr, ok && pr != nil
}

// HasPermission reports whether any of the principal's roles grants permission.
func HasPermission(pr *Principal, permission string, perms Permissions) bool {
	for _, role := range pr.Roles {
		if perms.Allows(role, permission) {
			return true
		}
	}
	return false
}
