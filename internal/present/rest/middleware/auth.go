package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dwellspace/dwell/internal/domain"
	"github.com/dwellspace/dwell/internal/infra/gateway"
)

var tracer = otel.Tracer("auth")

type AuthMiddleware struct {
	auth *gateway.AuthGateway
}

func NewAuthMiddleware(auth *gateway.AuthGateway) *AuthMiddleware {
	return &AuthMiddleware{
		auth: auth,
	}
}

// IdentifyRequester resolves the requester's session state from the Bearer
// token (if any) and picks up the client-durable guest id header. A missing
// or invalid token means anonymous; a provider failure leaves the session
// unresolved so authenticated-only operations stay unreachable.
func (s *AuthMiddleware) IdentifyRequester(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Auth.Middleware.IdentifyRequester")
		defer span.End()

		state := domain.SessionAnonymous

		guestID := c.Request().Header.Get(domain.GuestIdHeader)
		if guestID != "" {
			ctx = context.WithValue(ctx, domain.GuestIdCtxKey, guestID)
		}

		authHeader := c.Request().Header.Get("authorization")

		if authHeader != "" {
			split := strings.Split(authHeader, " ")
			if len(split) != 2 {
				span.RecordError(fmt.Errorf("invalid authentication header"))
				goto skipCheckAuthorization
			}

			authType, token := split[0], split[1]
			if authType != "Bearer" {
				span.RecordError(fmt.Errorf("only Bearer is acceptable"))
				goto skipCheckAuthorization
			}

			identity, err := s.auth.Resolve(ctx, token)
			if err != nil {
				span.RecordError(errors.Wrap(err, "AuthMiddleware.IdentifyRequester: resolve failed"))
				state = domain.SessionUnknown
				goto skipCheckAuthorization
			}

			if identity != nil {
				state = domain.SessionAuthenticated
				ctx = context.WithValue(ctx, domain.RequesterIdCtxKey, identity.UserID)
				ctx = context.WithValue(ctx, domain.RequesterEmailCtxKey, identity.Email)
				span.SetAttributes(attribute.String("RequesterId", identity.UserID))
			}
		}

	skipCheckAuthorization:
		ctx = context.WithValue(ctx, domain.RequesterStateCtxKey, state)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}
