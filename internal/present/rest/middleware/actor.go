package middleware

import (
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/stelae/stelae/internal/domain"
)

var tracer = otel.Tracer("actor")

const actorContextKey = "actor"

// IdentifyActor reads the X-Actor-* headers the front proxy attaches after
// authentication and stores an ActorContext on the request. No headers means
// a system context, which bypasses provisional staging.
func IdentifyActor(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Actor.Middleware.IdentifyActor")
		defer span.End()

		header := c.Request().Header
		userID := header.Get("X-Actor-Id")
		if userID != "" {
			actor := &domain.ActorContext{
				UserID:     userID,
				Username:   header.Get("X-Actor-Username"),
				Email:      header.Get("X-Actor-Email"),
				FirstName:  header.Get("X-Actor-First-Name"),
				LastName:   header.Get("X-Actor-Last-Name"),
				IsReviewer: header.Get("X-Actor-Reviewer") == "true",
			}
			c.Set(actorContextKey, actor)
			span.SetAttributes(attribute.String("ActorId", userID))
		}

		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// ActorFrom returns the request's actor, or nil for a system context.
func ActorFrom(c echo.Context) *domain.ActorContext {
	if actor, ok := c.Get(actorContextKey).(*domain.ActorContext); ok {
		return actor
	}
	return nil
}
