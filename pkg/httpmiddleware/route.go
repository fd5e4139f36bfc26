package httpmiddleware

import (
	"context"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type routeKey struct{}

type routeSlot struct {
	route string
}

func withRouteSlot(ctx context.Context) (context.Context, *routeSlot) {
	if s, ok := ctx.Value(routeKey{}).(*routeSlot); ok {
		return ctx, s
	}
	s := &routeSlot{}
	return context.WithValue(ctx, routeKey{}, s), s
}

// SetRoute records the matched route template, such as "/api/orders/:id",
// once the router has resolved it. The route is attached to the access log,
// the request metrics and the server span.
func SetRoute(ctx context.Context, method, route string) {
	if route == "" {
		return
	}
	if s, ok := ctx.Value(routeKey{}).(*routeSlot); ok {
		s.route = route
	}
	attr := attribute.String("http.route", route)
	if l, ok := otelhttp.LabelerFromContext(ctx); ok {
		l.Add(attr)
	}
	span := trace.SpanFromContext(ctx)
	span.SetName(method + " " + route)
	span.SetAttributes(attr)
}

// RouteFromContext returns the route recorded by SetRoute.
func RouteFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(routeKey{}).(*routeSlot); ok {
		return s.route
	}
	return ""
}
