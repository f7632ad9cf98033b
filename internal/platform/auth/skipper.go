package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists URL paths that bypass authentication: infrastructure
// endpoints a load balancer or orchestrator polls without credentials.
var publicPaths = map[string]bool{
	"/health":    true,
	"/health/db": true,
}

// AuthSkipper reports whether the request's path should skip authentication.
// Both auth middlewares consult it, so health checks stay reachable no matter
// which of them is installed.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}
