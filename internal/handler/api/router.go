package api

import (
	"github.com/labstack/echo/v4"

	xhttp "SigForge/pkg/http"
)

// Router composes the API handlers behind a single route registrar.
type Router struct {
	handlers []xhttp.Handler
}

func NewRouter(handlers ...xhttp.Handler) *Router {
	return &Router{handlers: handlers}
}

func (r *Router) RegisterRoutes(e *echo.Echo) {
	for _, h := range r.handlers {
		h.RegisterRoutes(e)
	}
}
