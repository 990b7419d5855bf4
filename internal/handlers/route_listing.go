package handlers

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/moldovancsaba/amanoba-sub004/internal/observability"
	"github.com/moldovancsaba/amanoba-sub004/internal/version"
)

// RouteInfo describes a single registered route
type RouteInfo struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	HandlerName string `json:"handler_name"`
}

// RouteIndex is the payload served at the API root
type RouteIndex struct {
	Service string         `json:"service"`
	Version string         `json:"version"`
	Routes  []RouteInfo    `json:"routes"`
	Methods map[string]int `json:"methods"`
}

// RouteListingHandler serves an index of the registered routes
type RouteListingHandler struct {
	serviceName string
	routes      []RouteInfo
}

// NewRouteListingHandler creates a new route listing handler
func NewRouteListingHandler(serviceName string) *RouteListingHandler {
	return &RouteListingHandler{
		serviceName: serviceName,
		routes:      []RouteInfo{},
	}
}

// CollectRoutes snapshots the engine's routes sorted by path then method.
// Call it after every route is registered.
func (h *RouteListingHandler) CollectRoutes(engine *gin.Engine) {
	h.routes = []RouteInfo{}
	for _, route := range engine.Routes() {
		if strings.HasPrefix(route.Path, "/debug/") {
			continue
		}
		h.routes = append(h.routes, RouteInfo{
			Method:      route.Method,
			Path:        route.Path,
			HandlerName: route.Handler,
		})
	}

	sort.Slice(h.routes, func(i, j int) bool {
		if h.routes[i].Path != h.routes[j].Path {
			return h.routes[i].Path < h.routes[j].Path
		}
		return h.routes[i].Method < h.routes[j].Method
	})
}

// Index builds the root payload
func (h *RouteListingHandler) Index() RouteIndex {
	methods := make(map[string]int)
	for _, route := range h.routes {
		methods[route.Method]++
	}
	return RouteIndex{
		Service: h.serviceName,
		Version: version.Version,
		Routes:  h.routes,
		Methods: methods,
	}
}

// GetRouteListingJSON returns the route listing as JSON
func (h *RouteListingHandler) GetRouteListingJSON(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "get_route_listing")
	defer observability.FinishSpan(span, nil)

	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.JSON(http.StatusOK, h.Index())
}
