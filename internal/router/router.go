package router

import (
	"threadboard/internal/app/health"
	"threadboard/internal/app/post"
	"threadboard/internal/gateways/websocket"
	"threadboard/internal/metrics"
	"threadboard/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Router struct {
	Engine *gin.Engine
}

func NewRouter(logger *zap.Logger, frontendURL string) *Router {
	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(middleware.CORSMiddleware(frontendURL))
	engine.Use(middleware.LoggerMiddleware(logger))
	engine.Use(gin.Recovery())
	return &Router{Engine: engine}
}

func (r *Router) RegisterHealthRoutes(handler health.Handler) {
	health.RegisterRoutes(r.Engine.Group("/api"), handler)
}

func (r *Router) RegisterPostRoutes(handler post.Handler) {
	post.RegisterRoutes(r.Engine.Group("/api"), handler)
}

func (r *Router) RegisterMetricsRoutes(m *metrics.Metrics) {
	metrics.RegisterRoutes(r.Engine, m)
}

func (r *Router) RegisterWebSocketRoutes(hub *websocket.Hub) {
	websocket.RegisterRoutes(r.Engine, hub)
}

// RegisterStaticUploads serves disk-stored attachments under prefix. Only
// paths are accepted; absolute URL prefixes point at another host.
func (r *Router) RegisterStaticUploads(prefix, dir string) {
	r.Engine.Static(prefix, dir)
}
