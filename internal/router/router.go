package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/lab-cases/internal/handler/prometheus"
	"github.com/jwalitptl/lab-cases/internal/middleware"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// Handlers are the route groups the API is assembled from.
type Handlers struct {
	Auth    Handler
	Cases   Handler
	Labs    Handler
	Events  Handler
	Health  Handler
	Metrics *prometheus.Handler
}

type RouterConfig struct {
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	AllowedOrigins   []string
	RequestTimeout   time.Duration
	MaxUploadBytes   int64
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
	config   RouterConfig
}

func NewRouter(auth *middleware.AuthMiddleware, handlers Handlers, config RouterConfig) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.MaxMultipartMemory = 8 << 20

	r := &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
		config:   config,
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		handlers.Metrics.Middleware(),
		middleware.SecurityHeaders(),
		middleware.CORS(config.AllowedOrigins),
	)

	if config.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	return r
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	// Ops endpoints
	r.handlers.Health.RegisterRoutes(api)
	api.GET("/metrics", r.handlers.Metrics.Handler())

	// Public routes
	public := api.Group("")
	public.Use(middleware.Timeout(r.config.RequestTimeout))
	r.handlers.Auth.RegisterRoutes(public)

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())

	// The event stream is long-lived and gets no deadline.
	r.handlers.Events.RegisterRoutes(protected)

	timed := protected.Group("")
	timed.Use(
		middleware.Timeout(r.config.RequestTimeout),
		middleware.BodyLimit(r.config.MaxUploadBytes),
	)
	r.handlers.Cases.RegisterRoutes(timed)
	r.handlers.Labs.RegisterRoutes(timed)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
