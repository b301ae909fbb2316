// Package server exposes the HTTP surface: trigger endpoints for the
// notification cycles, the bot activity sink, an events API for the tab
// UI and an iCalendar feed.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"celebot/internal/storage"
	"celebot/internal/transport"
	logx "celebot/pkg/logx"

	"github.com/gin-gonic/gin"
)

// CycleRunner is the slice of the dispatcher the trigger endpoints use.
// The time parameter is the cycle's effective "now".
type CycleRunner interface {
	PreviewCycle(ctx context.Context, now time.Time) error
	EventCycle(ctx context.Context, now time.Time) error
	RetryCycle(ctx context.Context, now time.Time) error
}

// ActivityHandler processes incoming bot activities.
type ActivityHandler interface {
	HandleActivity(ctx context.Context, a *transport.Activity) error
}

// Runner starts a named background task. The app wires this to its
// supervisor; the default spawns a plain goroutine with recover.
type Runner func(name string, fn func(ctx context.Context))

type Config struct {
	Addr         string        `yaml:"addr" json:"addr"`
	SharedSecret string        `yaml:"shared_secret" json:"shared_secret"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

func (c Config) normalized() Config {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	return c
}

type Server struct {
	cfg    Config
	store  storage.Store
	bot    ActivityHandler
	cycles CycleRunner
	log    logx.Logger
	spawn  Runner
	router *gin.Engine
}

func New(cfg Config, store storage.Store, bot ActivityHandler, cycles CycleRunner, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Server{
		cfg:    cfg.normalized(),
		store:  store,
		bot:    bot,
		cycles: cycles,
		log:    log,
	}
	s.spawn = s.defaultRunner
	s.router = s.buildRouter()
	return s
}

// SetRunner replaces the background task spawner. Must be called before
// the server starts handling requests.
func (s *Server) SetRunner(r Runner) {
	if r != nil {
		s.spawn = r
	}
}

// Router exposes the handler tree, mainly for tests.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(s.requestLogger(), gin.Recovery())

	r.GET("/health", s.handleHealth)

	triggers := r.Group("/", s.requireSecret())
	triggers.POST("/preview", s.triggerCycle("preview", s.cycles.PreviewCycle))
	triggers.POST("/eventNotification", s.triggerCycle("event", s.cycles.EventCycle))
	triggers.POST("/messageDelivery", s.triggerCycle("retry", s.cycles.RetryCycle))

	r.POST("/api/messages", s.handleMessages)

	events := r.Group("/api/events", s.requireSecret())
	events.GET("/:owner", s.handleListEvents)
	events.POST("/:owner", s.handleCreateEvent)
	events.PUT("/:owner/:id", s.handleUpdateEvent)
	events.DELETE("/:owner/:id", s.handleDeleteEvent)
	events.GET("/:owner/feed.ics", s.handleEventFeed)

	return r
}

// Run serves until ctx is cancelled, then drains with a short deadline.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("http: listening", logx.String("addr", s.cfg.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.log.Info("http: stopped")
		return nil
	}
}

func (s *Server) defaultRunner(name string, fn func(ctx context.Context)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("http: background task panicked",
					logx.String("task", name), logx.Any("panic", r))
			}
		}()
		fn(context.Background())
	}()
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("http: request",
			logx.String("method", c.Request.Method),
			logx.String("path", c.Request.URL.Path),
			logx.Int("status", c.Writer.Status()),
			logx.Duration("took", time.Since(start)))
	}
}

// requireSecret gates management endpoints behind the shared secret,
// accepted either as a header or a query parameter.
func (s *Server) requireSecret() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.SharedSecret == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "shared secret not configured"})
			return
		}
		key := c.GetHeader("X-Api-Key")
		if key == "" {
			key = c.Query("key")
		}
		if key != s.cfg.SharedSecret {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid key"})
			return
		}
		c.Next()
	}
}
