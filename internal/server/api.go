package server

import (
	"context"
	"net/http"
	"time"

	"celebot/internal/transport"
	logx "celebot/pkg/logx"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// triggerCycle acknowledges immediately and runs the cycle in the
// background; long scans must not hold the caller's connection open.
// An effectiveDateTime query parameter overrides the cycle's notion of
// now, which external schedulers use to replay a missed window.
func (s *Server) triggerCycle(name string, run func(ctx context.Context, now time.Time) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now()
		if raw := c.Query("effectiveDateTime"); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "effectiveDateTime must be RFC 3339"})
				return
			}
			now = parsed
		}
		s.spawn("cycle-"+name, func(ctx context.Context) {
			if err := run(ctx, now); err != nil {
				s.log.Error("http: triggered cycle failed",
					logx.String("cycle", name), logx.Err(err))
			}
		})
		c.JSON(http.StatusOK, gin.H{"status": "ok", "cycle": name})
	}
}

func (s *Server) handleMessages(c *gin.Context) {
	var a transport.Activity
	if err := c.ShouldBindJSON(&a); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid activity payload"})
		return
	}
	if err := s.bot.HandleActivity(c.Request.Context(), &a); err != nil {
		s.log.Error("http: activity handling failed", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "activity processing failed"})
		return
	}
	c.Status(http.StatusOK)
}
