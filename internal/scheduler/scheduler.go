// Package scheduler runs the notification cycles on cron triggers.
// Triggers fire in a configurable timezone and skip a run when the
// previous one for the same job is still going.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	logx "celebot/pkg/logx"

	"github.com/robfig/cron/v3"
)

// Default trigger specs. The preview spec is derived from the
// configured time_to_post unless overridden.
const (
	DefaultEventSpec = "0 * * * *"    // hourly
	DefaultRetrySpec = "*/15 * * * *" // every 15 minutes
)

type Config struct {
	Enabled  bool
	Timezone string

	PreviewSpec string
	EventSpec   string
	RetrySpec   string
}

func (c Config) normalized() Config {
	if c.EventSpec == "" {
		c.EventSpec = DefaultEventSpec
	}
	if c.RetrySpec == "" {
		c.RetrySpec = DefaultRetrySpec
	}
	return c
}

// PreviewSpecFor builds the daily preview trigger from an "HH:MM"
// wall-clock time.
func PreviewSpecFor(timeToPost string) string {
	var hh, mm int
	if _, err := fmt.Sscanf(timeToPost, "%d:%d", &hh, &mm); err != nil {
		hh, mm = 10, 0
	}
	return fmt.Sprintf("%d %d * * *", mm, hh)
}

type job struct {
	name string
	spec string
	run  func(ctx context.Context) error

	mu      sync.Mutex
	running bool
}

type Service struct {
	log logx.Logger

	mu      sync.Mutex
	cfg     Config
	jobs    []*job
	c       *cron.Cron
	ctx     context.Context
	started bool
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg.normalized(), log: log}
}

// Register adds a named job. Must be called before Start.
func (s *Service) Register(name, spec string, run func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &job{name: name, spec: spec, run: run})
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Start brings the cron runner up. Safe to call when disabled (no-op).
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
	if !s.cfg.Enabled || s.started {
		return
	}
	s.restartLocked()
	s.started = true
}

// Stop halts the cron runner and waits for in-flight jobs, bounded by ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.started = false
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}

// Apply reconfigures the triggers live. A spec or timezone change
// rebuilds the cron runner; an enabled flip starts or stops it.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.normalized()
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg == s.cfg {
		return
	}

	wasRunning := s.started
	s.cfg = cfg
	if wasRunning && s.c != nil {
		<-s.c.Stop().Done()
		s.c = nil
		s.started = false
	}
	if cfg.Enabled && s.ctx != nil {
		s.restartLocked()
		s.started = true
	}
}

// restartLocked rebuilds the cron runner from the current config.
// Call with s.mu held and s.ctx set.
func (s *Service) restartLocked() {
	loc := s.locationLocked()
	c := cron.New(cron.WithLocation(loc))
	specs := map[string]string{
		"preview": s.cfg.PreviewSpec,
		"event":   s.cfg.EventSpec,
		"retry":   s.cfg.RetrySpec,
	}
	for _, j := range s.jobs {
		spec := j.spec
		if override, ok := specs[j.name]; ok && override != "" {
			spec = override
		}
		if err := s.addJob(c, j, spec); err != nil {
			s.log.Error("cron: bad spec",
				logx.String("job", j.name), logx.String("spec", spec), logx.Err(err))
		}
	}
	c.Start()
	s.c = c
	s.log.Info("cron: started",
		logx.String("tz", loc.String()), logx.Int("jobs", len(s.jobs)))
}

func (s *Service) addJob(c *cron.Cron, j *job, spec string) error {
	ctx := s.ctx
	_, err := c.AddFunc(spec, func() {
		j.mu.Lock()
		if j.running {
			j.mu.Unlock()
			s.log.Debug("cron: run skipped, previous still going", logx.String("job", j.name))
			return
		}
		j.running = true
		j.mu.Unlock()
		defer func() {
			j.mu.Lock()
			j.running = false
			j.mu.Unlock()
		}()

		start := time.Now()
		if err := j.run(ctx); err != nil {
			s.log.Error("cron: run failed",
				logx.String("job", j.name), logx.Duration("took", time.Since(start)), logx.Err(err))
			return
		}
		s.log.Debug("cron: run done",
			logx.String("job", j.name), logx.Duration("took", time.Since(start)))
	})
	return err
}

func (s *Service) locationLocked() *time.Location {
	tz := s.cfg.Timezone
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("cron: unknown timezone, using local", logx.String("tz", tz))
		return time.Local
	}
	return loc
}
