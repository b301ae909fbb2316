// Package dispatch runs the three pipeline cycles: preview (daily),
// event day (hourly) and retry (every few minutes). Cycles are
// re-entrant and idempotent; running one twice with the same inputs
// produces no duplicate sends.
package dispatch

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"celebot/internal/cards"
	"celebot/internal/delivery"
	"celebot/internal/storage"
	"celebot/internal/transport"
	logx "celebot/pkg/logx"

	"github.com/google/uuid"
)

func newID() string { return uuid.NewString() }

type Config struct {
	// DaysInAdvance is the preview window length in days.
	DaysInAdvance int
	// MinProcessingBuffer is the shortest time before an occurrence in
	// which a preview is still worth sending. Occurrences inside the
	// buffer are claimed but get no preview.
	MinProcessingBuffer time.Duration
	// TimeToPost is the local time of day celebrations go out, "HH:MM".
	TimeToPost string
	// MaxEventsPerCarousel caps the per-team batch size.
	MaxEventsPerCarousel int
}

func (c Config) normalized() Config {
	if c.DaysInAdvance <= 0 {
		c.DaysInAdvance = 3
	}
	if c.MinProcessingBuffer <= 0 {
		c.MinProcessingBuffer = 24 * time.Hour
	}
	if c.TimeToPost == "" {
		c.TimeToPost = "10:00"
	}
	if c.MaxEventsPerCarousel <= 0 {
		c.MaxEventsPerCarousel = delivery.MaxEventsPerCarousel
	}
	return c
}

// Dispatcher drives the scheduled pipeline work.
type Dispatcher struct {
	store   storage.Store
	engine  *delivery.Engine
	conn    transport.Connector
	builder *cards.Builder
	log     logx.Logger

	mu  sync.Mutex
	cfg Config
}

func New(cfg Config, store storage.Store, engine *delivery.Engine, conn transport.Connector, builder *cards.Builder, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{
		store:   store,
		engine:  engine,
		conn:    conn,
		builder: builder,
		log:     log,
		cfg:     cfg.normalized(),
	}
}

func (d *Dispatcher) Apply(cfg Config) {
	d.mu.Lock()
	d.cfg = cfg.normalized()
	d.mu.Unlock()
}

func (d *Dispatcher) config() Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// RetryCycle re-sends failed deliveries.
func (d *Dispatcher) RetryCycle(ctx context.Context, now time.Time) error {
	_, failed, err := d.engine.RetrySweep(ctx, now)
	if err != nil {
		return fmt.Errorf("retry cycle: %w", err)
	}
	if failed > 0 {
		return fmt.Errorf("retry cycle: %d sends still failing", failed)
	}
	return nil
}

// timeOfDay parses "HH:MM" into an offset from midnight.
func timeOfDay(s string) (time.Duration, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("time of day %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("time of day %q: bad hour", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("time of day %q: bad minute", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// loadZone resolves an IANA zone, falling back to UTC for events whose
// stored zone is unknown on this host.
func (d *Dispatcher) loadZone(id string) *time.Location {
	if id == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(id)
	if err != nil {
		d.log.Warn("dispatch: unknown timezone, using UTC", logx.String("zone", id), logx.Err(err))
		return time.UTC
	}
	return loc
}
