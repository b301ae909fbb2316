package server

import (
	"fmt"
	"net/http"
	"time"

	"celebot/internal/models"
	logx "celebot/pkg/logx"

	ics "github.com/arran4/golang-ical"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/teambition/rrule-go"
)

const dateLayout = "2006-01-02"

// eventPayload is the API shape of an event. The date travels as a
// plain YYYY-MM-DD string and the type as its name, which is what the
// tab UI works with.
type eventPayload struct {
	ID         string   `json:"id,omitempty"`
	Type       string   `json:"type"`
	Title      string   `json:"title"`
	Message    string   `json:"message,omitempty"`
	Date       string   `json:"date"`
	TimezoneID string   `json:"timezoneId"`
	ImageURL   string   `json:"imageUrl,omitempty"`
	Teams      []string `json:"teams,omitempty"`
}

func payloadFrom(ev *models.CelebrationEvent) eventPayload {
	return eventPayload{
		ID:         ev.ID,
		Type:       ev.Type.String(),
		Title:      ev.Title,
		Message:    ev.Message,
		Date:       ev.Date.Format(dateLayout),
		TimezoneID: ev.TimezoneID,
		ImageURL:   ev.ImageURL,
		Teams:      ev.Teams,
	}
}

func (p eventPayload) toModel(owner string) (*models.CelebrationEvent, error) {
	if p.Title == "" {
		return nil, fmt.Errorf("title is required")
	}
	date, err := time.Parse(dateLayout, p.Date)
	if err != nil {
		return nil, fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	tz := p.TimezoneID
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("unknown timezone %q", tz)
	}
	return &models.CelebrationEvent{
		ID:               p.ID,
		OwnerAadObjectID: owner,
		Type:             models.ParseEventType(p.Type),
		Title:            p.Title,
		Message:          p.Message,
		Date:             date,
		TimezoneID:       tz,
		ImageURL:         p.ImageURL,
		Teams:            p.Teams,
	}, nil
}

func (s *Server) handleListEvents(c *gin.Context) {
	events, err := s.store.GetEventsByOwner(c.Request.Context(), c.Param("owner"))
	if err != nil {
		s.log.Error("http: event list failed", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
		return
	}
	out := make([]eventPayload, 0, len(events))
	for _, ev := range events {
		out = append(out, payloadFrom(ev))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleCreateEvent(c *gin.Context) {
	var p eventPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}
	ev, err := p.toModel(c.Param("owner"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if err := s.store.AddEvent(c.Request.Context(), ev); err != nil {
		s.log.Error("http: event create failed", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
		return
	}
	c.JSON(http.StatusCreated, payloadFrom(ev))
}

func (s *Server) handleUpdateEvent(c *gin.Context) {
	owner := c.Param("owner")
	id := c.Param("id")

	existing, err := s.store.GetEventByID(c.Request.Context(), id, owner)
	if err != nil {
		s.log.Error("http: event lookup failed", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
		return
	}
	if existing == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such event"})
		return
	}

	var p eventPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}
	ev, err := p.toModel(owner)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ev.ID = id
	if err := s.store.UpdateEvent(c.Request.Context(), ev); err != nil {
		s.log.Error("http: event update failed", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
		return
	}
	c.JSON(http.StatusOK, payloadFrom(ev))
}

func (s *Server) handleDeleteEvent(c *gin.Context) {
	if err := s.store.DeleteEvent(c.Request.Context(), c.Param("id"), c.Param("owner")); err != nil {
		s.log.Error("http: event delete failed", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
		return
	}
	c.Status(http.StatusNoContent)
}

// handleEventFeed renders the owner's events as an iCalendar feed with
// yearly recurrence rules, suitable for subscribing from a calendar app.
func (s *Server) handleEventFeed(c *gin.Context) {
	owner := c.Param("owner")
	events, err := s.store.GetEventsByOwner(c.Request.Context(), owner)
	if err != nil {
		s.log.Error("http: feed failed", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
		return
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetXWRCalName("Celebrations")

	now := time.Now().UTC()
	for _, ev := range events {
		rule, err := rrule.NewRRule(rrule.ROption{
			Freq:       rrule.YEARLY,
			Bymonth:    []int{ev.Month()},
			Bymonthday: []int{ev.Day()},
		})
		if err != nil {
			s.log.Warn("http: feed rule skipped",
				logx.String("event_id", ev.ID), logx.Err(err))
			continue
		}

		ve := cal.AddEvent(ev.ID + "@celebot")
		ve.SetDtStampTime(now)
		ve.SetAllDayStartAt(ev.Date)
		ve.SetSummary(ev.Title)
		if ev.Message != "" {
			ve.SetDescription(ev.Message)
		}
		ve.AddRrule(rule.String())
	}

	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(cal.Serialize()))
}
