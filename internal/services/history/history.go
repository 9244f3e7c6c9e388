package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
	"restaurant-pos/internal/storage"
)

// Persister is the part of storage.Syncer the history needs.
type Persister interface {
	Get(ctx context.Context, key string) (string, error)
	Save(key, value string)
}

// History is the most-recent-first sequence of settled tickets.
type History struct {
	mu      sync.RWMutex
	tickets []models.Ticket
	store   Persister
	logger  *logger.Logger
	loc     *time.Location
	now     func() time.Time
}

type Option func(*History)

// WithLocation sets the zone used for calendar-day queries.
func WithLocation(loc *time.Location) Option {
	return func(h *History) { h.loc = loc }
}

func WithClock(now func() time.Time) Option {
	return func(h *History) { h.now = now }
}

func New(store Persister, log *logger.Logger, opts ...Option) *History {
	h := &History{
		store:  store,
		logger: log,
		loc:    time.Local,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Load replaces the in-memory history with the stored one. An unreadable
// document is treated as empty and left in the store untouched.
func (h *History) Load(ctx context.Context) error {
	raw, err := h.store.Get(ctx, storage.KeyHistory)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: load history: %v", models.ErrPersistenceFailure, err)
	}

	var tickets []models.Ticket
	if err := json.Unmarshal([]byte(raw), &tickets); err != nil {
		h.logger.Warn("history_corrupt", "Stored history is unreadable, starting empty", "", map[string]interface{}{
			"reason": err.Error(),
		})
		return nil
	}
	for _, t := range tickets {
		if err := t.Verify(); err != nil {
			h.logger.Warn("ticket_inconsistent", "Stored ticket totals do not match its lines", "", map[string]interface{}{
				"ticket_id": t.ID,
				"reason":    err.Error(),
			})
		}
	}

	h.mu.Lock()
	h.tickets = tickets
	h.mu.Unlock()

	h.logger.Info("history_loaded", "Sales history loaded", "", map[string]interface{}{"tickets": len(tickets)})
	return nil
}

// Append prepends t and queues the whole sequence for persistence.
func (h *History) Append(t models.Ticket) {
	h.mu.Lock()
	h.tickets = prepend(h.tickets, t.Clone())
	payload, err := encode(h.tickets)
	h.mu.Unlock()

	h.save(payload, err)
}

// Stage holds the history lock while a settlement persists the history
// with t prepended. Exactly one of Commit or Discard must be called.
type Stage struct {
	h       *History
	ticket  models.Ticket
	Payload string
}

// Stage serializes the history as it will be after appending t without
// changing it.
func (h *History) Stage(t models.Ticket) (*Stage, error) {
	h.mu.Lock()
	payload, err := encode(prepend(h.tickets, t))
	if err != nil {
		h.mu.Unlock()
		return nil, err
	}
	return &Stage{h: h, ticket: t.Clone(), Payload: payload}, nil
}

// Commit makes the staged ticket the newest entry.
func (s *Stage) Commit() {
	s.h.tickets = prepend(s.h.tickets, s.ticket)
	s.h.mu.Unlock()
}

func (s *Stage) Discard() {
	s.h.mu.Unlock()
}

// Remove deletes the ticket with id and reports whether it existed.
func (h *History) Remove(id string) bool {
	h.mu.Lock()
	idx := -1
	for i, t := range h.tickets {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		h.mu.Unlock()
		return false
	}
	h.tickets = append(h.tickets[:idx:idx], h.tickets[idx+1:]...)
	payload, err := encode(h.tickets)
	h.mu.Unlock()

	h.save(payload, err)
	h.logger.Info("ticket_removed", "Ticket removed from history", "", map[string]interface{}{"ticket_id": id})
	return true
}

func (h *History) Get(id string) (models.Ticket, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, t := range h.tickets {
		if t.ID == id {
			return t.Clone(), true
		}
	}
	return models.Ticket{}, false
}

// All returns every ticket, newest first.
func (h *History) All() []models.Ticket {
	return h.filter(func(models.Ticket) bool { return true })
}

// FilterByRange returns tickets whose settlement day falls within the
// calendar days of start and end, inclusive.
func (h *History) FilterByRange(start, end time.Time) []models.Ticket {
	from := h.startOfDay(start)
	until := h.startOfDay(end).AddDate(0, 0, 1)
	return h.filter(func(t models.Ticket) bool {
		return !t.SettledAt.Before(from) && t.SettledAt.Before(until)
	})
}

// FilterToday returns tickets settled on the current calendar day.
func (h *History) FilterToday() []models.Ticket {
	now := h.now()
	return h.FilterByRange(now, now)
}

// FilterLastNDays returns tickets settled from n days before today up to
// the end of today.
func (h *History) FilterLastNDays(n int) []models.Ticket {
	now := h.now()
	return h.FilterByRange(now.AddDate(0, 0, -n), now)
}

// Location is the zone used for calendar-day bucketing.
func (h *History) Location() *time.Location {
	return h.loc
}

func (h *History) startOfDay(t time.Time) time.Time {
	t = t.In(h.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, h.loc)
}

func (h *History) filter(keep func(models.Ticket) bool) []models.Ticket {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]models.Ticket, 0, len(h.tickets))
	for _, t := range h.tickets {
		if keep(t) {
			out = append(out, t.Clone())
		}
	}
	return out
}

func (h *History) save(payload string, err error) {
	if err != nil {
		h.logger.Error("history_encode_failed", "Failed to encode history", "", err, nil)
		return
	}
	h.store.Save(storage.KeyHistory, payload)
}

func prepend(tickets []models.Ticket, t models.Ticket) []models.Ticket {
	out := make([]models.Ticket, 0, len(tickets)+1)
	out = append(out, t)
	return append(out, tickets...)
}

func encode(tickets []models.Ticket) (string, error) {
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	raw, err := json.Marshal(tickets)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
