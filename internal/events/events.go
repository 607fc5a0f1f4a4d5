// Package events announces saved popups so scene servers can drop the copies
// they hold. Delivery is best effort: a failed notification never fails the
// save that caused it.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"showroom-popup-builder/internal/model"
	"showroom-popup-builder/internal/storage"
)

// DefaultTopic carries SavedEvent messages.
const DefaultTopic = "popup.saved"

// SavedEvent is published after a template was persisted.
type SavedEvent struct {
	SpaceSlug    string    `json:"space_slug"`
	ObjectName   string    `json:"object_name"`
	TemplateType string    `json:"template_type"`
	SavedAt      time.Time `json:"saved_at"`
}

// Target returns the object the event refers to.
func (e SavedEvent) Target() model.ObjectTarget {
	return model.ObjectTarget{ID: e.ObjectName, SpaceSlug: e.SpaceSlug}
}

func (e SavedEvent) encode() ([]byte, error) {
	return json.Marshal(e)
}

func decode(data []byte) (SavedEvent, error) {
	var e SavedEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return SavedEvent{}, fmt.Errorf("failed to decode saved event: %w", err)
	}
	if e.SpaceSlug == "" || e.ObjectName == "" {
		return SavedEvent{}, fmt.Errorf("saved event without space or object")
	}
	return e, nil
}

// Publisher sends SavedEvent notifications.
type Publisher interface {
	Publish(ctx context.Context, e SavedEvent) error
	Close() error
}

// Handler receives decoded events.
type Handler func(SavedEvent)

// Subscriber delivers SavedEvent notifications until ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, h Handler) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, SavedEvent) error { return nil }
func (Nop) Subscribe(context.Context, Handler) error  { return nil }
func (Nop) Close() error                              { return nil }

// Memory delivers events in-process to every subscribed handler.
type Memory struct {
	mu       sync.RWMutex
	handlers []Handler
}

func (m *Memory) Publish(_ context.Context, e SavedEvent) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, h := range m.handlers {
		h(e)
	}
	return nil
}

func (m *Memory) Subscribe(_ context.Context, h Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, h)
	return nil
}

func (m *Memory) Close() error { return nil }

// NotifyingGateway publishes a SavedEvent after every successful save of the
// wrapped gateway.
type NotifyingGateway struct {
	storage.Gateway
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// Notify wraps g. A nil publisher returns g unchanged.
func Notify(g storage.Gateway, p Publisher, logger *slog.Logger) storage.Gateway {
	if p == nil {
		return g
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &NotifyingGateway{Gateway: g, publisher: p, logger: logger, now: time.Now}
}

func (g *NotifyingGateway) Save(ctx context.Context, req storage.SaveRequest) error {
	if err := g.Gateway.Save(ctx, req); err != nil {
		return err
	}
	e := SavedEvent{
		SpaceSlug:    req.Target.SpaceSlug,
		ObjectName:   req.Target.ID,
		TemplateType: string(req.TemplateType),
		SavedAt:      g.now().UTC(),
	}
	if err := g.publisher.Publish(ctx, e); err != nil {
		g.logger.Warn("Failed to publish saved event", "space", e.SpaceSlug, "object", e.ObjectName, "error", err)
	}
	return nil
}

// Unwrap returns the decorated gateway.
func (g *NotifyingGateway) Unwrap() storage.Gateway { return g.Gateway }
