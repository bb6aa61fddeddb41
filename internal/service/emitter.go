package service

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter: decouples editor sessions from their front end
// ─────────────────────────────────────────────────────────────

// Event names emitted by the editor.
const (
	EventCompositionChanged = "page:composition-changed"
	EventPageStale          = "page:stale"
	EventPagesChanged       = "page:list-changed"
)

// EventEmitter pushes notifications to whatever renders the pages. Services
// receive this interface instead of a concrete transport, which keeps them
// testable with MockEmitter.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// CompositionChanged is the payload of EventCompositionChanged.
type CompositionChanged struct {
	PageID  string `json:"pageId"`
	Version int64  `json:"version"`
	Label   string `json:"label"`
}

// MockEmitter is a test-friendly EventEmitter that records all calls.
type MockEmitter struct {
	mu     sync.Mutex
	events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, EmittedEvent{Event: event, Data: data})
}

// Events returns a copy of everything recorded so far.
func (m *MockEmitter) Events() []EmittedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]EmittedEvent(nil), m.events...)
}

// Named returns the recorded events called name.
func (m *MockEmitter) Named(name string) []EmittedEvent {
	var out []EmittedEvent
	for _, e := range m.Events() {
		if e.Event == name {
			out = append(out, e)
		}
	}
	return out
}

// ZapEmitter logs every event. The CLI uses it where no front end listens.
type ZapEmitter struct {
	Log *zap.Logger
}

func (z ZapEmitter) Emit(_ context.Context, event string, data any) {
	if z.Log == nil {
		return
	}
	z.Log.Info("event", zap.String("event", event), zap.Any("data", data))
}

type nopEmitter struct{}

func (nopEmitter) Emit(context.Context, string, any) {}
