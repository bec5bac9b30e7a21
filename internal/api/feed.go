package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Event is a progress change pushed to feed subscribers.
type Event struct {
	Type    string    `json:"type"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// Event types published by the handlers.
const (
	EventLessonCompleted   = "lesson_completed"
	EventQuizGraded        = "quiz_graded"
	EventScenarioCompleted = "scenario_completed"
	EventCapstoneSaved     = "capstone_saved"
	EventProgressReset     = "progress_reset"
)

// Feed fans progress events out to WebSocket subscribers. Publishing never
// blocks: a subscriber that falls behind loses events.
type Feed struct {
	mu          sync.Mutex
	subscribers map[chan Event]struct{}
}

// NewFeed creates an empty event feed.
func NewFeed() *Feed {
	return &Feed{subscribers: make(map[chan Event]struct{})}
}

// Publish broadcasts an event to all current subscribers.
func (f *Feed) Publish(eventType string, payload any) {
	ev := Event{Type: eventType, Payload: payload, At: time.Now().UTC()}

	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called to release it.
func (f *Feed) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		delete(f.subscribers, ch)
		f.mu.Unlock()
	}
	return ch, cancel
}

// SubscriberCount reports the number of active subscribers.
func (f *Feed) SubscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}

func (s *Server) handleProgressEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(s.allowedOrigins),
	})
	if err != nil {
		slog.Warn("event feed upgrade failed", "error", err)
		return
	}
	defer conn.CloseNow()

	events, cancel := s.feed.Subscribe()
	defer cancel()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev := <-events:
			if err := wsjson.Write(ctx, conn, ev); err != nil {
				return
			}
		}
	}
}

// originPatterns strips schemes so configured CORS origins double as
// WebSocket origin patterns.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		for _, prefix := range []string{"http://", "https://"} {
			if len(o) > len(prefix) && o[:len(prefix)] == prefix {
				o = o[len(prefix):]
				break
			}
		}
		patterns = append(patterns, o)
	}
	return patterns
}
