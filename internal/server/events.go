package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/flowscope/flowscope/pkg/observability"
)

// Event types pushed to /api/events subscribers.
const (
	eventSnapshot = "snapshot" // a new snapshot was loaded
	eventLayout   = "layout"   // the visible graph or its drawing changed
	eventState    = "state"    // highlights changed, geometry did not
)

// event is one push notification. It carries no graph data; clients
// re-fetch whatever the type invalidates.
type event struct {
	Type      string `json:"type"`
	GraphHash string `json:"graph_hash,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// hub fans state-change events out to websocket subscribers.
type hub struct {
	logger *log.Logger

	mu   sync.Mutex
	subs map[chan event]struct{}
}

func newHub(logger *log.Logger) *hub {
	return &hub{logger: logger, subs: make(map[chan event]struct{})}
}

func (h *hub) subscribe() chan event {
	ch := make(chan event, 8)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *hub) unsubscribe(ch chan event) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// broadcast queues ev for every subscriber. A subscriber that cannot keep
// up loses the event rather than blocking the mutation that produced it.
func (h *hub) broadcast(ctx context.Context, ev event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			observability.Server().OnEventDropped(ctx, len(h.subs))
			h.logger.Warn("subscriber too slow, event dropped", "type", ev.Type)
		}
	}
}

// handleEvents upgrades to a websocket and streams events until the
// client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ch := s.hub.subscribe()
	defer s.hub.unsubscribe(ch)
	s.logger.Debug("event subscriber connected", "subscribers", s.hub.count())

	// Reads are discarded, but reading is what surfaces the close frame.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev := <-ch:
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
