package events

import "sync"

// Hub fans events out to SSE subscribers. Each subscriber belongs to one
// user; Broadcast reaches everyone, PublishTo only that user's streams.
type Hub struct {
	mu      sync.Mutex
	clients map[chan string]string
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan string]string)}
}

func (h *Hub) Subscribe(userID string) chan string {
	ch := make(chan string, 10)
	h.mu.Lock()
	h.clients[ch] = userID
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan string) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *Hub) Broadcast(evt string) {
	h.publish("", evt)
}

func (h *Hub) PublishTo(userID, evt string) {
	h.publish(userID, evt)
}

func (h *Hub) publish(userID, evt string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch, owner := range h.clients {
		if userID != "" && owner != userID {
			continue
		}
		select {
		case ch <- evt:
		default:
			// drop if slow
		}
	}
}
