package websocket

import (
	"context"
	"sync"
)

type opKind int

const (
	opRegister opKind = iota
	opUnregister
	opSubscribe
	opUnsubscribe
)

type hubOp struct {
	kind    opKind
	client  *Client
	channel string
	done    chan struct{}
}

// Hub tracks live connections and which redis channels each one listens on.
// Mutations are serialized through Run; reads take the lock directly.
type Hub struct {
	mu sync.RWMutex

	clients  map[string]*Client
	channels map[string]map[*Client]struct{}
	byUser   map[string]int

	ops      chan hubOp
	stopped  chan struct{}
	stopOnce sync.Once
}

func NewHub() *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		channels: make(map[string]map[*Client]struct{}),
		byUser:   make(map[string]int),
		ops:      make(chan hubOp, 512),
		stopped:  make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.stopOnce.Do(func() { close(h.stopped) })
			h.closeAll()
			return
		case op := <-h.ops:
			switch op.kind {
			case opRegister:
				h.addClient(op.client)
			case opUnregister:
				h.removeClient(op.client)
			case opSubscribe:
				h.subscribeToChannel(op.client, op.channel)
			case opUnsubscribe:
				h.unsubscribeFromChannel(op.client, op.channel)
			}
			close(op.done)
		}
	}
}

// Register, Unregister, Subscribe and Unsubscribe return once the hub has
// applied them, or immediately after the hub stopped.
func (h *Hub) Register(client *Client) {
	h.apply(hubOp{kind: opRegister, client: client})
}

func (h *Hub) Unregister(client *Client) {
	h.apply(hubOp{kind: opUnregister, client: client})
}

func (h *Hub) Subscribe(client *Client, channel string) {
	h.apply(hubOp{kind: opSubscribe, client: client, channel: channel})
}

func (h *Hub) Unsubscribe(client *Client, channel string) {
	h.apply(hubOp{kind: opUnsubscribe, client: client, channel: channel})
}

func (h *Hub) apply(op hubOp) {
	op.done = make(chan struct{})
	select {
	case h.ops <- op:
	case <-h.stopped:
		return
	}
	select {
	case <-op.done:
	case <-h.stopped:
	}
}

// Broadcast delivers payload to every client subscribed to channel and
// returns how many accepted it. Slow clients drop messages rather than
// block the bridge.
func (h *Hub) Broadcast(channel string, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.channels[channel] {
		if c.SendMessage(payload) {
			n++
		}
	}
	return n
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ConnectionsFor is the number of open connections of one user.
func (h *Hub) ConnectionsFor(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.byUser[userID]
}

func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; ok {
		return
	}
	h.clients[client.ID] = client
	h.byUser[client.UserID]++
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	for _, channel := range client.Channels() {
		h.dropSubscriber(channel, client)
	}
	delete(h.clients, client.ID)
	if h.byUser[client.UserID]--; h.byUser[client.UserID] <= 0 {
		delete(h.byUser, client.UserID)
	}
	client.closeSend()
}

func (h *Hub) subscribeToChannel(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	if _, ok := h.channels[channel]; !ok {
		h.channels[channel] = make(map[*Client]struct{})
	}
	h.channels[channel][client] = struct{}{}
	client.track(channel)
}

func (h *Hub) unsubscribeFromChannel(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropSubscriber(channel, client)
	client.untrack(channel)
}

func (h *Hub) dropSubscriber(channel string, client *Client) {
	if subscribers, ok := h.channels[channel]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.channels, channel)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		client.closeSend()
		delete(h.clients, id)
	}
	h.channels = make(map[string]map[*Client]struct{})
	h.byUser = make(map[string]int)
}
