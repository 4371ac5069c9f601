package ws

import (
	"context"
	"time"

	"github.com/pliu/dmchat/internal/events"
	"github.com/pliu/dmchat/internal/logging"
	"github.com/pliu/dmchat/internal/presence"
	"github.com/pliu/dmchat/internal/timex"
)

const lastSeenTimeout = 5 * time.Second

// LastSeenRecorder persists when a user was last online.
type LastSeenRecorder interface {
	UpdateLastSeen(ctx context.Context, userID string, at time.Time) error
}

// InboundHandler processes a validated event sent by an identified client.
type InboundHandler interface {
	HandleInbound(ctx context.Context, userID string, p events.Payload) error
}

// delivery is one queued write to a set of clients.
type delivery struct {
	targets []*Client
	payload []byte
}

// Hub owns every socket and the presence table. Registration, removal and
// writes to client buffers all happen on the Run goroutine.
type Hub struct {
	// Registered clients, identified or not.
	clients map[*Client]bool

	presence *presence.Table[*Client]

	register   chan *Client
	unregister chan *Client
	outbound   chan delivery
	done       chan struct{}

	lastSeen LastSeenRecorder
	inbound  InboundHandler
	logger   logging.Logger
}

func NewHub(lastSeen LastSeenRecorder, logger logging.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		presence:   presence.NewTable[*Client](),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		outbound:   make(chan delivery, 256),
		done:       make(chan struct{}),
		lastSeen:   lastSeen,
		logger:     logger,
	}
}

// SetInboundHandler installs the handler for client-sent events. It must be
// called before Run.
func (h *Hub) SetInboundHandler(handler InboundHandler) {
	h.inbound = handler
}

// Run dispatches connection lifecycle events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			if h.presence.Connect(client.userID, client) {
				h.logger.Debug(ctx, "Client connected", "user_id", client.userID)
				h.broadcastPresence(ctx)
			}
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			if userID, ok := h.presence.Disconnect(client); ok {
				h.logger.Debug(ctx, "Client disconnected", "user_id", userID)
				h.recordLastSeen(ctx, userID)
				h.broadcastPresence(ctx)
			}
		case d := <-h.outbound:
			for _, client := range d.targets {
				h.deliver(client, d.payload)
			}
		}
	}
}

// deliver must only be called from Run.
func (h *Hub) deliver(client *Client, payload []byte) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	select {
	case client.send <- payload:
	default:
		close(client.send)
		delete(h.clients, client)
	}
}

func (h *Hub) recordLastSeen(ctx context.Context, userID string) {
	if h.lastSeen == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lastSeenTimeout)
	defer cancel()
	if err := h.lastSeen.UpdateLastSeen(ctx, userID, timex.Now()); err != nil {
		h.logger.Warn(ctx, "Failed to update last seen", "user_id", userID, "error", err)
	}
}

// broadcastPresence sends the online set to every identified client. It must
// only be called from Run.
func (h *Hub) broadcastPresence(ctx context.Context) {
	ev, err := events.New(&events.PresenceSnapshot{OnlineUserIDs: h.presence.Online()})
	if err != nil {
		h.logger.Warn(ctx, "Failed to build presence snapshot", "error", err)
		return
	}
	payload, err := ev.Encode()
	if err != nil {
		h.logger.Warn(ctx, "Failed to encode presence snapshot", "error", err)
		return
	}
	for client := range h.clients {
		if client.userID != "" {
			h.deliver(client, payload)
		}
	}
}

// enqueue hands a write to Run. It drops the write once the hub has stopped.
func (h *Hub) enqueue(targets []*Client, ev events.Event) bool {
	if len(targets) == 0 {
		return false
	}
	payload, err := ev.Encode()
	if err != nil {
		h.logger.Warn(context.Background(), "Failed to encode event", "type", ev.Type, "error", err)
		return false
	}
	select {
	case h.outbound <- delivery{targets: targets, payload: payload}:
		return true
	case <-h.done:
		return false
	}
}

// SendToConnection pushes ev to userID's registered connection. The lookup
// may race a disconnect, in which case the write is silently dropped.
func (h *Hub) SendToConnection(userID string, ev events.Event) bool {
	client, ok := h.presence.Lookup(userID)
	if !ok {
		return false
	}
	return h.enqueue([]*Client{client}, ev)
}

// SendToGroup pushes ev to every open connection of userID and returns how
// many were targeted.
func (h *Hub) SendToGroup(userID string, ev events.Event) int {
	group := h.presence.Group(userID)
	if !h.enqueue(group, ev) {
		return 0
	}
	return len(group)
}

// Online returns the sorted ids of users with a registered connection.
func (h *Hub) Online() []string {
	return h.presence.Online()
}

func (h *Hub) IsOnline(userID string) bool {
	return h.presence.IsOnline(userID)
}
