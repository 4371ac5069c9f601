// Package delivery routes message events to the live connections of the
// users involved. Pushes are fire-and-forget: the store write that precedes
// a push is what makes a message durable.
package delivery

import (
	"context"

	"github.com/pliu/dmchat/internal/events"
	"github.com/pliu/dmchat/internal/logging"
	"github.com/pliu/dmchat/internal/models"
)

// Transport delivers an event to a user's registered connection or to every
// connection in the user's broadcast group. A missing target is not an error.
type Transport interface {
	SendToConnection(userID string, ev events.Event) bool
	SendToGroup(userID string, ev events.Event) int
}

type Router struct {
	transport Transport
	logger    logging.Logger
}

func NewRouter(transport Transport, logger logging.Logger) *Router {
	return &Router{transport: transport, logger: logger}
}

// PushNewMessage sends the full message to the receiver's registered
// connection and a refreshSidebar signal to the receiver's whole group.
func (r *Router) PushNewMessage(ctx context.Context, msg models.Message) {
	if ev, ok := r.build(ctx, &events.NewMessage{Message: msg}); ok {
		r.transport.SendToConnection(msg.ReceiverID, ev)
	}
	if ev, ok := r.build(ctx, &events.RefreshSidebar{}); ok {
		r.transport.SendToGroup(msg.ReceiverID, ev)
	}
}

// PushStatusUpdate sends {message_id, status} to the registered connections
// of both participants.
func (r *Router) PushStatusUpdate(ctx context.Context, msg models.Message) {
	ev, ok := r.build(ctx, &events.StatusChanged{MessageID: msg.ID, Status: msg.Status})
	if !ok {
		return
	}
	for _, id := range participants(msg) {
		r.transport.SendToConnection(id, ev)
	}
}

// PushDeletion sends messageDeleted to both participants' groups.
func (r *Router) PushDeletion(ctx context.Context, msg models.Message) {
	ev, ok := r.build(ctx, &events.MessageDeleted{MessageID: msg.ID})
	if !ok {
		return
	}
	for _, id := range participants(msg) {
		r.transport.SendToGroup(id, ev)
	}
}

func (r *Router) build(ctx context.Context, p events.Payload) (events.Event, bool) {
	ev, err := events.New(p)
	if err != nil {
		r.logger.Warn(ctx, "Failed to build event", "type", p.Kind(), "error", err)
		return events.Event{}, false
	}
	return ev, true
}

// participants lists sender then receiver, once each for a self-addressed
// message.
func participants(msg models.Message) []string {
	if msg.SenderID == msg.ReceiverID {
		return []string{msg.SenderID}
	}
	return []string{msg.SenderID, msg.ReceiverID}
}
