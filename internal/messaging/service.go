// Package messaging runs the request side of the core: every operation
// writes to the store first and only then asks the router to push.
package messaging

import (
	"context"
	"fmt"
	"strings"

	"github.com/pliu/dmchat/internal/common"
	"github.com/pliu/dmchat/internal/events"
	"github.com/pliu/dmchat/internal/logging"
	"github.com/pliu/dmchat/internal/media"
	"github.com/pliu/dmchat/internal/models"
	"github.com/pliu/dmchat/internal/sidebar"
	"github.com/pliu/dmchat/internal/status"
	"github.com/pliu/dmchat/internal/store"
	"github.com/pliu/dmchat/internal/timex"
)

// Pusher is the outbound half of the core. delivery.Router implements it.
type Pusher interface {
	PushNewMessage(ctx context.Context, msg models.Message)
	PushStatusUpdate(ctx context.Context, msg models.Message)
	PushDeletion(ctx context.Context, msg models.Message)
}

type Service struct {
	store    store.Store
	pusher   Pusher
	ranker   sidebar.Ranker
	observer sidebar.Observer
	media    media.Uploader
	logger   logging.Logger
}

// NewService wires the core. When ranker also implements sidebar.Observer it
// is kept current on every append and delete.
func NewService(st store.Store, pusher Pusher, ranker sidebar.Ranker, uploader media.Uploader, logger logging.Logger) *Service {
	s := &Service{
		store:  st,
		pusher: pusher,
		ranker: ranker,
		media:  uploader,
		logger: logger,
	}
	if obs, ok := ranker.(sidebar.Observer); ok {
		s.observer = obs
	}
	if s.media == nil {
		s.media = media.Disabled{}
	}
	return s
}

// Send stores a message from senderID to receiverID and pushes it to the
// receiver if they are online. image may be a data URL or bare base64.
func (s *Service) Send(ctx context.Context, senderID, receiverID, text, image string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" && image == "" {
		return nil, common.Validationf("message needs text or an image")
	}
	if _, err := s.store.FindUserByID(ctx, receiverID); err != nil {
		return nil, fmt.Errorf("receiver: %w", err)
	}

	var imageURL string
	if image != "" {
		url, err := s.media.Upload(ctx, image)
		if err != nil {
			return nil, err
		}
		imageURL = url
	}

	msg := models.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		Image:      imageURL,
		Status:     status.Sent,
		CreatedAt:  timex.Now(),
	}
	id, err := s.store.Append(ctx, &msg)
	if err != nil {
		return nil, err
	}
	msg.ID = id

	if s.observer != nil {
		s.observer.Observe(msg)
	}
	s.pusher.PushNewMessage(ctx, msg)
	s.logger.Debug(ctx, "Message sent", "message_id", id, "sender_id", senderID, "receiver_id", receiverID)
	return &msg, nil
}

// UpdateStatus advances a message on behalf of its receiver. The check runs
// against the stored status and the write only lands if that status is still
// current, so of two racing requests at most one succeeds. It returns the
// message as it was and as it is now.
func (s *Service) UpdateStatus(ctx context.Context, actorID, messageID string, requested status.Status) (*models.Message, *models.Message, error) {
	msg, err := s.store.FindMessageByID(ctx, messageID)
	if err != nil {
		return nil, nil, err
	}
	if msg.ReceiverID != actorID {
		return nil, nil, fmt.Errorf("%w: only the receiver can update a message's status", common.ErrForbidden)
	}

	next, err := status.Transition(msg.Status, requested)
	if err != nil {
		return nil, nil, err
	}
	if err := s.store.UpdateStatus(ctx, messageID, msg.Status, next); err != nil {
		return nil, nil, err
	}

	updated := *msg
	updated.Status = next
	s.pusher.PushStatusUpdate(ctx, updated)
	s.logger.Debug(ctx, "Message status updated", "message_id", messageID, "from", msg.Status, "to", next)
	return msg, &updated, nil
}

// Delete hard-deletes a message on behalf of its sender and tells both
// participants.
func (s *Service) Delete(ctx context.Context, actorID, messageID string) (*models.Message, error) {
	removed, err := s.store.DeleteByID(ctx, messageID, actorID)
	if err != nil {
		return nil, err
	}
	if s.observer != nil {
		s.observer.Forget(*removed)
	}
	s.pusher.PushDeletion(ctx, *removed)
	s.logger.Debug(ctx, "Message deleted", "message_id", messageID, "sender_id", actorID)
	return removed, nil
}

// History returns the conversation between viewerID and peerID, oldest first.
func (s *Service) History(ctx context.Context, viewerID, peerID string) ([]models.Message, error) {
	return s.store.FindBetween(ctx, viewerID, peerID)
}

func (s *Service) Sidebar(ctx context.Context, viewerID string) ([]models.SidebarEntry, error) {
	return s.ranker.Rank(ctx, viewerID)
}

// HandleInbound serves events sent over a user's socket.
func (s *Service) HandleInbound(ctx context.Context, userID string, p events.Payload) error {
	switch ev := p.(type) {
	case *events.StatusAck:
		_, _, err := s.UpdateStatus(ctx, userID, ev.MessageID, ev.Status)
		return err
	default:
		return common.Validationf("unsupported inbound event %s", p.Kind())
	}
}
