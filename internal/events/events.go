// Package events defines the envelope exchanged with socket clients. Every
// event carries a Kind from a closed set, and each Kind has exactly one
// payload shape, checked both when an event is built and when one is read.
package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pliu/dmchat/internal/common"
	"github.com/pliu/dmchat/internal/models"
	"github.com/pliu/dmchat/internal/status"
)

type Kind string

const (
	KindPresenceSnapshot Kind = "presenceSnapshot"
	KindNewMessage       Kind = "newMessage"
	KindRefreshSidebar   Kind = "refreshSidebar"
	KindStatusChanged    Kind = "statusChanged"
	KindMessageDeleted   Kind = "messageDeleted"
	KindError            Kind = "error"

	// Sent by clients.
	KindStatusAck Kind = "statusAck"
)

// Payload is implemented by every event body.
type Payload interface {
	Kind() Kind
	Validate() error
}

var registry = map[Kind]func() Payload{
	KindPresenceSnapshot: func() Payload { return &PresenceSnapshot{} },
	KindNewMessage:       func() Payload { return &NewMessage{} },
	KindRefreshSidebar:   func() Payload { return &RefreshSidebar{} },
	KindStatusChanged:    func() Payload { return &StatusChanged{} },
	KindMessageDeleted:   func() Payload { return &MessageDeleted{} },
	KindError:            func() Payload { return &Error{} },
	KindStatusAck:        func() Payload { return &StatusAck{} },
}

// Inbound reports whether clients may send events of this kind.
func (k Kind) Inbound() bool {
	return k == KindStatusAck
}

type PresenceSnapshot struct {
	OnlineUserIDs []string `json:"online_user_ids"`
}

type NewMessage struct {
	models.Message
}

type RefreshSidebar struct{}

type StatusChanged struct {
	MessageID string        `json:"message_id"`
	Status    status.Status `json:"status"`
}

type MessageDeleted struct {
	MessageID string `json:"message_id"`
}

type Error struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// StatusAck lets the receiving client confirm delivery or reading.
type StatusAck struct {
	MessageID string        `json:"message_id"`
	Status    status.Status `json:"status"`
}

func (*PresenceSnapshot) Kind() Kind { return KindPresenceSnapshot }
func (*NewMessage) Kind() Kind       { return KindNewMessage }
func (*RefreshSidebar) Kind() Kind   { return KindRefreshSidebar }
func (*StatusChanged) Kind() Kind    { return KindStatusChanged }
func (*MessageDeleted) Kind() Kind   { return KindMessageDeleted }
func (*Error) Kind() Kind            { return KindError }
func (*StatusAck) Kind() Kind        { return KindStatusAck }

func (p *PresenceSnapshot) Validate() error {
	if p.OnlineUserIDs == nil {
		return common.Validationf("online_user_ids is required")
	}
	return nil
}

func (p *NewMessage) Validate() error {
	if p.ID == "" {
		return common.Validationf("message id is required")
	}
	return p.Message.Validate()
}

func (*RefreshSidebar) Validate() error { return nil }

func (p *StatusChanged) Validate() error {
	return validateStatusRef(p.MessageID, p.Status)
}

func (p *MessageDeleted) Validate() error {
	if p.MessageID == "" {
		return common.Validationf("message_id is required")
	}
	return nil
}

func (p *Error) Validate() error {
	if p.Message == "" {
		return common.Validationf("error message is required")
	}
	return nil
}

func (p *StatusAck) Validate() error {
	return validateStatusRef(p.MessageID, p.Status)
}

func validateStatusRef(id string, st status.Status) error {
	if id == "" {
		return common.Validationf("message_id is required")
	}
	if !st.Valid() {
		return common.Validationf("status is required")
	}
	return nil
}

// Event is the wire envelope.
type Event struct {
	Type      Kind            `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// New validates p and wraps it in an envelope.
func New(p Payload) (Event, error) {
	if _, ok := registry[p.Kind()]; !ok {
		return Event{}, fmt.Errorf("%w: unknown event kind %q", common.ErrValidation, p.Kind())
	}
	if err := p.Validate(); err != nil {
		return Event{}, fmt.Errorf("%s event: %w", p.Kind(), err)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: p.Kind(), Data: data, Timestamp: time.Now().UTC()}, nil
}

// Encode serializes the envelope for the socket.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode returns the typed payload, rejecting unknown kinds, unknown
// fields and payloads that fail validation.
func (e Event) Decode() (Payload, error) {
	factory, ok := registry[e.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unknown event kind %q", common.ErrValidation, e.Type)
	}
	p := factory()

	data := e.Data
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		data = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		if errors.Is(err, common.ErrInvalidTransition) {
			return nil, fmt.Errorf("%s event: %w", e.Type, err)
		}
		return nil, fmt.Errorf("%w: %s event: %v", common.ErrValidation, e.Type, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%s event: %w", e.Type, err)
	}
	return p, nil
}

// Parse reads an envelope from raw bytes and decodes its payload.
func Parse(b []byte) (Event, Payload, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return Event{}, nil, fmt.Errorf("%w: malformed event: %v", common.ErrValidation, err)
	}
	p, err := e.Decode()
	if err != nil {
		return e, nil, err
	}
	return e, p, nil
}
