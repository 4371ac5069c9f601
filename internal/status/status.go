// Package status is the delivery-status state machine for messages:
// sent(1) -> delivered(2) -> read(3). Travel is one-way and read is terminal.
package status

import (
	"encoding/json"
	"fmt"

	"github.com/pliu/dmchat/internal/common"
)

// Status is the ordinal of a message's delivery state.
type Status int

const (
	Unknown Status = iota
	Sent
	Delivered
	Read
)

var names = map[Status]string{
	Sent:      "sent",
	Delivered: "delivered",
	Read:      "read",
}

func (s Status) String() string {
	if n, ok := names[s]; ok {
		return n
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Valid reports whether s is one of the three known states.
func (s Status) Valid() bool {
	_, ok := names[s]
	return ok
}

// Parse maps a wire name to its Status. Unknown names fail with
// common.ErrUnknownStatus.
func Parse(name string) (Status, error) {
	for s, n := range names {
		if n == name {
			return s, nil
		}
	}
	return Unknown, fmt.Errorf("%w: %q", common.ErrUnknownStatus, name)
}

// Transition validates moving from current to requested. It succeeds only
// when requested ranks strictly above current.
func Transition(current, requested Status) (Status, error) {
	if !requested.Valid() {
		return current, fmt.Errorf("%w: %d", common.ErrUnknownStatus, int(requested))
	}
	if !current.Valid() {
		return current, fmt.Errorf("stored %w: %d", common.ErrUnknownStatus, int(current))
	}
	if requested <= current {
		return current, fmt.Errorf("%w: cannot move from %s to %s", common.ErrInvalidTransition, current, requested)
	}
	return requested, nil
}

func (s Status) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", common.ErrUnknownStatus, int(s))
	}
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	parsed, err := Parse(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
