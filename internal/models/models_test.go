package models

import (
	"testing"
	"time"

	"github.com/pliu/dmchat/internal/common"
	"github.com/pliu/dmchat/internal/status"
	"github.com/stretchr/testify/assert"
)

func TestMaskEmail(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"a@x.io", "a@x.io"},
		{"ab@x.io", "a*@x.io"},
		{"alice@x.io", "al***@x.io"},
		{"alexander@x.io", "ale******@x.io"},
		{"not-an-email", "not-an-email"},
		{"@x.io", "@x.io"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskEmail(tt.in))
		})
	}
}

func TestUserPublic(t *testing.T) {
	now := time.Now()
	u := User{ID: "u1", Email: "alice@x.io", LastLogin: &now, LoginCount: 4, Password: "hash"}

	p := u.Public()

	assert.Equal(t, "al***@x.io", p.Email)
	assert.Nil(t, p.LastLogin)
	assert.Zero(t, p.LoginCount)
	assert.Equal(t, "alice@x.io", u.Email, "receiver untouched")
}

func TestMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		wantErr bool
	}{
		{"text", Message{SenderID: "a", ReceiverID: "b", Text: "hi", Status: status.Sent}, false},
		{"image only", Message{SenderID: "a", ReceiverID: "b", Image: "http://img", Status: status.Sent}, false},
		{"blank", Message{SenderID: "a", ReceiverID: "b", Text: "   ", Status: status.Sent}, true},
		{"no receiver", Message{SenderID: "a", Text: "hi", Status: status.Sent}, true},
		{"bad status", Message{SenderID: "a", ReceiverID: "b", Text: "hi"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrValidation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestMessagePeer(t *testing.T) {
	m := Message{SenderID: "a", ReceiverID: "b"}
	assert.Equal(t, "b", m.Peer("a"))
	assert.Equal(t, "a", m.Peer("b"))
}
