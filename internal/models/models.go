package models

import (
	"strings"
	"time"

	"github.com/pliu/dmchat/internal/common"
	"github.com/pliu/dmchat/internal/status"
)

type User struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Username   string     `json:"username"`
	FullName   string     `json:"full_name"`
	Password   string     `json:"-"`
	ProfilePic string     `json:"profile_pic"`
	LastSeen   *time.Time `json:"last_seen,omitempty"`
	LastLogin  *time.Time `json:"last_login,omitempty"`
	LastLogout *time.Time `json:"last_logout,omitempty"`
	LoginCount int        `json:"login_count"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Public returns a copy safe to show to other users.
func (u User) Public() User {
	u.Email = MaskEmail(u.Email)
	u.LastLogin = nil
	u.LastLogout = nil
	u.LoginCount = 0
	return u
}

type Message struct {
	ID         string        `json:"id"`
	SenderID   string        `json:"sender_id"`
	ReceiverID string        `json:"receiver_id"`
	Text       string        `json:"text,omitempty"`
	Image      string        `json:"image,omitempty"`
	Status     status.Status `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Validate checks the fields a message needs before it is stored.
func (m *Message) Validate() error {
	if m.SenderID == "" || m.ReceiverID == "" {
		return common.Validationf("sender and receiver are required")
	}
	if strings.TrimSpace(m.Text) == "" && m.Image == "" {
		return common.Validationf("message needs text or an image")
	}
	if !m.Status.Valid() {
		return common.Validationf("message status %d is not valid", int(m.Status))
	}
	return nil
}

// Peer returns the other participant of m as seen by userID.
func (m *Message) Peer(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

// SidebarEntry is one ranked peer in a user's conversation list.
type SidebarEntry struct {
	User
	LastMessageTime time.Time `json:"last_message_time"`
}

// MaskEmail hides most of the local part: "alice@x.io" -> "al***@x.io".
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return email
	}
	visible := 1
	if len(local) > 2 {
		visible = min(len(local)/2, 3)
	}
	if visible > len(local) {
		visible = len(local)
	}
	return local[:visible] + strings.Repeat("*", len(local)-visible) + "@" + domain
}
