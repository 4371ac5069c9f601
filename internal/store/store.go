package store

import (
	"context"
	"time"

	"github.com/pliu/dmchat/internal/models"
	"github.com/pliu/dmchat/internal/status"
)

// IdentityStore owns user records. Lookups that miss return common.ErrNotFound.
type IdentityStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByHandleOrEmail(ctx context.Context, handleOrEmail string) (*models.User, error)
	SearchUsers(ctx context.Context, query string) ([]models.User, error)
	ListUsersExcept(ctx context.Context, id string) ([]models.User, error)
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
	IncrementLoginCount(ctx context.Context, id string, at time.Time) (*models.User, error)
	MarkLogout(ctx context.Context, id string, at time.Time) error
	UpdateProfile(ctx context.Context, id string, fullName, profilePic string) (*models.User, error)
}

// ConversationStore owns message records.
type ConversationStore interface {
	// Append stores msg and returns the id it was stored under.
	Append(ctx context.Context, msg *models.Message) (string, error)
	FindMessageByID(ctx context.Context, id string) (*models.Message, error)
	// FindBetween returns every message exchanged by a and b, oldest first.
	FindBetween(ctx context.Context, a, b string) ([]models.Message, error)
	// FindLatestBetween returns the newest message between a and b, or nil.
	FindLatestBetween(ctx context.Context, a, b string) (*models.Message, error)
	// LatestPerPeer maps each peer userID has exchanged messages with to the
	// time of the newest such message.
	LatestPerPeer(ctx context.Context, userID string) (map[string]time.Time, error)
	// UpdateStatus moves a message from expected to next atomically. A stored
	// status other than expected fails with common.ErrConflict.
	UpdateStatus(ctx context.Context, id string, expected, next status.Status) error
	// DeleteByID hard-deletes a message on behalf of its sender and returns
	// the removed record. Fails with common.ErrForbidden for anyone else.
	DeleteByID(ctx context.Context, id, requesterID string) (*models.Message, error)
	CountSent(ctx context.Context, userID string) (int, error)
}

type Store interface {
	IdentityStore
	ConversationStore
	Close() error
}
