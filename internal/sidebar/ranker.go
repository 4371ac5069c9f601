// Package sidebar orders a user's peers by most recent interaction.
package sidebar

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/pliu/dmchat/internal/models"
)

// Ranker returns every other user ordered by last interaction, newest first.
type Ranker interface {
	Rank(ctx context.Context, viewerID string) ([]models.SidebarEntry, error)
}

// Observer is told about every stored and deleted message so it can keep
// derived state current.
type Observer interface {
	Observe(msg models.Message)
	Forget(msg models.Message)
}

type UserLister interface {
	ListUsersExcept(ctx context.Context, id string) ([]models.User, error)
}

type LatestFinder interface {
	FindLatestBetween(ctx context.Context, a, b string) (*models.Message, error)
}

type PeerHistory interface {
	LatestPerPeer(ctx context.Context, userID string) (map[string]time.Time, error)
}

// NaiveRanker issues one latest-message query per peer on every call.
type NaiveRanker struct {
	users    UserLister
	messages LatestFinder
}

func NewNaiveRanker(users UserLister, messages LatestFinder) *NaiveRanker {
	return &NaiveRanker{users: users, messages: messages}
}

func (r *NaiveRanker) Rank(ctx context.Context, viewerID string) ([]models.SidebarEntry, error) {
	users, err := r.users.ListUsersExcept(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	entries := make([]models.SidebarEntry, 0, len(users))
	for _, u := range users {
		latest, err := r.messages.FindLatestBetween(ctx, viewerID, u.ID)
		if err != nil {
			return nil, err
		}
		var at time.Time
		if latest != nil {
			at = latest.CreatedAt
		}
		entries = append(entries, entry(u, at))
	}
	sortEntries(entries)
	return entries, nil
}

// entry floors the interaction time at the peer's signup time.
func entry(u models.User, lastMessage time.Time) models.SidebarEntry {
	at := u.CreatedAt
	if lastMessage.After(at) {
		at = lastMessage
	}
	return models.SidebarEntry{User: u.Public(), LastMessageTime: at.UTC()}
}

// sortEntries orders newest first. Ties go to the newer account, then to the
// smaller id, so the order is total.
func sortEntries(entries []models.SidebarEntry) {
	slices.SortStableFunc(entries, func(a, b models.SidebarEntry) int {
		if c := b.LastMessageTime.Compare(a.LastMessageTime); c != 0 {
			return c
		}
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
