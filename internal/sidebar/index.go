package sidebar

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/pliu/dmchat/internal/models"
)

const seedAttempts = 3

// Index keeps each viewer's last interaction time per peer in memory. A
// viewer is seeded from the store on first use and kept current through
// Observe and Forget. Users are still listed per call so new signups and
// profile edits show up immediately.
type Index struct {
	users   UserLister
	history PeerHistory

	mu       sync.RWMutex
	latest   map[string]map[string]time.Time
	versions map[string]uint64
}

func NewIndex(users UserLister, history PeerHistory) *Index {
	return &Index{
		users:    users,
		history:  history,
		latest:   make(map[string]map[string]time.Time),
		versions: make(map[string]uint64),
	}
}

func (x *Index) Rank(ctx context.Context, viewerID string) ([]models.SidebarEntry, error) {
	peers, err := x.peers(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	users, err := x.users.ListUsersExcept(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	entries := make([]models.SidebarEntry, 0, len(users))
	for _, u := range users {
		entries = append(entries, entry(u, peers[u.ID]))
	}
	sortEntries(entries)
	return entries, nil
}

// peers returns a copy of the viewer's peer times, seeding them if needed.
// A seed is discarded when a message touching the viewer was observed while
// the query ran.
func (x *Index) peers(ctx context.Context, viewerID string) (map[string]time.Time, error) {
	x.mu.RLock()
	cached, ok := x.latest[viewerID]
	if ok {
		cached = maps.Clone(cached)
	}
	x.mu.RUnlock()
	if ok {
		return cached, nil
	}

	var seed map[string]time.Time
	for range seedAttempts {
		x.mu.RLock()
		version := x.versions[viewerID]
		x.mu.RUnlock()

		var err error
		seed, err = x.history.LatestPerPeer(ctx, viewerID)
		if err != nil {
			return nil, err
		}

		x.mu.Lock()
		if x.versions[viewerID] == version {
			if existing, ok := x.latest[viewerID]; ok {
				seed = existing
			} else {
				x.latest[viewerID] = seed
			}
			out := maps.Clone(seed)
			x.mu.Unlock()
			return out, nil
		}
		x.mu.Unlock()
	}
	// Still racing writers: answer from the last read without caching it.
	return seed, nil
}

// Observe records msg as the latest interaction between its participants.
func (x *Index) Observe(msg models.Message) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.touch(msg.SenderID, msg.ReceiverID, msg.CreatedAt)
	x.touch(msg.ReceiverID, msg.SenderID, msg.CreatedAt)
}

func (x *Index) touch(viewerID, peerID string, at time.Time) {
	x.versions[viewerID]++
	if peers, ok := x.latest[viewerID]; ok && at.After(peers[peerID]) {
		peers[peerID] = at.UTC()
	}
}

// Forget drops both participants' cached state so the next Rank reseeds
// from the store, which no longer holds msg.
func (x *Index) Forget(msg models.Message) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, id := range []string{msg.SenderID, msg.ReceiverID} {
		x.versions[id]++
		delete(x.latest, id)
	}
}
