package sidebar

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pliu/dmchat/internal/models"
	"github.com/pliu/dmchat/internal/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// memStore is a minimal in-memory users + messages backend.
type memStore struct {
	mu       sync.Mutex
	users    []models.User
	messages []models.Message
	err      error
	onSeed   func()
	seeds    int
}

func (m *memStore) ListUsersExcept(_ context.Context, id string) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []models.User
	for _, u := range m.users {
		if u.ID != id {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memStore) FindLatestBetween(_ context.Context, a, b string) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.Message
	for i, msg := range m.messages {
		if (msg.SenderID == a && msg.ReceiverID == b) || (msg.SenderID == b && msg.ReceiverID == a) {
			if latest == nil || msg.CreatedAt.After(latest.CreatedAt) {
				latest = &m.messages[i]
			}
		}
	}
	return latest, nil
}

func (m *memStore) LatestPerPeer(_ context.Context, userID string) (map[string]time.Time, error) {
	m.mu.Lock()
	m.seeds++
	hook := m.onSeed
	out := map[string]time.Time{}
	for _, msg := range m.messages {
		if msg.SenderID != userID && msg.ReceiverID != userID {
			continue
		}
		peer := msg.Peer(userID)
		if msg.CreatedAt.After(out[peer]) {
			out[peer] = msg.CreatedAt
		}
	}
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	return out, nil
}

func (m *memStore) addUser(id string, createdOffset time.Duration) {
	m.users = append(m.users, models.User{ID: id, Username: id, Email: id + "@example.com", CreatedAt: base.Add(createdOffset)})
}

func (m *memStore) send(id, from, to string, at time.Duration) models.Message {
	msg := models.Message{ID: id, SenderID: from, ReceiverID: to, Text: "x", Status: status.Sent, CreatedAt: base.Add(at)}
	m.mu.Lock()
	m.messages = append(m.messages, msg)
	m.mu.Unlock()
	return msg
}

func (m *memStore) remove(id string) models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, msg := range m.messages {
		if msg.ID == id {
			m.messages = append(m.messages[:i], m.messages[i+1:]...)
			return msg
		}
	}
	return models.Message{}
}

type ranked struct {
	ID string
	At time.Time
}

func order(entries []models.SidebarEntry) []ranked {
	out := make([]ranked, len(entries))
	for i, e := range entries {
		out[i] = ranked{e.ID, e.LastMessageTime}
	}
	return out
}

func newFixture() *memStore {
	m := &memStore{}
	m.addUser("alice", 0)
	m.addUser("bob", time.Hour)
	m.addUser("carol", 2*time.Hour)
	m.addUser("dave", 3*time.Hour)
	return m
}

func rankers(m *memStore) map[string]Ranker {
	return map[string]Ranker{
		"naive": NewNaiveRanker(m, m),
		"index": NewIndex(m, m),
	}
}

func TestRank_NeverMessagedSortBySignup(t *testing.T) {
	for name, r := range rankers(newFixture()) {
		t.Run(name, func(t *testing.T) {
			got, err := r.Rank(context.Background(), "alice")
			require.NoError(t, err)

			want := []ranked{
				{"dave", base.Add(3 * time.Hour)},
				{"carol", base.Add(2 * time.Hour)},
				{"bob", base.Add(time.Hour)},
			}
			if diff := cmp.Diff(want, order(got)); diff != "" {
				t.Errorf("Rank() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRank_MessagesLiftPeers(t *testing.T) {
	m := newFixture()
	m.send("m1", "bob", "alice", 10*time.Hour)
	m.send("m2", "alice", "carol", 5*time.Hour)
	m.send("m3", "carol", "alice", 6*time.Hour)
	m.send("m4", "bob", "dave", 20*time.Hour)

	for name, r := range rankers(m) {
		t.Run(name, func(t *testing.T) {
			got, err := r.Rank(context.Background(), "alice")
			require.NoError(t, err)

			want := []ranked{
				{"bob", base.Add(10 * time.Hour)},
				{"carol", base.Add(6 * time.Hour)},
				{"dave", base.Add(3 * time.Hour)},
			}
			if diff := cmp.Diff(want, order(got)); diff != "" {
				t.Errorf("Rank() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRank_MasksEmails(t *testing.T) {
	r := NewNaiveRanker(newFixture(), newFixture())
	got, err := r.Rank(context.Background(), "alice")
	require.NoError(t, err)
	for _, e := range got {
		assert.NotEqual(t, e.ID+"@example.com", e.Email)
	}
}

func TestRank_TiesAreTotal(t *testing.T) {
	m := &memStore{}
	m.addUser("viewer", 0)
	m.addUser("b", time.Hour)
	m.addUser("a", time.Hour)
	m.addUser("c", 30*time.Minute)
	m.send("m1", "c", "viewer", time.Hour)

	got, err := NewNaiveRanker(m, m).Rank(context.Background(), "viewer")
	require.NoError(t, err)
	// All three land on the same instant; newer accounts first, then by id.
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestRank_PropagatesErrors(t *testing.T) {
	m := newFixture()
	m.err = errors.New("db down")
	for name, r := range rankers(m) {
		t.Run(name, func(t *testing.T) {
			_, err := r.Rank(context.Background(), "alice")
			assert.Error(t, err)
		})
	}
}

func TestIndex_TracksAppendsAndDeletes(t *testing.T) {
	m := newFixture()
	idx := NewIndex(m, m)
	naive := NewNaiveRanker(m, m)
	ctx := context.Background()

	_, err := idx.Rank(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, m.seeds)

	idx.Observe(m.send("m1", "dave", "alice", 30*time.Hour))
	idx.Observe(m.send("m2", "alice", "bob", 40*time.Hour))
	idx.Observe(m.send("m3", "bob", "alice", 35*time.Hour))

	for _, viewer := range []string{"alice", "bob", "dave"} {
		got, err := idx.Rank(ctx, viewer)
		require.NoError(t, err)
		want, err := naive.Rank(ctx, viewer)
		require.NoError(t, err)
		if diff := cmp.Diff(order(want), order(got)); diff != "" {
			t.Errorf("%s: index diverged from naive (-want +got):\n%s", viewer, diff)
		}
	}
	seedsBefore := m.seeds

	idx.Forget(m.remove("m2"))
	got, err := idx.Rank(ctx, "alice")
	require.NoError(t, err)
	want, err := naive.Rank(ctx, "alice")
	require.NoError(t, err)
	if diff := cmp.Diff(order(want), order(got)); diff != "" {
		t.Errorf("after delete (-want +got):\n%s", diff)
	}
	assert.Equal(t, seedsBefore+1, m.seeds, "alice should reseed after a delete")
	assert.Equal(t, "bob", got[0].ID)
	assert.Equal(t, base.Add(35*time.Hour), got[0].LastMessageTime)
}

func TestIndex_DiscardsSeedThatRacedAnAppend(t *testing.T) {
	m := newFixture()
	idx := NewIndex(m, m)

	var once sync.Once
	m.onSeed = func() {
		once.Do(func() {
			idx.Observe(m.send("m1", "carol", "alice", 50*time.Hour))
		})
	}

	got, err := idx.Rank(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, m.seeds)
	assert.Equal(t, "carol", got[0].ID)
	assert.Equal(t, base.Add(50*time.Hour), got[0].LastMessageTime)
}
