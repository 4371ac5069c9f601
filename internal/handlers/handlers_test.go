package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/pliu/dmchat/internal/auth"
	"github.com/pliu/dmchat/internal/delivery"
	"github.com/pliu/dmchat/internal/events"
	"github.com/pliu/dmchat/internal/logging"
	"github.com/pliu/dmchat/internal/messaging"
	"github.com/pliu/dmchat/internal/middleware"
	"github.com/pliu/dmchat/internal/models"
	"github.com/pliu/dmchat/internal/sidebar"
	"github.com/pliu/dmchat/internal/store/sqlstore"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testSecret = []byte("handler-secret")

type nopTransport struct{}

func (nopTransport) SendToConnection(string, events.Event) bool { return false }
func (nopTransport) SendToGroup(string, events.Event) int       { return 0 }

type staticPresence []string

func (p staticPresence) Online() []string { return p }

type stubUploader struct{}

func (stubUploader) Upload(_ context.Context, _ string) (string, error) {
	return "https://cdn.example/pic.png", nil
}

type testServer struct {
	store  *sqlstore.SQLStore
	router *mux.Router
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st, err := sqlstore.New(context.Background(), "sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	logger := logging.Discard()
	svc := messaging.NewService(st, delivery.NewRouter(nopTransport{}, logger), sidebar.NewNaiveRanker(st, st), stubUploader{}, logger)
	authHandler := &AuthHandler{Store: st, Media: stubUploader{}, SecretKey: testSecret, TokenValidity: time.Hour, Logger: logger}
	msgHandler := &MessageHandler{Service: svc, Presence: staticPresence{"x"}, Logger: logger}

	r := mux.NewRouter()
	protected := middleware.AuthMiddleware(testSecret, st)

	a := r.PathPrefix("/api/auth").Subrouter()
	a.HandleFunc("/signup", authHandler.Signup).Methods("POST")
	a.HandleFunc("/login", authHandler.Login).Methods("POST")
	a.HandleFunc("/logout", authHandler.Logout).Methods("POST")
	a.Handle("/update-profile", protected(http.HandlerFunc(authHandler.UpdateProfile))).Methods("PUT")
	a.Handle("/check", protected(http.HandlerFunc(authHandler.Check))).Methods("GET")
	a.Handle("/search", protected(http.HandlerFunc(authHandler.SearchUsers))).Methods("GET")

	m := r.PathPrefix("/api/messages").Subrouter()
	m.Use(protected)
	m.HandleFunc("/users", msgHandler.Sidebar).Methods("GET")
	m.HandleFunc("/online", msgHandler.Online).Methods("GET")
	m.HandleFunc("/send/{id}", msgHandler.Send).Methods("POST")
	m.HandleFunc("/{messageId}/status", msgHandler.UpdateStatus).Methods("PATCH")
	m.HandleFunc("/{messageId}", msgHandler.Delete).Methods("DELETE")
	m.HandleFunc("/{id}", msgHandler.History).Methods("GET")

	return &testServer{store: st, router: r}
}

// createUser stores a user directly and returns it with a session token.
func (s *testServer) createUser(t *testing.T, username string) (*models.User, string) {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	u := &models.User{Email: username + "@example.com", Username: username, FullName: username, Password: string(hashed)}
	require.NoError(t, s.store.CreateUser(context.Background(), u))
	tok, err := auth.GenerateToken(u.ID, testSecret, time.Hour)
	require.NoError(t, err)
	return u, tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}
