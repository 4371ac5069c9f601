package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pliu/dmchat/internal/auth"
	"github.com/pliu/dmchat/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignup(t *testing.T) {
	s := newTestServer(t)

	req := SignupRequest{FullName: "Test User", Email: "test@example.com", Username: "TestUser", Password: "password123"}
	rr := s.do(t, "POST", "/api/auth/signup", "", req)

	if status := rr.Code; status != http.StatusCreated {
		t.Fatalf("handler returned wrong status code: got %v want %v: %s",
			status, http.StatusCreated, rr.Body.String())
	}
	body := decode[map[string]any](t, rr)
	assert.Equal(t, "testuser", body["username"])
	assert.NotContains(t, body, "password")

	cookies := rr.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, auth.CookieName, cookies[0].Name)

	// Test duplicate email and username
	dup := s.do(t, "POST", "/api/auth/signup", "", req)
	assert.Equal(t, http.StatusBadRequest, dup.Code)
	assert.Equal(t, "Email already exists", decode[messageResponse](t, dup).Message)

	req.Email = "other@example.com"
	dup = s.do(t, "POST", "/api/auth/signup", "", req)
	assert.Equal(t, http.StatusBadRequest, dup.Code)
	assert.Equal(t, "Username already exists", decode[messageResponse](t, dup).Message)
}

func TestSignup_Validation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		req  SignupRequest
		want string
	}{
		{"missing fields", SignupRequest{Email: "a@b.c"}, "All fields are required"},
		{"short password", SignupRequest{FullName: "A", Email: "a@b.c", Username: "a", Password: "12345"}, "Password must be at least 6 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := s.do(t, "POST", "/api/auth/signup", "", tt.req)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tt.want, decode[messageResponse](t, rr).Message)
		})
	}
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	s.createUser(t, "testuser")

	rr := s.do(t, "POST", "/api/auth/login", "", Credentials{Email: "testuser@example.com", Password: "password123"})
	if status := rr.Code; status != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}

	body := decode[map[string]any](t, rr)
	assert.EqualValues(t, 1, body["login_count"])
	assert.NotNil(t, body["last_login"])

	// Check cookies
	cookies := rr.Result().Cookies()
	if len(cookies) == 0 {
		t.Error("Expected cookies to be set")
	}

	bad := s.do(t, "POST", "/api/auth/login", "", Credentials{Email: "testuser@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusBadRequest, bad.Code)
	assert.Equal(t, "Invalid credentials", decode[messageResponse](t, bad).Message)

	unknown := s.do(t, "POST", "/api/auth/login", "", Credentials{Email: "nobody@example.com", Password: "password123"})
	assert.Equal(t, http.StatusBadRequest, unknown.Code)
}

func TestLogin_ByEmailOnly(t *testing.T) {
	s := newTestServer(t)
	s.createUser(t, "testuser")

	rr := s.do(t, "POST", "/api/auth/login", "", Credentials{Email: "testuser", Password: "password123"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid credentials", decode[messageResponse](t, rr).Message)
}

func TestEmailCaseInsensitive(t *testing.T) {
	s := newTestServer(t)

	req := SignupRequest{FullName: "Bob", Email: "  Bob@Example.COM ", Username: "bob", Password: "password123"}
	rr := s.do(t, "POST", "/api/auth/signup", "", req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "bob@example.com", decode[map[string]any](t, rr)["email"])

	req.Email = "bob@example.com"
	req.Username = "bobby"
	dup := s.do(t, "POST", "/api/auth/signup", "", req)
	assert.Equal(t, http.StatusBadRequest, dup.Code)
	assert.Equal(t, "Email already exists", decode[messageResponse](t, dup).Message)

	login := s.do(t, "POST", "/api/auth/login", "", Credentials{Email: "BOB@example.com", Password: "password123"})
	assert.Equal(t, http.StatusOK, login.Code, login.Body.String())
}

func TestWSHandler_RejectsUnknownUser(t *testing.T) {
	s := newTestServer(t)
	h := &WSHandler{SecretKey: testSecret, Users: s.store, Logger: logging.Discard()}

	tok, err := auth.GenerateToken("ghost", testSecret, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest("GET", "/ws?token="+tok, nil)
	rr := httptest.NewRecorder()
	h.Serve(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest("GET", "/ws?token=not-a-jwt", nil)
	rr = httptest.NewRecorder()
	h.Serve(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogout(t *testing.T) {
	s := newTestServer(t)
	u, tok := s.createUser(t, "alice")

	rr := s.do(t, "POST", "/api/auth/logout", tok, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	cookies := rr.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Negative(t, cookies[0].MaxAge)

	check := s.do(t, "GET", "/api/auth/check", tok, nil)
	require.Equal(t, http.StatusOK, check.Code)
	body := decode[map[string]any](t, check)
	assert.Equal(t, u.ID, body["id"])
	assert.NotNil(t, body["last_logout"])
}

func TestCheck(t *testing.T) {
	s := newTestServer(t)
	alice, tok := s.createUser(t, "alice")
	bob, _ := s.createUser(t, "bob")

	rr := s.do(t, "GET", "/api/auth/check", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	send := s.do(t, "POST", "/api/messages/send/"+bob.ID, tok, SendMessageRequest{Text: "hi"})
	require.Equal(t, http.StatusCreated, send.Code)

	rr = s.do(t, "GET", "/api/auth/check", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode[map[string]any](t, rr)
	assert.Equal(t, alice.ID, body["id"])
	assert.EqualValues(t, 1, body["messages_sent"])
}

func TestUpdateProfile(t *testing.T) {
	s := newTestServer(t)
	_, tok := s.createUser(t, "alice")

	rr := s.do(t, "PUT", "/api/auth/update-profile", tok, UpdateProfileRequest{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Nothing to update", decode[messageResponse](t, rr).Message)

	rr = s.do(t, "PUT", "/api/auth/update-profile", tok, UpdateProfileRequest{ProfilePic: "data:image/png;base64,AAAA"})
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode[map[string]any](t, rr)
	assert.Equal(t, "https://cdn.example/pic.png", body["profile_pic"])
	assert.Equal(t, "alice", body["full_name"])

	rr = s.do(t, "PUT", "/api/auth/update-profile", tok, UpdateProfileRequest{FullName: "Alice A."})
	require.Equal(t, http.StatusOK, rr.Code)
	body = decode[map[string]any](t, rr)
	assert.Equal(t, "Alice A.", body["full_name"])
	assert.Equal(t, "https://cdn.example/pic.png", body["profile_pic"])
}

func TestSearchUsers(t *testing.T) {
	s := newTestServer(t)
	_, tok := s.createUser(t, "alice")
	s.createUser(t, "alicia")
	s.createUser(t, "bob")

	rr := s.do(t, "GET", "/api/auth/search", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(t, "GET", "/api/auth/search?username=ALI", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	users := decode[[]map[string]any](t, rr)
	require.Len(t, users, 2)
	for _, u := range users {
		assert.Contains(t, u["email"], "*")
	}
}
