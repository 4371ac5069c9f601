package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/pliu/dmchat/internal/auth"
	"github.com/pliu/dmchat/internal/common"
	"github.com/pliu/dmchat/internal/logging"
	"github.com/pliu/dmchat/internal/media"
	"github.com/pliu/dmchat/internal/middleware"
	"github.com/pliu/dmchat/internal/models"
	"github.com/pliu/dmchat/internal/store"
	"github.com/pliu/dmchat/internal/timex"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignupRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type UpdateProfileRequest struct {
	FullName   string `json:"full_name"`
	ProfilePic string `json:"profile_pic"`
}

type AuthHandler struct {
	Store         store.Store
	Media         media.Uploader
	SecretKey     []byte
	TokenValidity time.Duration
	Logger        logging.Logger
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	req.Email = normalizeEmail(req.Email)
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	req.FullName = strings.TrimSpace(req.FullName)

	if req.FullName == "" || req.Email == "" || req.Username == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "All fields are required")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeMessage(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	for _, taken := range []struct {
		find func(context.Context, string) (*models.User, error)
		value, msg string
	}{
		{h.Store.FindUserByEmail, req.Email, "Email already exists"},
		{h.Store.FindUserByHandleOrEmail, req.Username, "Username already exists"},
	} {
		_, err := taken.find(r.Context(), taken.value)
		if err == nil {
			writeMessage(w, http.StatusBadRequest, taken.msg)
			return
		}
		if !errors.Is(err, common.ErrNotFound) {
			writeError(w, r, h.Logger, err)
			return
		}
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}

	user := &models.User{
		FullName: req.FullName,
		Email:    req.Email,
		Username: req.Username,
		Password: string(hashedPassword),
	}
	if err := h.Store.CreateUser(r.Context(), user); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}

	if err := h.issueToken(w, r, user.ID); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	h.Logger.Info(r.Context(), "User signed up", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	if creds.Email == "" || creds.Password == "" {
		writeMessage(w, http.StatusBadRequest, "All fields are required")
		return
	}

	user, err := h.Store.FindUserByEmail(r.Context(), normalizeEmail(creds.Email))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			writeMessage(w, http.StatusBadRequest, "Invalid credentials")
			return
		}
		writeError(w, r, h.Logger, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(creds.Password)); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid credentials")
		return
	}

	user, err = h.Store.IncrementLoginCount(r.Context(), user.ID, timex.Now())
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	if err := h.issueToken(w, r, user.ID); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Logout records the logout when the caller still holds a valid token and
// always clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := auth.TokenFromRequest(r); token != "" {
		if userID, err := auth.GetUserIDFromToken(token, h.SecretKey); err == nil {
			if err := h.Store.MarkLogout(r.Context(), userID, timex.Now()); err != nil {
				h.Logger.Warn(r.Context(), "Failed to record logout", "user_id", userID, "error", err)
			}
		}
	}
	auth.ClearTokenCookie(w)
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	var req UpdateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	req.FullName = strings.TrimSpace(req.FullName)
	if req.FullName == "" && req.ProfilePic == "" {
		writeMessage(w, http.StatusBadRequest, "Nothing to update")
		return
	}

	var picURL string
	if req.ProfilePic != "" {
		url, err := h.Media.Upload(r.Context(), req.ProfilePic)
		if err != nil {
			writeError(w, r, h.Logger, err)
			return
		}
		picURL = url
	}

	user, err := h.Store.UpdateProfile(r.Context(), userID, req.FullName, picURL)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type checkResponse struct {
	*models.User
	MessagesSent int `json:"messages_sent"`
}

// Check returns the signed-in user with a count of messages they have sent.
func (h *AuthHandler) Check(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	user, err := h.Store.FindUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	sent, err := h.Store.CountSent(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, checkResponse{User: user, MessagesSent: sent})
}

func (h *AuthHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("username"))
	if query == "" {
		writeMessage(w, http.StatusBadRequest, "Username query is required")
		return
	}

	users, err := h.Store.SearchUsers(r.Context(), query)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *AuthHandler) issueToken(w http.ResponseWriter, r *http.Request, userID string) error {
	token, err := auth.GenerateToken(userID, h.SecretKey, h.TokenValidity)
	if err != nil {
		return err
	}
	auth.SetTokenCookie(w, r, token, h.TokenValidity)
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
