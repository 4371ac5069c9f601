package handlers

import (
	"errors"
	"net/http"

	"github.com/pliu/dmchat/internal/auth"
	"github.com/pliu/dmchat/internal/common"
	"github.com/pliu/dmchat/internal/logging"
	"github.com/pliu/dmchat/internal/middleware"
	"github.com/pliu/dmchat/internal/ws"
)

// WSHandler upgrades socket connections. A request without a token gets an
// anonymous connection; a request with a bad token, or a token for a user
// that no longer exists, is refused.
type WSHandler struct {
	Hub       *ws.Hub
	SecretKey []byte
	Users     middleware.UserFinder
	Logger    logging.Logger
}

func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	var userID string
	if token := auth.TokenFromRequest(r); token != "" {
		id, err := auth.GetUserIDFromToken(token, h.SecretKey)
		if err != nil {
			writeError(w, r, h.Logger, err)
			return
		}
		if _, err := h.Users.FindUserByID(r.Context(), id); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				writeMessage(w, http.StatusUnauthorized, "Unauthorized - User Not Found")
				return
			}
			writeError(w, r, h.Logger, err)
			return
		}
		userID = id
	}
	ws.ServeWs(h.Hub, w, r, userID)
}
