package app

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pliu/dmchat/internal/handlers"
)

type routes struct {
	auth      *handlers.AuthHandler
	messages  *handlers.MessageHandler
	ws        *handlers.WSHandler
	protected func(http.Handler) http.Handler
}

func registerRoutes(r *mux.Router, h routes) {
	a := r.PathPrefix("/api/auth").Subrouter()
	a.HandleFunc("/signup", h.auth.Signup).Methods("POST")
	a.HandleFunc("/login", h.auth.Login).Methods("POST")
	a.HandleFunc("/logout", h.auth.Logout).Methods("POST")
	a.Handle("/update-profile", h.protected(http.HandlerFunc(h.auth.UpdateProfile))).Methods("PUT")
	a.Handle("/check", h.protected(http.HandlerFunc(h.auth.Check))).Methods("GET")
	a.Handle("/search", h.protected(http.HandlerFunc(h.auth.SearchUsers))).Methods("GET")

	m := r.PathPrefix("/api/messages").Subrouter()
	m.Use(h.protected)
	m.HandleFunc("/users", h.messages.Sidebar).Methods("GET")
	m.HandleFunc("/online", h.messages.Online).Methods("GET")
	m.HandleFunc("/send/{id}", h.messages.Send).Methods("POST")
	m.HandleFunc("/{messageId}/status", h.messages.UpdateStatus).Methods("PATCH")
	m.HandleFunc("/{messageId}", h.messages.Delete).Methods("DELETE")
	m.HandleFunc("/{id}", h.messages.History).Methods("GET")

	r.HandleFunc("/ws", h.ws.Serve).Methods("GET")
}
