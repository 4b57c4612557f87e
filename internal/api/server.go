// Package api exposes the HTTP surface: the WhatsApp webhook pair
// (verification GET, delivery POST), health and info endpoints, and a
// QR code for the ordering site.
package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/bensky103/SalaDBot/internal/buildinfo"
	"github.com/bensky103/SalaDBot/internal/messages"
	"github.com/bensky103/SalaDBot/internal/session"
	"github.com/bensky103/SalaDBot/internal/whatsapp"
)

// maxWebhookBody bounds delivery payload reads. Cloud API deliveries
// are small; anything bigger is not a webhook.
const maxWebhookBody = 1 << 20

// Responder processes one user turn and returns the reply text.
type Responder interface {
	Process(ctx context.Context, userID, text string) (string, error)
}

// Sender delivers replies back to the user.
type Sender interface {
	SendText(ctx context.Context, to, body string) error
	MarkRead(ctx context.Context, messageID string) error
}

// CatalogHealth reports whether the menu database answers queries.
type CatalogHealth interface {
	Count(ctx context.Context) (int, error)
}

// ModelHealth reports whether the completion provider is reachable.
type ModelHealth interface {
	Ping(ctx context.Context) error
}

// Config wires the server's collaborators.
type Config struct {
	Chat     Responder
	Sender   Sender
	Sessions *session.Store
	Catalog  CatalogHealth
	Model    ModelHealth

	VerifyToken string
	AppSecret   string
	OrderURL    string

	Logger *slog.Logger
}

// Server is the HTTP API.
type Server struct {
	chat     Responder
	sender   Sender
	sessions *session.Store
	catalog  CatalogHealth
	model    ModelHealth

	verifyToken string
	appSecret   string
	orderURL    string

	logger *slog.Logger
}

// New creates the server.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{
		chat:        cfg.Chat,
		sender:      cfg.Sender,
		sessions:    cfg.Sessions,
		catalog:     cfg.Catalog,
		model:       cfg.Model,
		verifyToken: cfg.VerifyToken,
		appSecret:   cfg.AppSecret,
		orderURL:    cfg.OrderURL,
		logger:      cfg.Logger,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /webhook", s.handleWebhookVerify)
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("GET /qr", s.handleQR)
	mux.HandleFunc("GET /debug/session/{user}", s.handleSessionInfo)
	return mux
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":        "SaladBot API",
		"version":     buildinfo.Version,
		"status":      "running",
		"description": "WhatsApp bot for salad and deli menu queries",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	catalogOK := false
	if s.catalog != nil {
		if _, err := s.catalog.Count(ctx); err == nil {
			catalogOK = true
		} else {
			s.logger.Warn("health: catalog check failed", "error", err)
		}
	}

	modelOK := false
	if s.model != nil {
		if err := s.model.Ping(ctx); err == nil {
			modelOK = true
		} else {
			s.logger.Warn("health: model check failed", "error", err)
		}
	}

	status := "healthy"
	if !catalogOK || !modelOK {
		status = "unhealthy"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   status,
		"catalog":  catalogOK,
		"model":    modelOK,
		"sessions": s.sessions.Len(),
		"uptime":   buildinfo.Uptime().String(),
	})
}

// handleWebhookVerify answers Meta's subscription handshake: echo
// hub.challenge when the verify token matches.
func (s *Server) handleWebhookVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode != "subscribe" || token != s.verifyToken {
		s.logger.Error("webhook verification failed", "mode", mode)
		http.Error(w, "verification failed", http.StatusForbidden)
		return
	}

	s.logger.Info("webhook verified")
	w.Header().Set("Content-Type", "text/plain")
	io.WriteString(w, challenge)
}

// handleWebhook processes a message delivery. Apart from a bad
// signature, it always answers 200 — Meta retries non-2xx deliveries,
// and a retry of a failed turn would just fail again at the user's
// expense.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "error", "message": "read body"})
		return
	}

	if !whatsapp.VerifySignature(s.appSecret, body, r.Header.Get("X-Hub-Signature-256")) {
		s.logger.Error("invalid webhook signature")
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	msg, err := whatsapp.ParseWebhook(body)
	if err != nil {
		s.logger.Error("webhook parse failed", "error", err)
		writeJSON(w, http.StatusOK, map[string]string{"status": "error", "message": "unparseable payload"})
		return
	}
	if msg == nil {
		// Status update, media, or empty delivery.
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "no text message to process"})
		return
	}

	s.logger.Info("message received", "user", msg.UserID)

	reply, err := s.chat.Process(r.Context(), msg.UserID, msg.Text)
	if err != nil {
		s.logger.Error("turn failed", "user", msg.UserID, "error", err)
		reply = messages.GenericError()
	}

	if err := s.sender.SendText(r.Context(), msg.UserID, reply); err != nil {
		s.logger.Error("send reply failed", "user", msg.UserID, "error", err)
		writeJSON(w, http.StatusOK, map[string]string{"status": "error", "message": "send failed"})
		return
	}

	if err := s.sender.MarkRead(r.Context(), msg.MessageID); err != nil {
		s.logger.Warn("mark read failed", "message_id", msg.MessageID, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "message processed"})
}

// handleQR serves a PNG QR code pointing at the ordering site, for
// printing on counter signage.
func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	png, err := qrcode.Encode(s.orderURL, qrcode.Medium, 256)
	if err != nil {
		s.logger.Error("qr encode failed", "error", err)
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

func (s *Server) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.GetInfo(r.PathValue("user")))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("write json response", "error", err)
	}
}
