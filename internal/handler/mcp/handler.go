// Package mcp holds the HTTP entry points for MCP sessions: stream
// establishment over SSE and the companion message endpoint.
package mcp

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/logflare-community/logflare-mcp/internal/service/session"
	"github.com/logflare-community/logflare-mcp/internal/service/tools"
	"github.com/logflare-community/logflare-mcp/pkg/utils"

	logflaremodel "github.com/logflare-community/logflare-mcp/internal/model/logflare"
)

const (
	headerAPIKey      = "x-logflare-api-key"
	headerSourceToken = "x-logflare-source-token"

	keepAliveInterval = 30 * time.Second
)

// Handler wires inbound HTTP requests to the session table and the shared
// tool registry.
type Handler struct {
	sessions *session.Manager
	registry *tools.Registry
}

// New creates the handler.
func New(sessions *session.Manager, registry *tools.Registry) *Handler {
	return &Handler{sessions: sessions, registry: registry}
}

// RegisterRoutes mounts the SSE and message endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sse", h.handleSSE)
	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		r.Method(method, "/sse", http.HandlerFunc(h.handleSSENotAllowed))
	}
	r.Post("/messages", h.handleMessage)
}

// handleSSE establishes a session: it validates the credential headers,
// builds a per-connection MCP server, registers the session, and then streams
// outbound events until the client disconnects or the session is removed.
func (h *Handler) handleSSE(w http.ResponseWriter, r *http.Request) {
	apiKey := strings.TrimSpace(r.Header.Get(headerAPIKey))
	if apiKey == "" {
		http.Error(w, "missing "+headerAPIKey+" header", http.StatusUnauthorized)
		return
	}
	sourceToken := strings.TrimSpace(r.Header.Get(headerSourceToken))
	if sourceToken == "" {
		http.Error(w, "missing "+headerSourceToken+" header", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	creds := logflaremodel.Credentials{APIKey: apiKey, SourceToken: sourceToken}
	transport := session.NewTransport()
	srv := h.registry.NewServer()

	if _, err := h.sessions.Create(transport.ID(), srv, transport, creds); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	utils.SetupSSEHeaders(w)

	// The endpoint event completes the handshake: it tells the client where
	// to POST messages for this session. If it cannot be delivered the
	// session must not linger half-initialized.
	endpoint := "/messages?sessionId=" + transport.ID()
	if err := utils.WriteSSEEvent(w, flusher, "endpoint", []byte(endpoint)); err != nil {
		h.sessions.Remove(transport.ID())
		log.Printf("[mcp] handshake failed for %s: %v", transport.ID(), err)
		return
	}

	log.Printf("[mcp] session %s connected", transport.ID())

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.sessions.Remove(transport.ID())
			log.Printf("[mcp] session %s disconnected", transport.ID())
			return
		case <-transport.Done():
			// Removed elsewhere: idle expiry or shutdown.
			return
		case ev := <-transport.Events():
			if err := utils.WriteSSEEvent(w, flusher, ev.Name, ev.Data); err != nil {
				h.sessions.Remove(transport.ID())
				log.Printf("[mcp] session %s write failed: %v", transport.ID(), err)
				return
			}
		case <-keepAlive.C:
			if err := utils.WriteSSEComment(w, flusher, "keepalive"); err != nil {
				h.sessions.Remove(transport.ID())
				return
			}
		}
	}
}

// handleSSENotAllowed rejects non-stream verbs without touching session state.
func (h *Handler) handleSSENotAllowed(w http.ResponseWriter, r *http.Request) {
	utils.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed. Use GET for SSE connections.")
}

// handleMessage routes one protocol message to its session: refresh the idle
// window, dispatch through the session's MCP server with the session's
// credentials on the context, and queue the response on the SSE stream.
func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("sessionId")
	if id == "" {
		http.Error(w, "sessionId query parameter is required", http.StatusBadRequest)
		return
	}

	sess, err := h.sessions.Touch(id)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	ctx := tools.WithCredentials(r.Context(), sess.Credentials)
	response := sess.Server.HandleMessage(ctx, body)
	if response != nil {
		data, err := json.Marshal(response)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if err := sess.Transport.Send("message", data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte("Accepted"))
}
