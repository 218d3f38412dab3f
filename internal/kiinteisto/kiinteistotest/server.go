// Package kiinteistotest provides a fake Kiinteistömittaus API for tests.
package kiinteistotest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Path is the endpoint the fake server answers on.
const Path = "/api/kiinteistomittaus"

// Request is a request received by the server.
type Request struct {
	APIKey    string
	UserAgent string
	Command   string
	Params    []string
}

// Server is a fake API backed by httptest.Server.
//
// By default it answers every authorised getwatermeterdata request with
// {"p": Lines}. Set Status or Body to simulate failures.
type Server struct {
	*httptest.Server

	// APIKey is the key the server accepts.
	APIKey string

	mu       sync.Mutex
	lines    []string
	status   int
	body     []byte
	requests []Request
}

// NewServer starts a server that accepts apiKey and returns lines.
// The caller must call Close.
func NewServer(apiKey string, lines []string) *Server {
	s := &Server{
		APIKey: apiKey,
		lines:  lines,
	}

	r := chi.NewRouter()
	r.Post(Path, s.handleCommand)
	s.Server = httptest.NewServer(r)
	return s
}

// URL returns the endpoint URL to use as the base URL.
func (s *Server) URL() string {
	return s.Server.URL + Path
}

// SetLines replaces the lines returned by subsequent requests.
func (s *Server) SetLines(lines []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = lines
}

// SetResponse makes subsequent requests answer with the given status and raw body.
func (s *Server) SetResponse(status int, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.body = body
}

// Requests returns the requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var body struct {
		C string   `json:"c"`
		P []string `json:"p"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		APIKey:    r.Header.Get("x-functions-key"),
		UserAgent: r.Header.Get("User-Agent"),
		Command:   body.C,
		Params:    body.P,
	})
	status, raw, lines := s.status, s.body, s.lines
	s.mu.Unlock()

	if r.Header.Get("x-functions-key") != s.APIKey {
		http.Error(w, "unauthorised", http.StatusUnauthorized)
		return
	}
	if body.C != "getwatermeterdata" || len(body.P) != 2 {
		http.Error(w, "unknown command", http.StatusBadRequest)
		return
	}

	if status != 0 || raw != nil {
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		w.Write(raw) //nolint:errcheck // Best-effort write in test server
		return
	}

	w.Header().Set("Content-Type", "application/json")
	//nolint:errcheck // Best-effort write in test server
	json.NewEncoder(w).Encode(map[string]any{
		"c": body.C,
		"p": lines,
	})
}
