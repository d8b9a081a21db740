// Package kvtest provides an in-process fake of the key-value store for tests.
package kvtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Server is a fake key-value store. Values are kept as the JSON-encoded
// strings the real store holds.
type Server struct {
	URL       string
	Namespace string
	Username  string
	Password  string

	mu         sync.Mutex
	data       map[string]string
	tokens     map[string]bool
	nextToken  int
	logins     int
	failNext   int
	failStatus int
	rejectAuth bool
	requests   []string
}

// NewServer starts a fake store accepting user/secret on namespace "test".
// The server is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		Namespace: "test",
		Username:  "user",
		Password:  "secret",
		data:      map[string]string{},
		tokens:    map[string]bool{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /{ns}/data", s.authorized(s.handleList))
	mux.HandleFunc("POST /{ns}/data", s.authorized(s.handleCreate))
	mux.HandleFunc("GET /{ns}/data/{key...}", s.authorized(s.handleGet))
	mux.HandleFunc("PUT /{ns}/data/{key...}", s.authorized(s.handleUpdate))
	mux.HandleFunc("DELETE /{ns}/data/{key...}", s.authorized(s.handleDelete))

	ts := httptest.NewServer(s.failing(mux))
	t.Cleanup(ts.Close)
	s.URL = ts.URL
	return s
}

// Set stores value (a JSON document) at key.
func (s *Server) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Value returns the JSON document stored at key.
func (s *Server) Value(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// Keys returns the stored keys, sorted.
func (s *Server) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FailNext makes the next n requests fail with status.
func (s *Server) FailNext(n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
	s.failStatus = status
}

// RejectAuth makes logins fail and every issued token invalid.
func (s *Server) RejectAuth() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectAuth = true
	s.tokens = map[string]bool{}
}

// RevokeTokens invalidates issued tokens while still accepting logins.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = map[string]bool{}
}

// Logins returns how many successful logins happened.
func (s *Server) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

// Requests returns "METHOD path" for every request received.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *Server) failing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.EscapedPath())
		fail := s.failNext > 0
		status := s.failStatus
		if fail {
			s.failNext--
		}
		s.mu.Unlock()
		if fail {
			http.Error(w, "injected failure", status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		valid := ok && s.tokens[token]
		s.mu.Unlock()
		if !valid {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.PathValue("ns") != s.Namespace {
			http.Error(w, "unknown namespace", http.StatusNotFound)
			return
		}
		next(w, r)
	}
}

type keyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rejectAuth || req.Username != s.Username || req.Password != s.Password {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	s.nextToken++
	token := "token-" + strconv.Itoa(s.nextToken)
	s.tokens[token] = true
	s.logins++
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.data) == 0 {
		http.Error(w, "no data", http.StatusNotFound)
		return
	}
	items := make([]keyValue, 0, len(s.data))
	for k, v := range s.data {
		items = append(items, keyValue{Key: k, Value: v})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
	writeJSON(w, http.StatusOK, map[string]any{"data": items})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	s.mu.Lock()
	v, ok := s.data[key]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": keyValue{Key: key, Value: v}})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req keyValue
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[req.Key]; exists {
		http.Error(w, "key exists", http.StatusConflict)
		return
	}
	s.data[req.Key] = req.Value
	writeJSON(w, http.StatusCreated, map[string]any{"data": req})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; !exists {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	s.data[key] = req.Value
	writeJSON(w, http.StatusOK, map[string]any{"data": keyValue{Key: key, Value: req.Value}})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; !exists {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	delete(s.data, key)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
