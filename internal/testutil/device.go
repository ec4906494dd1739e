package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// Canned device response bodies.
const (
	SuccessBody  = `{"result":"success"}`
	SettingsBody = `{"result":"success","data":{"name":"lockbox_000000","servo_open_position":10,"servo_closed_position":95}}`
)

// RecordedRequest is one request received by a DeviceServer.
type RecordedRequest struct {
	Method    string
	Path      string
	Form      url.Values
	Body      string
	RequestID string
}

type reply struct {
	status int
	body   string
}

// DeviceServer is an httptest server that speaks the lockbox control
// protocol. Every route succeeds until overridden with Reply.
type DeviceServer struct {
	*httptest.Server

	mu       sync.Mutex
	replies  map[string]reply
	requests []RecordedRequest
}

// NewDeviceServer starts a DeviceServer that is closed when the test ends.
func NewDeviceServer(t *testing.T) *DeviceServer {
	t.Helper()
	s := &DeviceServer{
		replies: map[string]reply{
			"POST /lock":     {http.StatusOK, SuccessBody},
			"POST /unlock":   {http.StatusOK, SuccessBody},
			"POST /update":   {http.StatusOK, SuccessBody},
			"GET /settings":  {http.StatusOK, SettingsBody},
			"POST /settings": {http.StatusOK, SuccessBody},
		},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Reply overrides the response for method and path.
func (s *DeviceServer) Reply(method, path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[method+" "+path] = reply{status: status, body: body}
}

// Requests returns a copy of all requests received so far.
func (s *DeviceServer) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *DeviceServer) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	form, _ := url.ParseQuery(string(body))

	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Method:    r.Method,
		Path:      r.URL.Path,
		Form:      form,
		Body:      string(body),
		RequestID: r.Header.Get("X-Request-ID"),
	})
	rep, ok := s.replies[r.Method+" "+r.URL.Path]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rep.status)
	_, _ = io.WriteString(w, rep.body)
}
