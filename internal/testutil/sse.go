package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// Done is the SSE frame terminating an OpenAI-compatible stream.
const Done = "data: [DONE]"

// holdTimeout bounds how long a holding handler waits for the client.
const holdTimeout = 5 * time.Second

// SSEServer serves canned chat/completions responses and records requests.
type SSEServer struct {
	*httptest.Server

	// frames are written verbatim, each followed by a blank line.
	frames []string
	// status overrides the response code when non-zero.
	status int
	// hold keeps the connection open after the frames until the client leaves.
	hold bool

	mu       sync.Mutex
	hits     int
	bodies   [][]byte
	headers  []http.Header
	closed   chan struct{}
	closeOne sync.Once
}

// NewSSEServer streams frames on every request.
func NewSSEServer(testingHandle testing.TB, frames ...string) *SSEServer {
	return start(testingHandle, &SSEServer{frames: frames})
}

// NewHoldingSSEServer streams frames and then blocks until the client
// disconnects, which Closed reports.
func NewHoldingSSEServer(testingHandle testing.TB, frames ...string) *SSEServer {
	return start(testingHandle, &SSEServer{frames: frames, hold: true})
}

// NewStatusServer answers every request with status and body.
func NewStatusServer(testingHandle testing.TB, status int, body string) *SSEServer {
	return start(testingHandle, &SSEServer{frames: []string{body}, status: status})
}

func start(testingHandle testing.TB, server *SSEServer) *SSEServer {
	testingHandle.Helper()
	server.closed = make(chan struct{})
	server.Server = httptest.NewServer(http.HandlerFunc(server.serve))
	testingHandle.Cleanup(func() {
		server.CloseClientConnections()
		server.Close()
	})
	return server
}

func (s *SSEServer) serve(responseWriter http.ResponseWriter, request *http.Request) {
	body, _ := io.ReadAll(request.Body)
	s.mu.Lock()
	s.hits++
	s.bodies = append(s.bodies, body)
	s.headers = append(s.headers, request.Header.Clone())
	s.mu.Unlock()

	if request.URL.Path != "/chat/completions" {
		http.NotFound(responseWriter, request)
		return
	}
	if s.status != 0 {
		responseWriter.WriteHeader(s.status)
		for _, frame := range s.frames {
			_, _ = io.WriteString(responseWriter, frame)
		}
		return
	}

	responseWriter.Header().Set("Content-Type", "text/event-stream")
	flusher, ok := responseWriter.(http.Flusher)
	if !ok {
		http.Error(responseWriter, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	for _, frame := range s.frames {
		_, _ = fmt.Fprintf(responseWriter, "%s\n\n", frame)
		flusher.Flush()
	}
	if !s.hold {
		return
	}
	select {
	case <-request.Context().Done():
		s.closeOne.Do(func() { close(s.closed) })
	case <-time.After(holdTimeout):
	}
}

// Hits returns the number of requests received.
func (s *SSEServer) Hits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits
}

// LastRequest decodes the most recent request body.
func (s *SSEServer) LastRequest(testingHandle testing.TB) map[string]any {
	testingHandle.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.bodies) == 0 {
		testingHandle.Fatalf("no requests received")
	}
	var payload map[string]any
	if err := json.Unmarshal(s.bodies[len(s.bodies)-1], &payload); err != nil {
		testingHandle.Fatalf("decode request body: %v", err)
	}
	return payload
}

// LastHeader returns the headers of the most recent request.
func (s *SSEServer) LastHeader() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.headers) == 0 {
		return nil
	}
	return s.headers[len(s.headers)-1]
}

// Closed is closed once a holding handler observes the client disconnect.
func (s *SSEServer) Closed() <-chan struct{} {
	return s.closed
}

// Content builds a data frame carrying a content delta.
func Content(text string) string {
	return deltaFrame(map[string]any{"content": text})
}

// Reasoning builds a data frame carrying a reasoning_content delta.
func Reasoning(text string) string {
	return deltaFrame(map[string]any{"reasoning_content": text})
}

func deltaFrame(delta map[string]any) string {
	payload, err := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"index": 0, "delta": delta}},
	})
	if err != nil {
		panic(err)
	}
	return "data: " + string(payload)
}
