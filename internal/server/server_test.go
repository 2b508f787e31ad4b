package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/ironsheep/frame-console-mcp/internal/config"
)

// newTestServer builds a server whose backend and log stream point at
// baseURL. Pass "" when the test never reaches the network.
func newTestServer(t *testing.T, baseURL string, opts ...Option) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	if baseURL != "" {
		cfg.Backend.BaseURL = baseURL
		cfg.Logs.URL = baseURL + "/sse/logs"
	}
	cfg.Backend.Timeout = 5 * time.Second
	cfg.Logs.ReconnectDelay = time.Hour
	cfg.Notifications.Duration = time.Hour
	log, _ := test.NewNullLogger()
	s := New(cfg, log, opts...)
	t.Cleanup(s.Close)
	return s
}

func TestNew(t *testing.T) {
	s := New(nil, nil)
	defer s.Close()
	if s.handles == nil || s.decoder == nil || s.single == nil || s.folder == nil {
		t.Fatal("New() did not wire its components")
	}
	if s.backend.BaseURL() != config.DefaultConfig().Backend.BaseURL {
		t.Errorf("backend URL: got %s", s.backend.BaseURL())
	}
}

func TestMCPRequest_Unmarshal(t *testing.T) {
	tests := []struct {
		name       string
		json       string
		wantID     interface{}
		wantMethod string
	}{
		{
			"string id",
			`{"jsonrpc":"2.0","id":"test-1","method":"tools/list"}`,
			"test-1",
			"tools/list",
		},
		{
			"number id",
			`{"jsonrpc":"2.0","id":42,"method":"ping"}`,
			float64(42), // JSON numbers decode as float64
			"ping",
		},
		{
			"null id",
			`{"jsonrpc":"2.0","id":null,"method":"initialize"}`,
			nil,
			"initialize",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req MCPRequest
			if err := json.Unmarshal([]byte(tt.json), &req); err != nil {
				t.Fatalf("Failed to unmarshal: %v", err)
			}
			if req.ID != tt.wantID {
				t.Errorf("ID: got %v (%T), want %v (%T)", req.ID, req.ID, tt.wantID, tt.wantID)
			}
			if req.Method != tt.wantMethod {
				t.Errorf("Method: got %s, want %s", req.Method, tt.wantMethod)
			}
		})
	}
}

func TestHandleRequest_Initialize(t *testing.T) {
	s := newTestServer(t, "")
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: "init-1", Method: "initialize"})

	if resp == nil || resp.Error != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.ID != "init-1" {
		t.Errorf("ID: got %v, want init-1", resp.ID)
	}

	result := resp.Result.(map[string]interface{})
	if result["protocolVersion"] != "2024-11-05" {
		t.Errorf("protocolVersion: got %v", result["protocolVersion"])
	}
	caps := result["capabilities"].(map[string]interface{})
	if _, ok := caps["logging"]; !ok {
		t.Error("logging capability should be advertised")
	}
	info := result["serverInfo"].(map[string]interface{})
	if info["name"] != "frame-console-mcp" {
		t.Errorf("serverInfo.name: got %v", info["name"])
	}
	if info["version"] != Version {
		t.Errorf("serverInfo.version: got %v", info["version"])
	}
}

func TestHandleRequest_Ping(t *testing.T) {
	s := newTestServer(t, "")
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: "ping-1", Method: "ping"})

	if resp == nil || resp.Error != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.ID != "ping-1" {
		t.Errorf("ID: got %v, want ping-1", resp.ID)
	}
}

func TestHandleRequest_ToolsList(t *testing.T) {
	s := newTestServer(t, "")
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/list"})

	if resp == nil || resp.Error != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
	tools, ok := resp.Result.(map[string]interface{})["tools"].([]Tool)
	if !ok {
		t.Fatal("tools should be a slice of Tool")
	}
	if len(tools) != len(expectedTools) {
		t.Errorf("got %d tools, want %d", len(tools), len(expectedTools))
	}
}

func TestHandleRequest_NotificationsInitialized(t *testing.T) {
	s := newTestServer(t, "")
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", Method: "notifications/initialized"})

	// Notifications don't get responses
	if resp != nil {
		t.Error("notifications/initialized should return nil response")
	}
}

func TestHandleRequest_MethodNotFound(t *testing.T) {
	s := newTestServer(t, "")
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "nonexistent/method"})

	if resp == nil || resp.Error == nil {
		t.Fatal("Expected error for unknown method")
	}
	if resp.Error.Code != -32601 {
		t.Errorf("Error code: got %d, want -32601", resp.Error.Code)
	}
}

// readMessage decodes the next line written by Serve.
func readMessage(t *testing.T, r *bufio.Reader) map[string]interface{} {
	t.Helper()
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := r.ReadString('\n')
		ch <- result{line, err}
	}()
	select {
	case res := <-ch:
		if res.err != nil {
			t.Fatalf("failed to read message: %v", res.err)
		}
		var msg map[string]interface{}
		if err := json.Unmarshal([]byte(res.line), &msg); err != nil {
			t.Fatalf("invalid JSON %q: %v", res.line, err)
		}
		return msg
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a message")
		return nil
	}
}

func TestServe(t *testing.T) {
	s := newTestServer(t, "")

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- s.Serve(context.Background(), inR, outW)
		outW.Close()
	}()
	out := bufio.NewReader(outR)

	send := func(line string) {
		t.Helper()
		if _, err := io.WriteString(inW, line+"\n"); err != nil {
			t.Fatalf("failed to write request: %v", err)
		}
	}

	// Garbage and blank lines are skipped.
	send("not json")
	send("")
	send(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	if msg := readMessage(t, out); msg["id"] != float64(1) {
		t.Errorf("ping response: got %v", msg)
	}

	// An unsupported file raises an operator notification ahead of the
	// tool error.
	send(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"frame_open","arguments":{"path":"/tmp/notes.txt"}}}`)
	note := readMessage(t, out)
	if note["method"] != "notifications/message" {
		t.Fatalf("expected a notification, got %v", note)
	}
	data := note["params"].(map[string]interface{})["data"].(map[string]interface{})
	if data["show"] != true || data["message"] != "Unsupported file type" {
		t.Errorf("notification data: got %v", data)
	}
	resp := readMessage(t, out)
	if resp["id"] != float64(2) || resp["error"] == nil {
		t.Errorf("frame_open response: got %v", resp)
	}

	inW.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after EOF")
	}
}

func TestForwardNotification_WithoutOutput(t *testing.T) {
	s := newTestServer(t, "")
	// Before Serve there is nowhere to write; this must not panic.
	s.notes.Notify("early")
	if !strings.Contains(mustMarshalJSON(s.notes.State()), "early") {
		t.Error("notification state should still be kept")
	}
}
