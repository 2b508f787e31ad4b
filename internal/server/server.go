package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/frame-console-mcp/internal/config"
	"github.com/ironsheep/frame-console-mcp/internal/frames"
	"github.com/ironsheep/frame-console-mcp/internal/handle"
	"github.com/ironsheep/frame-console-mcp/internal/inference"
	"github.com/ironsheep/frame-console-mcp/internal/logstream"
	"github.com/ironsheep/frame-console-mcp/internal/notify"
	"github.com/ironsheep/frame-console-mcp/internal/offload"
)

// Version is reported in the initialize handshake.
var Version = "dev"

// Server handles MCP protocol communication
type Server struct {
	cfg *config.Config
	log logrus.FieldLogger

	handles *handle.Registry
	decoder *offload.Decoder
	source  *frames.Source
	single  *frames.Single
	folder  *frames.Folder
	notes   *notify.Notifier
	backend *inference.Client
	logs    *logstream.Stream

	// result is the processed image of the last inference. Each infer
	// supersedes it.
	resultMu sync.Mutex
	result   *handle.DisplayHandle

	outMu sync.Mutex
	out   *json.Encoder
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MCPNotification represents an outgoing notification (no ID)
type MCPNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// Option customizes a Server.
type Option func(*options)

type options struct {
	spawner offload.Spawner
}

// WithSpawner runs .dat decodes on workers from s instead of the default
// goroutine workers.
func WithSpawner(s offload.Spawner) Option {
	return func(o *options) { o.spawner = s }
}

// New creates a new MCP server instance. cfg may be nil for defaults.
func New(cfg *config.Config, log logrus.FieldLogger, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	decOpts := []offload.Option{offload.WithLogger(log)}
	if o.spawner != nil {
		decOpts = append(decOpts, offload.WithSpawner(o.spawner))
	}

	s := &Server{
		cfg:     cfg,
		log:     log,
		handles: handle.NewRegistry(),
		notes:   notify.New(cfg.Notifications.Duration),
		backend: inference.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, log),
		logs:    logstream.New(cfg.Logs.URL, cfg.Logs.ReconnectDelay, cfg.Logs.MaxRecords, log),
	}
	s.decoder = offload.NewDecoder(s.handles, decOpts...)
	s.source = frames.NewSource(s.decoder, s.notes, cfg.Decode.Timeout, log)
	s.single = frames.NewSingle(s.source)
	s.folder = frames.NewFolder(s.source)
	s.notes.Subscribe(s.forwardNotification)
	return s
}

// Run starts the MCP server, reading from stdin and writing to stdout
func (s *Server) Run() error {
	return s.Serve(context.Background(), os.Stdin, os.Stdout)
}

// Serve reads one JSON-RPC request per line from r and writes responses and
// notifications to w until r is exhausted.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	defer s.Close()

	scanner := bufio.NewScanner(r)
	// Increase buffer size for large requests (base64 frames)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 64*1024*1024)

	s.outMu.Lock()
	s.out = json.NewEncoder(w)
	s.outMu.Unlock()

	if s.cfg.Logs.AutoConnect {
		s.logs.Connect()
	}

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.log.WithError(err).Warn("failed to parse request")
			continue
		}

		resp := s.handleRequestContext(ctx, &req)
		if resp != nil {
			s.write(resp)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// Close stops background work and releases every frame.
func (s *Server) Close() {
	s.logs.Disconnect()
	s.setResult(nil)
	s.single.Close()
	s.folder.Close()
	s.notes.Close()
}

// write encodes v on the output stream. Notifications arrive from timer
// goroutines, so every write holds outMu.
func (s *Server) write(v interface{}) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if s.out == nil {
		return
	}
	if err := s.out.Encode(v); err != nil {
		s.log.WithError(err).Error("failed to encode message")
	}
}

// forwardNotification relays status-line changes as MCP log messages.
func (s *Server) forwardNotification(st notify.State) {
	s.write(&MCPNotification{
		JSONRPC: "2.0",
		Method:  "notifications/message",
		Params: map[string]interface{}{
			"level":  "info",
			"logger": "frame-console",
			"data": map[string]interface{}{
				"show":    st.Show,
				"message": st.Message,
			},
		},
	})
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(req *MCPRequest) *MCPResponse {
	return s.handleRequestContext(context.Background(), req)
}

func (s *Server) handleRequestContext(ctx context.Context, req *MCPRequest) *MCPResponse {
	s.log.WithFields(logrus.Fields{"method": req.Method, "id": req.ID}).Debug("request")

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools":   map[string]interface{}{},
				"logging": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "frame-console-mcp",
				"version": Version,
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
