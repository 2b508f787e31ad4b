package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"time"

	"github.com/ironsheep/frame-console-mcp/internal/datgrid"
	"github.com/ironsheep/frame-console-mcp/internal/frames"
	"github.com/ironsheep/frame-console-mcp/internal/handle"
	"github.com/ironsheep/frame-console-mcp/internal/imaging"
	"github.com/ironsheep/frame-console-mcp/internal/inference"
	"github.com/ironsheep/frame-console-mcp/internal/logstream"
	"github.com/ironsheep/frame-console-mcp/internal/offload"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "frame_open", "frame_crop").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}
	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage("{}")
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.WithField("tool", params.Name).WithError(err).Debug("tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Single Frame
	case "frame_open":
		return s.handleFrameOpen(ctx, args)
	case "frame_close":
		s.setResult(nil)
		s.single.Close()
		return map[string]interface{}{"closed": true}, nil
	case "frame_info":
		return s.handleFrameInfo(args)

	// Region Operations
	case "frame_crop":
		return s.handleFrameCrop(args)

	// Analysis
	case "frame_probe":
		return s.handleFrameProbe(args)
	case "frame_histogram":
		return s.handleFrameHistogram(args)
	case "frame_features":
		return s.handleFrameFeatures(args)
	case "frame_colorize":
		return s.handleFrameColorize(args)

	// Decoding and Handles
	case "dat_decode":
		return s.handleDatDecode(ctx, args)
	case "handle_fetch":
		return s.handleHandleFetch(args)
	case "handle_release":
		return s.handleHandleRelease(args)

	// Folder Navigation
	case "folder_open":
		return s.handleFolderOpen(ctx, args)
	case "folder_next":
		return s.handleFolderStep(ctx, args, s.folder.Next)
	case "folder_prev":
		return s.handleFolderStep(ctx, args, s.folder.Prev)
	case "folder_goto":
		return s.handleFolderGoto(ctx, args)
	case "folder_close":
		s.folder.Close()
		return map[string]interface{}{"closed": true}, nil

	// Inference Backend
	case "infer":
		return s.handleInfer(ctx, args)
	case "infer_folder":
		return s.handleInferFolder(ctx, args)
	case "crop_config_get":
		return s.backend.GetCropConfig(ctx)
	case "crop_config_put":
		return s.handleCropConfigPut(ctx, args)

	// Backend Logs
	case "logs_connect":
		s.logs.Connect()
		return s.logsStatus(), nil
	case "logs_disconnect":
		s.logs.Disconnect()
		return s.logsStatus(), nil
	case "logs_list":
		return s.handleLogsList(args)
	case "logs_clear":
		s.logs.Clear()
		return s.logsStatus(), nil

	// Status
	case "console_status":
		return s.handleConsoleStatus(), nil

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// precision resolves a precision argument, falling back to the configured
// default when empty.
func (s *Server) precision(name string) (datgrid.Precision, error) {
	if strings.TrimSpace(name) == "" {
		return s.cfg.Precision(), nil
	}
	return datgrid.ParsePrecision(name)
}

// frameResult is what frame-returning tools answer with.
type frameResult struct {
	Frame   *frames.Frame   `json:"frame"`
	Crop    *imaging.Region `json:"crop,omitempty"`
	DataURI string          `json:"data_uri,omitempty"`
}

func (s *Server) frameResult(f *frames.Frame, includeImage bool) (*frameResult, error) {
	res := &frameResult{Frame: f}
	if includeImage && f != nil && f.Handle != nil {
		uri, err := s.handles.DataURI(f.Handle.URL)
		if err != nil {
			return nil, err
		}
		res.DataURI = uri
	}
	return res, nil
}

// current returns the frame of the named manager.
func (s *Server) current(source string) (*frames.Frame, error) {
	var (
		f  *frames.Frame
		ok bool
	)
	switch source {
	case "", "single":
		f, ok = s.single.Current()
	case "folder":
		f, ok = s.folder.Current()
	default:
		return nil, fmt.Errorf("unknown source %q (want single or folder)", source)
	}
	if !ok {
		return nil, fmt.Errorf("%w: no %s frame is open", frames.ErrNoImage, orDefault(source, "single"))
	}
	return f, nil
}

func (s *Server) currentImage(source string) (*frames.Frame, image.Image, error) {
	f, err := s.current(source)
	if err != nil {
		return nil, nil, err
	}
	img, err := s.source.Image(f)
	if err != nil {
		return nil, nil, err
	}
	return f, img, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// === Single Frame Handlers ===

type frameOpenArgs struct {
	Path         string `json:"path"`
	Rows         int    `json:"rows"`
	Cols         int    `json:"cols"`
	Precision    string `json:"precision"`
	IncludeImage bool   `json:"include_image"`
}

func (s *Server) handleFrameOpen(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a frameOpenArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	p, err := s.precision(a.Precision)
	if err != nil {
		return nil, err
	}

	f, err := s.single.Open(ctx, a.Path, frames.Dims{Rows: a.Rows, Cols: a.Cols, Precision: p})
	if err != nil {
		return nil, err
	}
	return s.frameResult(f, a.IncludeImage)
}

type frameInfoArgs struct {
	Source       string `json:"source"`
	IncludeImage bool   `json:"include_image"`
}

func (s *Server) handleFrameInfo(args json.RawMessage) (interface{}, error) {
	var a frameInfoArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	f, err := s.current(a.Source)
	if err != nil {
		return nil, err
	}
	res, err := s.frameResult(f, a.IncludeImage)
	if err != nil {
		return nil, err
	}
	if a.Source != "folder" {
		res.Crop = s.single.Crop()
	}
	return res, nil
}

// === Region Handlers ===

type frameCropArgs struct {
	Source string   `json:"source"`
	X      int      `json:"x"`
	Y      int      `json:"y"`
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Scale  *float64 `json:"scale"`
	Record *bool    `json:"record"`
}

func (s *Server) handleFrameCrop(args json.RawMessage) (interface{}, error) {
	var a frameCropArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	scale := 1.0
	if a.Scale != nil {
		scale = *a.Scale
	}
	_, img, err := s.currentImage(a.Source)
	if err != nil {
		return nil, err
	}

	region := imaging.Region{X: a.X, Y: a.Y, Width: a.Width, Height: a.Height}
	result, err := imaging.Crop(img, region, scale)
	if err != nil {
		return nil, err
	}
	if a.Source != "folder" && (a.Record == nil || *a.Record) {
		if err := s.single.SetCrop(region); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// === Analysis Handlers ===

type frameProbeArgs struct {
	Source string `json:"source"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

type probeResult struct {
	*imaging.ProbeResult
	RawValue *float64 `json:"raw_value,omitempty"`
}

func (s *Server) handleFrameProbe(args json.RawMessage) (interface{}, error) {
	var a frameProbeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	f, img, err := s.currentImage(a.Source)
	if err != nil {
		return nil, err
	}
	pr, err := imaging.SampleColor(img, a.X, a.Y)
	if err != nil {
		return nil, err
	}
	res := &probeResult{ProbeResult: pr}
	if f.Kind == frames.KindDat {
		v, err := s.source.Sample(f, a.Y, a.X)
		if err != nil {
			return nil, err
		}
		res.RawValue = &v
	}
	return res, nil
}

type frameHistogramArgs struct {
	Source string          `json:"source"`
	Bins   int             `json:"bins"`
	Region *imaging.Region `json:"region"`
}

func (s *Server) handleFrameHistogram(args json.RawMessage) (interface{}, error) {
	var a frameHistogramArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Bins == 0 {
		a.Bins = imaging.Levels
	}
	_, img, err := s.currentImage(a.Source)
	if err != nil {
		return nil, err
	}
	return imaging.Histogram(img, a.Region, a.Bins)
}

type frameFeaturesArgs struct {
	Source string          `json:"source"`
	Region *imaging.Region `json:"region"`
}

func (s *Server) handleFrameFeatures(args json.RawMessage) (interface{}, error) {
	var a frameFeaturesArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	_, img, err := s.currentImage(a.Source)
	if err != nil {
		return nil, err
	}
	return imaging.ComputeFeatures(img, a.Region)
}

type frameColorizeArgs struct {
	Source       string `json:"source"`
	Colormap     string `json:"colormap"`
	IncludeImage *bool  `json:"include_image"`
}

type handleResult struct {
	Handle  *handle.DisplayHandle `json:"handle"`
	DataURI string                `json:"data_uri,omitempty"`
}

func (s *Server) handleFrameColorize(args json.RawMessage) (interface{}, error) {
	var a frameColorizeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Colormap == "" {
		a.Colormap = "viridis"
	}
	_, img, err := s.currentImage(a.Source)
	if err != nil {
		return nil, err
	}
	colored, err := imaging.Colorize(img, a.Colormap)
	if err != nil {
		return nil, err
	}
	blob, err := datgrid.EncodePNG(colored)
	if err != nil {
		return nil, err
	}
	b := colored.Bounds()
	h := s.handles.Create(blob, datgrid.PNGMimeType, b.Dx(), b.Dy())
	res := &handleResult{Handle: h}
	if a.IncludeImage == nil || *a.IncludeImage {
		res.DataURI = handle.DataURI(h.MimeType, blob)
	}
	return res, nil
}

// === Decoding and Handle Handlers ===

type datDecodeArgs struct {
	Path         string `json:"path"`
	DataBase64   string `json:"data_base64"`
	Rows         int    `json:"rows"`
	Cols         int    `json:"cols"`
	Precision    string `json:"precision"`
	TimeoutMS    int    `json:"timeout_ms"`
	IncludeImage bool   `json:"include_image"`
}

type datDecodeResult struct {
	Decoded bool                  `json:"decoded"`
	State   string                `json:"state"`
	Handle  *handle.DisplayHandle `json:"handle,omitempty"`
	DataURI string                `json:"data_uri,omitempty"`
}

func (s *Server) handleDatDecode(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a datDecodeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	p, err := s.precision(a.Precision)
	if err != nil {
		return nil, err
	}

	var data []byte
	switch {
	case a.Path != "" && a.DataBase64 != "":
		return nil, fmt.Errorf("give either path or data_base64, not both")
	case a.Path != "":
		if data, err = datgrid.ReadFile(a.Path); err != nil {
			return nil, err
		}
	case a.DataBase64 != "":
		if data, err = base64.StdEncoding.DecodeString(a.DataBase64); err != nil {
			return nil, fmt.Errorf("invalid data_base64: %w", err)
		}
	default:
		return nil, fmt.Errorf("path or data_base64 is required")
	}

	fut := s.decoder.DecodeAsync(offload.NewBuffer(data), a.Rows, a.Cols, p)

	timeout := s.cfg.Decode.Timeout
	if a.TimeoutMS > 0 {
		timeout = time.Duration(a.TimeoutMS) * time.Millisecond
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	h, err := fut.Wait(ctx)
	if err != nil {
		if ctx.Err() != nil {
			go s.revokeLate(fut)
		}
		return nil, err
	}
	if h == nil {
		s.notes.Notify("Failed to decode frame")
	}
	res := &datDecodeResult{Decoded: h != nil, State: fut.State().String(), Handle: h}
	if h != nil && a.IncludeImage {
		if res.DataURI, err = s.handles.DataURI(h.URL); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// revokeLate releases the handle of a decode nobody waits for anymore.
func (s *Server) revokeLate(fut *offload.Future) {
	if h, _ := fut.Wait(context.Background()); h != nil {
		s.handles.Revoke(h.URL)
	}
}

type handleArgs struct {
	URL string `json:"url"`
}

func (s *Server) handleHandleFetch(args json.RawMessage) (interface{}, error) {
	var a handleArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	data, mime, ok := s.handles.Resolve(a.URL)
	if !ok {
		return nil, fmt.Errorf("handle %s is not live", a.URL)
	}
	return map[string]interface{}{
		"url":        a.URL,
		"mime_type":  mime,
		"size_bytes": len(data),
		"data_uri":   handle.DataURI(mime, data),
	}, nil
}

func (s *Server) handleHandleRelease(args json.RawMessage) (interface{}, error) {
	var a handleArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	// Frames own their handles; release them through their managers.
	for _, cur := range []func() (*frames.Frame, bool){s.single.Current, s.folder.Current} {
		if f, ok := cur(); ok && f.Handle != nil && f.Handle.URL == a.URL {
			return nil, fmt.Errorf("handle %s belongs to the open frame %s; close the frame instead", a.URL, f.Name)
		}
	}
	s.resultMu.Lock()
	if s.result != nil && s.result.URL == a.URL {
		s.result = nil
	}
	s.resultMu.Unlock()
	return map[string]interface{}{"url": a.URL, "released": s.handles.Revoke(a.URL)}, nil
}

// === Folder Handlers ===

type folderOpenArgs struct {
	Path         string `json:"path"`
	Rows         int    `json:"rows"`
	Cols         int    `json:"cols"`
	Precision    string `json:"precision"`
	IncludeImage bool   `json:"include_image"`
}

type folderResult struct {
	*frameResult
	Index int `json:"index"`
	Total int `json:"total"`
	Busy  bool `json:"busy,omitempty"`
}

func (s *Server) folderResult(f *frames.Frame, includeImage, busy bool) (interface{}, error) {
	fr, err := s.frameResult(f, includeImage)
	if err != nil {
		return nil, err
	}
	st := s.folder.Status()
	return &folderResult{frameResult: fr, Index: st.Index, Total: len(st.Files), Busy: busy}, nil
}

func (s *Server) handleFolderOpen(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a folderOpenArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	p, err := s.precision(a.Precision)
	if err != nil {
		return nil, err
	}
	f, err := s.folder.Open(ctx, a.Path, frames.Dims{Rows: a.Rows, Cols: a.Cols, Precision: p})
	if err != nil {
		return nil, err
	}
	return s.folderResult(f, a.IncludeImage, false)
}

type folderStepArgs struct {
	Index        int  `json:"index"`
	IncludeImage bool `json:"include_image"`
}

func (s *Server) handleFolderStep(ctx context.Context, args json.RawMessage, step func(context.Context) (*frames.Frame, error)) (interface{}, error) {
	var a folderStepArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return s.folderOutcome(step(ctx))(a.IncludeImage)
}

func (s *Server) handleFolderGoto(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a folderStepArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return s.folderOutcome(s.folder.Load(ctx, a.Index))(a.IncludeImage)
}

// folderOutcome turns ErrBusy into a normal answer carrying the frame still
// on display.
func (s *Server) folderOutcome(f *frames.Frame, err error) func(bool) (interface{}, error) {
	return func(includeImage bool) (interface{}, error) {
		if errors.Is(err, frames.ErrBusy) {
			return s.folderResult(f, includeImage, true)
		}
		if err != nil {
			return nil, err
		}
		return s.folderResult(f, includeImage, false)
	}
}

// === Inference Handlers ===

type inferArgs struct {
	Source    string `json:"source"`
	Algorithm string `json:"algorithm"`
	UseCrop   *bool  `json:"use_crop"`
}

type inferResult struct {
	*inference.Result
	ProcessedImage *handle.DisplayHandle `json:"processed_image,omitempty"`
}

func (s *Server) handleInfer(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a inferArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	f, err := s.current(a.Source)
	if err != nil {
		s.notes.Notify("Select a frame and an algorithm first")
		return nil, err
	}

	req := inference.Request{
		Path:      f.Path,
		MD5:       f.MD5,
		Algorithm: a.Algorithm,
		Rows:      f.Rows,
		Cols:      f.Cols,
	}
	if req.Rows == 0 && f.Handle != nil {
		req.Rows, req.Cols = f.Handle.Height, f.Handle.Width
	}
	if a.Source != "folder" && (a.UseCrop == nil || *a.UseCrop) {
		req.Crop = s.single.Crop()
	}

	s.notes.Notify(fmt.Sprintf("Running %s", a.Algorithm))
	res, err := s.backend.Infer(ctx, req)
	if err != nil {
		s.notes.Notify(fmt.Sprintf("Inference failed: %v", err))
		return nil, err
	}
	s.notes.Notify(orDefault(res.Message, "Inference complete"))

	out := &inferResult{Result: res}
	if len(res.ProcessedImage) > 0 {
		w, h, mime := 0, 0, datgrid.PNGMimeType
		if cfg, format, err := image.DecodeConfig(bytes.NewReader(res.ProcessedImage)); err == nil {
			w, h, mime = cfg.Width, cfg.Height, "image/"+format
		}
		out.ProcessedImage = s.handles.Create(res.ProcessedImage, mime, w, h)
	}
	s.setResult(out.ProcessedImage)
	return out, nil
}

// setResult replaces the processed image of the last inference, revoking
// the one it supersedes.
func (s *Server) setResult(h *handle.DisplayHandle) {
	s.resultMu.Lock()
	old := s.result
	s.result = h
	s.resultMu.Unlock()
	if old != nil && (h == nil || old.URL != h.URL) {
		s.handles.Revoke(old.URL)
	}
}

type inferFolderArgs struct {
	FolderPath string `json:"folder_path"`
	Algorithm  string `json:"algorithm"`
}

func (s *Server) handleInferFolder(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a inferFolderArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.FolderPath == "" {
		a.FolderPath = s.folder.Status().Dir
	}
	s.notes.Notify(fmt.Sprintf("Running %s on %s", a.Algorithm, filepath.Base(a.FolderPath)))
	res, err := s.backend.InferFolderPath(ctx, a.FolderPath, a.Algorithm)
	if err != nil {
		s.notes.Notify(fmt.Sprintf("Folder inference failed: %v", err))
		return nil, err
	}
	s.notes.Notify(orDefault(res.Message, "Folder inference complete"))
	return res, nil
}

func (s *Server) handleCropConfigPut(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var cfg inference.CropConfig
	if err := json.Unmarshal(args, &cfg); err != nil {
		return nil, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("width and height must be positive")
	}
	if err := s.backend.PutCropConfig(ctx, cfg); err != nil {
		return nil, err
	}
	return map[string]interface{}{"updated": true, "config": cfg}, nil
}

// === Log Handlers ===

type logsStatus struct {
	URL      string           `json:"url"`
	Status   logstream.Status `json:"status"`
	Attempts int              `json:"attempts"`
}

func (s *Server) logsStatus() logsStatus {
	return logsStatus{URL: s.logs.URL(), Status: s.logs.Status(), Attempts: s.logs.Attempts()}
}

type logsListArgs struct {
	SinceID int    `json:"since_id"`
	Level   string `json:"level"`
	Limit   int    `json:"limit"`
}

func (s *Server) handleLogsList(args json.RawMessage) (interface{}, error) {
	var a logsListArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	recs := s.logs.Records(a.SinceID)
	if a.Level != "" {
		kept := recs[:0]
		for _, r := range recs {
			if strings.EqualFold(r.Level, a.Level) {
				kept = append(kept, r)
			}
		}
		recs = kept
	}
	if a.Limit > 0 && len(recs) > a.Limit {
		recs = recs[len(recs)-a.Limit:]
	}
	return map[string]interface{}{
		"stream":  s.logsStatus(),
		"records": recs,
	}, nil
}

// === Status ===

func (s *Server) handleConsoleStatus() interface{} {
	single, _ := s.single.Current()
	return map[string]interface{}{
		"single": map[string]interface{}{
			"frame": single,
			"crop":  s.single.Crop(),
		},
		"folder":       s.folder.Status(),
		"logs":         s.logsStatus(),
		"live_handles": s.handles.Len(),
		"notification": s.notes.State(),
		"backend":      s.backend.BaseURL(),
		"precisions":   datgrid.PrecisionNames(),
		"colormaps":    imaging.Colormaps(),
	}
}
