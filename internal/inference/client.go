// Package inference talks to the recognition backend: single-frame inference
// over multipart upload, folder inference by server-side path, and the crop
// configuration shared with the training side.
package inference

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/frame-console-mcp/internal/imaging"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrMissingInput is returned when a request lacks its file, folder or
// algorithm.
var ErrMissingInput = errors.New("a frame (or folder) and an algorithm are required")

// BackendError is a non-2xx answer from the backend.
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.Status)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// Client calls the backend under a base URL such as http://host:8080/api.
type Client struct {
	baseURL string
	http    *http.Client
	log     logrus.FieldLogger
}

// NewClient creates a Client. A zero timeout leaves requests unbounded.
func NewClient(baseURL string, timeout time.Duration, log logrus.FieldLogger) *Client {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Request describes one single-frame inference.
type Request struct {
	Path      string
	MD5       string
	Algorithm string
	Rows      int
	Cols      int
	Crop      *imaging.Region
}

// TextResult is one labelled line of the backend's answer.
type TextResult struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Result is the interpreted answer to Infer.
type Result struct {
	// ProcessedImage is the PNG the backend rendered, if any.
	ProcessedImage []byte       `json:"-"`
	Texts          []TextResult `json:"texts"`
	// ChartValues holds the result series, or nil when the backend sent none.
	ChartValues []float64              `json:"chart_values"`
	Message     string                 `json:"message"`
	Data        map[string]interface{} `json:"data"`
}

type envelope struct {
	ProcessedImage []byte      `json:"processedImage"`
	Algorithm      string      `json:"algorithm"`
	Timestamp      interface{} `json:"timestamp"`
	Message        string      `json:"message"`
	Result         []float64   `json:"result"`
	ResultLength   *int        `json:"result_length"`
}

// Infer uploads the frame file and returns the backend's findings.
func (c *Client) Infer(ctx context.Context, req Request) (*Result, error) {
	if req.Path == "" || req.Algorithm == "" {
		return nil, ErrMissingInput
	}
	file, err := os.Open(req.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(req.Path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}
	fields := [][2]string{
		{"fileMD5", req.MD5},
		{"algorithm", req.Algorithm},
		{"rows", strconv.Itoa(req.Rows)},
		{"cols", strconv.Itoa(req.Cols)},
	}
	if req.Crop != nil {
		crop, err := json.Marshal(req.Crop)
		if err != nil {
			return nil, err
		}
		fields = append(fields, [2]string{"cropData", string(crop)})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	raw, err := c.do(ctx, http.MethodPost, "/infer", mw.FormDataContentType(), &body)
	if err != nil {
		return nil, err
	}
	return c.interpret(raw, req.Algorithm)
}

func (c *Client) interpret(raw []byte, algorithm string) (*Result, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode inference response: %w", err)
	}
	res := &Result{ProcessedImage: env.ProcessedImage, Message: env.Message}
	if err := json.Unmarshal(raw, &res.Data); err != nil {
		return nil, fmt.Errorf("failed to decode inference response: %w", err)
	}
	delete(res.Data, "processedImage")

	if env.Algorithm != "" {
		res.Texts = append(res.Texts, TextResult{Label: "algorithm", Value: env.Algorithm})
	}
	if env.Timestamp != nil && env.Timestamp != "" {
		res.Texts = append(res.Texts, TextResult{Label: "timestamp", Value: fmt.Sprint(env.Timestamp)})
	}
	if env.Message != "" {
		res.Texts = append(res.Texts, TextResult{Label: "message", Value: env.Message})
	}

	log := c.log.WithField("algorithm", algorithm)
	switch {
	case env.Result == nil:
		log.Warn("inference: response has no result series")
	case len(env.Result) == 0:
		log.Warn("inference: result series is empty")
	default:
		res.ChartValues = env.Result
	}
	if env.ResultLength != nil && *env.ResultLength != len(env.Result) {
		log.WithFields(logrus.Fields{"result_length": *env.ResultLength, "len": len(env.Result)}).
			Warn("inference: result length does not match result_length")
	}
	return res, nil
}

// FolderResult is the backend's answer to a folder inference.
type FolderResult struct {
	Success     bool                   `json:"success"`
	ResultPath  string                 `json:"resultPath"`
	ResultFiles map[string]interface{} `json:"resultFiles"`
	Message     string                 `json:"message"`
	Error       string                 `json:"error,omitempty"`
}

// InferFolderPath asks the backend to process every frame under a folder on
// its own file system.
func (c *Client) InferFolderPath(ctx context.Context, folderPath, algorithm string) (*FolderResult, error) {
	if folderPath == "" || algorithm == "" {
		return nil, ErrMissingInput
	}
	payload, err := json.Marshal(map[string]string{"folderPath": folderPath, "algorithm": algorithm})
	if err != nil {
		return nil, err
	}
	raw, err := c.do(ctx, http.MethodPost, "/infer_folder_path", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	var res FolderResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("failed to decode folder response: %w", err)
	}
	if !res.Success {
		msg := res.Message
		if msg == "" {
			msg = res.Error
		}
		if msg == "" {
			msg = "backend reported failure without a message"
		}
		return &res, fmt.Errorf("folder inference failed: %s", msg)
	}
	return &res, nil
}

// CropConfig is the crop region and learning rate used by the backend.
type CropConfig struct {
	X      int     `json:"x"`
	Y      int     `json:"y"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	LR     float64 `json:"lr"`
}

// DefaultCropConfig mirrors the backend's factory settings.
func DefaultCropConfig() CropConfig {
	return CropConfig{Width: 320, Height: 240, LR: 0.0001}
}

// GetCropConfig fetches the current crop configuration.
func (c *Client) GetCropConfig(ctx context.Context) (*CropConfig, error) {
	raw, err := c.do(ctx, http.MethodGet, "/config/crop", "", nil)
	if err != nil {
		return nil, err
	}
	cfg := DefaultCropConfig()
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode crop config: %w", err)
	}
	return &cfg, nil
}

// PutCropConfig replaces the crop configuration.
func (c *Client) PutCropConfig(ctx context.Context, cfg CropConfig) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPut, "/config/crop", "application/json", bytes.NewReader(payload))
	return err
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: reading body: %w", method, path, err)
	}
	c.log.WithFields(logrus.Fields{
		"method":  method,
		"path":    path,
		"status":  resp.StatusCode,
		"elapsed": time.Since(start).String(),
	}).Debug("inference: backend call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &BackendError{Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	return raw, nil
}

// errorMessage pulls "error" or "message" out of a JSON error body, falling
// back to the trimmed body text.
func errorMessage(raw []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return strings.TrimSpace(string(raw))
}
