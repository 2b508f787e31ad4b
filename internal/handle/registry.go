// Package handle manages revocable references to rendered frames.
//
// A DisplayHandle is the Go counterpart of a browser object URL: a short
// string that resolves to an encoded image until its holder revokes it.
// Nothing is collected automatically. Whoever receives a handle must call
// Revoke once the handle is superseded or discarded, otherwise the encoded
// bytes stay in the registry for the lifetime of the process.
package handle

import (
	"encoding/base64"
	"fmt"
	"sync"
)

// DefaultScheme prefixes every handle URL issued by a Registry.
const DefaultScheme = "blob:frame-console/"

// DisplayHandle is a revocable reference to an encoded image.
type DisplayHandle struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Size     int    `json:"size_bytes"`
}

type entry struct {
	data []byte
	mime string
}

// Registry issues and resolves DisplayHandles. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	seq     uint64
	scheme  string
	entries map[string]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		scheme:  DefaultScheme,
		entries: make(map[string]entry),
	}
}

// Create stores data and returns a new handle for it. The registry keeps a
// reference to data; callers must not modify it afterwards.
func (r *Registry) Create(data []byte, mimeType string, width, height int) *DisplayHandle {
	r.mu.Lock()
	r.seq++
	url := fmt.Sprintf("%s%d", r.scheme, r.seq)
	r.entries[url] = entry{data: data, mime: mimeType}
	r.mu.Unlock()

	return &DisplayHandle{
		URL:      url,
		MimeType: mimeType,
		Width:    width,
		Height:   height,
		Size:     len(data),
	}
}

// Resolve returns the bytes and MIME type behind a live handle URL.
func (r *Registry) Resolve(url string) ([]byte, string, bool) {
	r.mu.RLock()
	e, ok := r.entries[url]
	r.mu.RUnlock()
	return e.data, e.mime, ok
}

// Revoke releases a handle. It reports whether the URL was live; revoking an
// unknown or already revoked URL is a no-op.
func (r *Registry) Revoke(url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[url]; !ok {
		return false
	}
	delete(r.entries, url)
	return true
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// DataURI resolves url and renders it as a data: URI.
func (r *Registry) DataURI(url string) (string, error) {
	data, mime, ok := r.Resolve(url)
	if !ok {
		return "", fmt.Errorf("handle %s is not live", url)
	}
	return DataURI(mime, data), nil
}

// DataURI renders data as a base64 data: URI.
func DataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
