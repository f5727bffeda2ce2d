// Package queue keeps a durable, ordered list of images waiting to be
// transformed and submits them one at a time.
package queue

import (
	"encoding/base64"
	"errors"
)

// MaxItems is the hard cap on queue length. Items carry their raw payload, so
// the persisted store grows with every entry.
const MaxItems = 20

// DefaultStorageCeiling is the payload size above which a storage-pressure
// notice is emitted.
const DefaultStorageCeiling int64 = 64 << 20

var (
	ErrQueueFull       = errors.New("queue is full")
	ErrBusy            = errors.New("queue is already processing")
	ErrQuotaExceeded   = errors.New("image quota exceeded")
	ErrNotFound        = errors.New("queue item not found")
	ErrUnsupportedType = errors.New("unsupported file type")
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

type Item struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Payload      []byte `json:"payload"`
	ContentType  string `json:"content_type"`
	PreviewURI   string `json:"preview_uri"`
	Status       Status `json:"status"`
	ResultRef    string `json:"result_ref,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// File is one image offered to Add.
type File struct {
	Name        string
	Path        string
	Data        []byte
	ContentType string
}

// Options select the transformation applied to every item in a Process run.
type Options struct {
	Mode   string
	Params map[string]string
}

// Previewer renders the local preview reference for a newly added file.
type Previewer func(f File, contentType string) string

// DefaultPreview points at the source file when there is one and falls back
// to an inline data URI.
func DefaultPreview(f File, contentType string) string {
	if f.Path != "" {
		return "file://" + f.Path
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(f.Data)
}

type NoticeKind string

const (
	NoticeSessionRestored NoticeKind = "session_restored"
	NoticePaywall         NoticeKind = "paywall"
	NoticeStoragePressure NoticeKind = "storage_pressure"
)

type Notice struct {
	Kind    NoticeKind
	Message string
	// Count is the number of items restored for NoticeSessionRestored.
	Count int
	// Bytes is the total payload size for NoticeStoragePressure.
	Bytes int64
}

// Summary describes one Process run.
type Summary struct {
	Completed int
	Failed    int
	Remaining int
}

func cloneItems(items []Item) []Item {
	if items == nil {
		return []Item{}
	}
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
