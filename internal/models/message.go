// Package models contains the data types shared across dland.
package models

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a message
type Role string

const (
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleSystem Role = "system"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModel, RoleSystem:
		return true
	}
	return false
}

// MaxAttachmentSize limits attachments read from disk
const MaxAttachmentSize = 20 * 1024 * 1024 // 20MB

// SupportedImageTypes returns the MIME types accepted as attachments
func SupportedImageTypes() []string {
	return []string{
		"image/jpeg",
		"image/png",
		"image/gif",
		"image/webp",
	}
}

// Attachment is an image carried by a user message.
// Content holds the base64 encoding of the raw bytes.
type Attachment struct {
	Content  string `json:"content"`
	MIMEType string `json:"mimeType"`
}

// NewAttachment encodes data as an attachment. When mimeType is empty it is
// sniffed from the data.
func NewAttachment(data []byte, mimeType string) (*Attachment, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("attachment is empty")
	}
	if len(data) > MaxAttachmentSize {
		return nil, fmt.Errorf("attachment size exceeds maximum %d bytes", MaxAttachmentSize)
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	// Drop parameters such as "; charset=utf-8"
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if !isSupportedImageType(mimeType) {
		return nil, fmt.Errorf("unsupported image type: %s", mimeType)
	}
	return &Attachment{
		Content:  base64.StdEncoding.EncodeToString(data),
		MIMEType: mimeType,
	}, nil
}

// NewAttachmentFromFile reads an image file from disk
func NewAttachmentFromFile(path string) (*Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.Size() > MaxAttachmentSize {
		return nil, fmt.Errorf("file size exceeds maximum %d bytes", MaxAttachmentSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return NewAttachment(data, mime.TypeByExtension(strings.ToLower(filepath.Ext(path))))
}

// DataURL returns the attachment as a data: URL
func (a *Attachment) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", a.MIMEType, a.Content)
}

// Size returns the decoded size in bytes
func (a *Attachment) Size() int {
	return base64.StdEncoding.DecodedLen(len(a.Content))
}

func isSupportedImageType(mimeType string) bool {
	for _, t := range SupportedImageTypes() {
		if t == mimeType {
			return true
		}
	}
	return false
}

// Message is one entry of a conversation log.
// The JSON field names are shared with exported chat files.
type Message struct {
	ID            string      `json:"id"`
	Role          Role        `json:"role"`
	Text          string      `json:"text"`
	IsStreaming   bool        `json:"isStreaming,omitempty"`
	Timestamp     int64       `json:"timestamp"` // Unix milliseconds
	Attachment    *Attachment `json:"attachment,omitempty"`
	ExecutionTime int64       `json:"executionTime,omitempty"` // milliseconds
}

// NewMessage creates a message with a fresh id
func NewMessage(role Role, text string, at time.Time) Message {
	return Message{
		ID:        NewID(),
		Role:      role,
		Text:      text,
		Timestamp: at.UnixMilli(),
	}
}

// NewID returns a unique message id
func NewID() string {
	return uuid.NewString()
}

// Time returns the creation time
func (m Message) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// Duration returns the generation time recorded on model messages
func (m Message) Duration() time.Duration {
	return time.Duration(m.ExecutionTime) * time.Millisecond
}

// CloneMessages returns a copy of msgs. Attachments are immutable and shared.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// ClearStreaming returns a copy of msgs with every streaming flag cleared
func ClearStreaming(msgs []Message) []Message {
	out := CloneMessages(msgs)
	for i := range out {
		out[i].IsStreaming = false
	}
	return out
}
