package history

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	apierrors "github.com/diogo/dland/internal/errors"
	"github.com/diogo/dland/internal/models"
)

// ExportFormat represents the format for exporting conversations
type ExportFormat string

const (
	ExportFormatMarkdown ExportFormat = "markdown"
	ExportFormatJSON     ExportFormat = "json"
)

// ParseExportFormat accepts "json", "markdown" or "md"
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(s) {
	case "", "json":
		return ExportFormatJSON, nil
	case "markdown", "md":
		return ExportFormatMarkdown, nil
	}
	return "", fmt.Errorf("unknown export format %q (valid: json, markdown)", s)
}

// ExportFilename returns the suggested file name for an export taken at t
func ExportFilename(persona string, format ExportFormat, t time.Time) string {
	ext := "json"
	if format == ExportFormatMarkdown {
		ext = "md"
	}
	return fmt.Sprintf("dland_chat_%s_%s.%s", persona, t.Format("2006-01-02"), ext)
}

// EncodeLog renders msgs as an indented JSON array with streaming flags cleared
func EncodeLog(msgs []models.Message) ([]byte, error) {
	out := models.ClearStreaming(msgs)
	if out == nil {
		out = []models.Message{}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode history: %w", err)
	}
	return data, nil
}

// DecodeLog parses an exported log. The top level must be a JSON array of
// messages; anything else is a FormatError. Streaming flags are cleared and
// missing ids are filled in.
func DecodeLog(data []byte) ([]models.Message, error) {
	if !gjson.ValidBytes(data) {
		return nil, apierrors.NewFormatError("", "not valid JSON", nil)
	}
	if !gjson.ParseBytes(data).IsArray() {
		return nil, apierrors.NewFormatError("", "expected a JSON array of messages", nil)
	}

	var msgs []models.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, apierrors.NewFormatError("", "malformed message list", err)
	}

	for i := range msgs {
		if !msgs[i].Role.Valid() {
			return nil, apierrors.NewFormatError("", fmt.Sprintf("message %d has unknown role %q", i, msgs[i].Role), nil)
		}
		if msgs[i].ID == "" {
			msgs[i].ID = models.NewID()
		}
		msgs[i].IsStreaming = false
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

// ExportMarkdown renders a conversation log as a Markdown document
func ExportMarkdown(persona string, msgs []models.Message, exportedAt time.Time) string {
	var sb strings.Builder

	sb.WriteString("# Dland chat: ")
	sb.WriteString(persona)
	sb.WriteString("\n\n")

	sb.WriteString("**Exported:** ")
	sb.WriteString(exportedAt.Format("2006-01-02 15:04:05"))
	sb.WriteString("\n")
	sb.WriteString("**Messages:** ")
	sb.WriteString(fmt.Sprintf("%d", len(msgs)))
	sb.WriteString("\n\n---\n\n")

	for i, msg := range msgs {
		var role string
		switch msg.Role {
		case models.RoleUser:
			role = "User"
		case models.RoleModel:
			role = "Dland"
		default:
			role = "System"
		}

		sb.WriteString("## ")
		sb.WriteString(role)
		if msg.Timestamp > 0 {
			sb.WriteString(" (")
			sb.WriteString(msg.Time().Format("15:04:05"))
			sb.WriteString(")")
		}
		sb.WriteString("\n\n")

		if msg.Attachment != nil {
			sb.WriteString(fmt.Sprintf("*[image attachment: %s]*\n\n", msg.Attachment.MIMEType))
		}

		sb.WriteString(msg.Text)
		sb.WriteString("\n")

		if msg.Role == models.RoleModel && msg.ExecutionTime > 0 {
			sb.WriteString(fmt.Sprintf("\n*Generated in %.1fs*\n", msg.Duration().Seconds()))
		}

		if i < len(msgs)-1 {
			sb.WriteString("\n---\n\n")
		}
	}

	return sb.String()
}

// FormatRelativeTime formats a time as a relative string like "2h ago" or "yesterday"
func FormatRelativeTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 min ago"
		}
		return fmt.Sprintf("%d min ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hours)
	case diff < 48*time.Hour:
		return "yesterday"
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}
