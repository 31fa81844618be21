package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var invalidSegment = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// Writer persists raw Telegram updates on disk so the attribution pipeline
// can be audited or replayed after the fact.
type Writer struct {
	baseDir string
}

// NewWriter returns a writer rooted at baseDir, or nil when baseDir is empty.
func NewWriter(baseDir string) *Writer {
	base := strings.TrimSpace(baseDir)
	if base == "" {
		return nil
	}
	return &Writer{baseDir: filepath.Clean(base)}
}

// Enabled reports whether raw update recording is active.
func (w *Writer) Enabled() bool {
	return w != nil && w.baseDir != ""
}

// Write stores one update as a JSON file under
// baseDir/<updateType>/<chatID>/timestamp-uuid.json.
func (w *Writer) Write(updateType string, chatID int64, payload any) error {
	if !w.Enabled() || payload == nil {
		return nil
	}

	segmentType := sanitizeSegment(updateType)
	segmentChat := sanitizeSegment(strconv.FormatInt(chatID, 10))

	dir := filepath.Join(w.baseDir, segmentType, segmentChat)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	ts := time.Now().UTC()
	fileName := fmt.Sprintf("%s-%s.json", ts.Format("20060102T150405Z"), uuid.NewString())
	path := filepath.Join(dir, fileName)

	record := map[string]any{
		"update_type": updateType,
		"chat_id":     chatID,
		"received_at": ts.Format(time.RFC3339Nano),
		"payload":     marshalPayload(payload),
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		fallback := map[string]any{
			"update_type":   updateType,
			"chat_id":       chatID,
			"received_at":   ts.Format(time.RFC3339Nano),
			"marshal_error": err.Error(),
		}
		if raw := fmt.Sprintf("%+v", payload); raw != "" {
			fallback["payload_text"] = raw
		}
		data, err = json.MarshalIndent(fallback, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal fallback: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func sanitizeSegment(raw string) string {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "unknown"
	}
	sanitized := invalidSegment.ReplaceAllString(candidate, "_")
	sanitized = strings.Trim(sanitized, "._-")
	if sanitized == "" {
		return "unknown"
	}
	return sanitized
}

func marshalPayload(payload any) any {
	if payload == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return map[string]any{
			"marshal_error": err.Error(),
			"payload_text":  fmt.Sprintf("%+v", payload),
		}
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return map[string]any{
			"unmarshal_error": err.Error(),
			"payload_text":    fmt.Sprintf("%+v", payload),
		}
	}
	return decoded
}
