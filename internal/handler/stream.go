package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"houser/internal/model"
)

// Stream formats
const (
	FormatSSE    = "sse"
	FormatNDJSON = "ndjson"

	ndjsonContentType = "application/x-ndjson"
)

// FrameWriter encodes chat frames onto a response body, one record per frame
type FrameWriter struct {
	w       io.Writer
	flusher http.Flusher
	format  string
}

// NewFrameWriter creates a writer. flusher may be nil.
func NewFrameWriter(w io.Writer, flusher http.Flusher, format string) *FrameWriter {
	if format != FormatNDJSON {
		format = FormatSSE
	}
	return &FrameWriter{w: w, flusher: flusher, format: format}
}

// Write encodes one frame and flushes it
func (fw *FrameWriter) Write(f model.Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode %s frame: %w", f.Type, err)
	}

	switch fw.format {
	case FormatNDJSON:
		_, err = fmt.Fprintf(fw.w, "%s\n", data)
	default:
		_, err = fmt.Fprintf(fw.w, "data: %s\n\n", data)
	}
	if err != nil {
		return err
	}

	if fw.flusher != nil {
		fw.flusher.Flush()
	}
	return nil
}

// ContentType returns the response content type for the writer's format
func (fw *FrameWriter) ContentType() string {
	if fw.format == FormatNDJSON {
		return ndjsonContentType
	}
	return "text/event-stream; charset=utf-8"
}

// negotiateFormat picks NDJSON when the client asks for it, SSE otherwise
func negotiateFormat(accept string) string {
	if strings.Contains(strings.ToLower(accept), ndjsonContentType) {
		return FormatNDJSON
	}
	return FormatSSE
}
