// Package stream delivers assistant fragments over HTTP. Each fragment is
// written as one JSON object terminated by a blank line and flushed
// immediately; transports without flush support fall back to a single
// {"messages": [...]} document with identical content in identical order.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/andresvillarreal/comprabot-backend/internal/assistant"
)

const (
	contentTypeStream   = "application/x-ndjson; charset=utf-8"
	contentTypeFallback = "application/json; charset=utf-8"
	frameSeparator      = "\n\n"
)

// Producer runs the fragment pipeline, pushing each fragment through emit as
// soon as it is ready.
type Producer func(ctx context.Context, emit assistant.EmitFunc) error

// Write streams the producer's fragments to the client. With a flushable
// response writer every fragment goes out as soon as it is produced; a write
// failure (client gone) propagates back through emit and stops the producer.
func Write(ctx context.Context, w http.ResponseWriter, produce Producer) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return WriteFallback(ctx, w, produce)
	}

	w.Header().Set("Content-Type", contentTypeStream)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	return produce(ctx, func(ctx context.Context, fragment assistant.Fragment) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := json.Marshal(fragment)
		if err != nil {
			return fmt.Errorf("encoding fragment: %w", err)
		}
		if _, err := w.Write(append(data, []byte(frameSeparator)...)); err != nil {
			return fmt.Errorf("writing fragment: %w", err)
		}
		flusher.Flush()
		return nil
	})
}

// fallbackEnvelope wraps the collected fragments for non-streaming clients.
type fallbackEnvelope struct {
	Messages []assistant.Fragment `json:"messages"`
}

// WriteFallback is the non-streaming delivery: same fragments, same order,
// one document.
func WriteFallback(ctx context.Context, w http.ResponseWriter, produce Producer) error {
	fragments, err := Collect(ctx, produce)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", contentTypeFallback)
	w.WriteHeader(http.StatusOK)
	return json.NewEncoder(w).Encode(fallbackEnvelope{Messages: fragments})
}

// Collect materializes the producer's fragments in order.
func Collect(ctx context.Context, produce Producer) ([]assistant.Fragment, error) {
	fragments := make([]assistant.Fragment, 0, 4)
	err := produce(ctx, func(ctx context.Context, fragment assistant.Fragment) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		fragments = append(fragments, fragment)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fragments, nil
}
