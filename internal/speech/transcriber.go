package speech

import (
	"context"

	pkgerrors "github.com/andresvillarreal/comprabot-backend/pkg/errors"
)

// Transcriber turns an audio payload into text for the assistant pipeline.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// ErrNotConfigured is returned when no speech-to-text provider is wired in.
var ErrNotConfigured = pkgerrors.New(pkgerrors.CodeDependency, "speech-to-text is not configured")

// Disabled is the default Transcriber when no provider credentials exist.
// Audio endpoints stay mounted but report the missing dependency.
type Disabled struct{}

// Transcribe always fails with ErrNotConfigured.
func (Disabled) Transcribe(context.Context, []byte, string) (string, error) {
	return "", ErrNotConfigured
}
