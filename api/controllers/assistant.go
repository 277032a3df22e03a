package controllers

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/andresvillarreal/comprabot-backend/api/middleware"
	"github.com/andresvillarreal/comprabot-backend/api/responses"
	"github.com/andresvillarreal/comprabot-backend/api/validators"
	"github.com/andresvillarreal/comprabot-backend/internal/assistant"
	"github.com/andresvillarreal/comprabot-backend/internal/assistant/stream"
	"github.com/andresvillarreal/comprabot-backend/internal/speech"
	pkgerrors "github.com/andresvillarreal/comprabot-backend/pkg/errors"
	"github.com/andresvillarreal/comprabot-backend/pkg/logger"
)

const maxAssistantTextLen = 2000

type assistantTextRequest struct {
	Text        string `json:"text" validate:"required,max=2000"`
	ImageBase64 string `json:"image_base64" validate:"omitempty"`
}

type assistantAudioRequest struct {
	AudioBase64 string `json:"audio_base64" validate:"required"`
	MimeType    string `json:"mime_type" validate:"omitempty,max=80"`
}

// AssistantText runs one conversational turn. Streaming clients signal with
// Accept: application/x-ndjson or ?stream=1; everyone else gets the collected
// {"messages": [...]} document.
func AssistantText(svc assistant.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload assistantTextRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := assistant.Input{
			Identity: middleware.IdentityFromContext(r.Context()),
			Text:     validators.SanitizeString(payload.Text, maxAssistantTextLen),
		}

		respond(w, r, logg, svc, input)
	}
}

// AssistantAudio transcribes the audio payload and feeds the transcript
// through the same turn pipeline, marking the input as voice.
func AssistantAudio(svc assistant.Service, transcriber speech.Transcriber, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload assistantAudioRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		audio, err := base64.StdEncoding.DecodeString(payload.AudioBase64)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "audio_base64 must be valid base64"))
			return
		}
		if len(audio) == 0 {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "audio payload is empty"))
			return
		}

		if transcriber == nil {
			transcriber = speech.Disabled{}
		}
		text, err := transcriber.Transcribe(r.Context(), audio, payload.MimeType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := assistant.Input{
			Identity: middleware.IdentityFromContext(r.Context()),
			Text:     validators.SanitizeString(text, maxAssistantTextLen),
			Voice:    true,
		}

		respond(w, r, logg, svc, input)
	}
}

func respond(w http.ResponseWriter, r *http.Request, logg *logger.Logger, svc assistant.Service, input assistant.Input) {
	producer := func(ctx context.Context, emit assistant.EmitFunc) error {
		return svc.Respond(ctx, input, emit)
	}

	if wantsStream(r) {
		// Headers are already out by the time a stream error surfaces;
		// nothing left to send, just record the drop.
		if err := stream.Write(r.Context(), w, producer); err != nil && logg != nil {
			logg.Warn(logg.WithFields(r.Context(), map[string]any{"error": err.Error()}), "assistant.stream.aborted")
		}
		return
	}

	// The fallback collects before writing, so a failure here still has a
	// clean response to use.
	if err := stream.WriteFallback(r.Context(), w, producer); err != nil {
		responses.WriteError(r.Context(), logg, w, err)
	}
}

func wantsStream(r *http.Request) bool {
	if r.URL.Query().Get("stream") == "1" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/x-ndjson")
}
