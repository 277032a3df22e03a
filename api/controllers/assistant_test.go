package controllers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andresvillarreal/comprabot-backend/internal/assistant"
	"github.com/andresvillarreal/comprabot-backend/internal/speech"
)

type stubAssistant struct {
	inputs    []assistant.Input
	fragments []assistant.Fragment
}

func (s *stubAssistant) Respond(ctx context.Context, input assistant.Input, emit assistant.EmitFunc) error {
	s.inputs = append(s.inputs, input)
	for _, fragment := range s.fragments {
		if err := emit(ctx, fragment); err != nil {
			return err
		}
	}
	return nil
}

type fixedTranscriber struct {
	text string
}

func (f fixedTranscriber) Transcribe(context.Context, []byte, string) (string, error) {
	return f.text, nil
}

func TestAssistantTextFallbackEnvelope(t *testing.T) {
	svc := &stubAssistant{fragments: []assistant.Fragment{assistant.Text("hola")}}
	handler := AssistantText(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/assistant/text", strings.NewReader(`{"text":"hola"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var envelope struct {
		Messages []assistant.Fragment `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode fallback envelope: %v", err)
	}
	if len(envelope.Messages) != 1 || envelope.Messages[0].Text != "hola" {
		t.Fatalf("unexpected messages: %#v", envelope.Messages)
	}
}

func TestAssistantTextStreamsWhenRequested(t *testing.T) {
	svc := &stubAssistant{fragments: []assistant.Fragment{
		assistant.Text("hola"),
		assistant.Text("¿qué buscas?"),
	}}
	handler := AssistantText(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/assistant/text?stream=1", strings.NewReader(`{"text":"hola"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "application/x-ndjson") {
		t.Fatalf("expected ndjson content type, got %q", got)
	}
	frames := strings.Split(strings.TrimSpace(rec.Body.String()), "\n\n")
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d: %q", len(frames), rec.Body.String())
	}
}

func TestAssistantTextRequiresText(t *testing.T) {
	svc := &stubAssistant{}
	handler := AssistantText(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/assistant/text", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(svc.inputs) != 0 {
		t.Fatalf("assistant should not run without text")
	}
}

func TestAssistantAudioTranscribesAndMarksVoice(t *testing.T) {
	svc := &stubAssistant{fragments: []assistant.Fragment{assistant.Text("hola")}}
	handler := AssistantAudio(svc, fixedTranscriber{text: "quiero ver mi carrito"}, nil)

	audio := base64.StdEncoding.EncodeToString([]byte("fake-ogg-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assistant/audio", strings.NewReader(`{"audio_base64":"`+audio+`"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.inputs) != 1 {
		t.Fatalf("expected one turn, got %d", len(svc.inputs))
	}
	if !svc.inputs[0].Voice || svc.inputs[0].Text != "quiero ver mi carrito" {
		t.Fatalf("unexpected input: %#v", svc.inputs[0])
	}
}

func TestAssistantAudioWithoutTranscriber(t *testing.T) {
	svc := &stubAssistant{}
	handler := AssistantAudio(svc, speech.Disabled{}, nil)

	audio := base64.StdEncoding.EncodeToString([]byte("fake-ogg-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assistant/audio", strings.NewReader(`{"audio_base64":"`+audio+`"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if len(svc.inputs) != 0 {
		t.Fatalf("assistant should not run without a transcript")
	}
}
