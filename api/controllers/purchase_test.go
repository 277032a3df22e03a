package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/andresvillarreal/comprabot-backend/api/middleware"
	"github.com/andresvillarreal/comprabot-backend/internal/purchase"
)

type stubStepOrchestrator struct {
	result *purchase.StepResult
	err    error
	inputs []purchase.StepInput
}

func (s *stubStepOrchestrator) Execute(_ context.Context, input purchase.StepInput) (*purchase.StepResult, error) {
	s.inputs = append(s.inputs, input)
	return s.result, s.err
}

func TestPurchaseStepRequiresIdentity(t *testing.T) {
	orch := &stubStepOrchestrator{}
	handler := PurchaseStep(orch, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/purchase/step", strings.NewReader(`{"step":"start"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if len(orch.inputs) != 0 {
		t.Fatalf("orchestrator should not run without identity")
	}
}

func TestPurchaseStepRejectsUnknownStep(t *testing.T) {
	orch := &stubStepOrchestrator{}
	handler := PurchaseStep(orch, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/purchase/step", strings.NewReader(`{"step":"teleport"}`))
	req = req.WithContext(middleware.WithSessionID(req.Context(), "sess-1"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPurchaseStepRejectsMalformedOrderID(t *testing.T) {
	orch := &stubStepOrchestrator{}
	handler := PurchaseStep(orch, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/purchase/step", strings.NewReader(`{"step":"send_token","order_id":"not-a-uuid"}`))
	req = req.WithContext(middleware.WithSessionID(req.Context(), "sess-1"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(orch.inputs) != 0 {
		t.Fatalf("orchestrator should not run with malformed order id")
	}
}

func TestPurchaseStepPassesInputThrough(t *testing.T) {
	orderID := uuid.New()
	orch := &stubStepOrchestrator{
		result: &purchase.StepResult{Step: purchase.StepValidateToken, Message: "ok"},
	}
	handler := PurchaseStep(orch, nil)

	body := `{"step":"validate_token","order_id":"` + orderID.String() + `","token":" 482913 "}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/purchase/step", strings.NewReader(body))
	req = req.WithContext(middleware.WithCustomerID(req.Context(), "cust-7"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(orch.inputs) != 1 {
		t.Fatalf("expected one execution, got %d", len(orch.inputs))
	}
	input := orch.inputs[0]
	if input.OrderID != orderID {
		t.Fatalf("expected order id %s, got %s", orderID, input.OrderID)
	}
	if input.Token != "482913" {
		t.Fatalf("expected trimmed token, got %q", input.Token)
	}
	if input.OwnerKey.String() != "customer:cust-7" {
		t.Fatalf("unexpected owner key %s", input.OwnerKey)
	}

	var envelope struct {
		Data purchase.StepResult `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Data.Step != purchase.StepValidateToken {
		t.Fatalf("unexpected step in response: %s", envelope.Data.Step)
	}
}
