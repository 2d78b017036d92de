package orchestration

import (
	"strings"
	"testing"

	"github.com/richinex/datagent/agent"
	"github.com/richinex/datagent/prompts"
)

func newTestCoordinator(t *testing.T, maxTime *uint64) *Coordinator {
	t.Helper()
	coordinator := NewCoordinator()
	err := coordinator.RegisterContract("test_contract", Contract{
		FromAgent:          "agent_a",
		ToAgent:            stringPtr("agent_b"),
		Schema:             []byte(`{"type": "object", "required": ["result"], "properties": {"result": {"type": "string"}, "count": {"type": "integer", "minimum": 0}}}`),
		MaxExecutionTimeMs: maxTime,
	})
	if err != nil {
		t.Fatalf("RegisterContract failed: %v", err)
	}
	return coordinator
}

func success(result string, execMs uint64) agent.Response {
	return agent.NewSuccessResponse(result, nil, nil, execMs, "agent_a", nil, 1)
}

func TestHandoffValidationSuccess(t *testing.T) {
	maxTime := uint64(5000)
	coordinator := newTestCoordinator(t, &maxTime)

	response := success(`{"result": "success"}`, 1000)
	validation := coordinator.Validate("test_contract", &response)

	if !validation.Valid {
		t.Errorf("expected validation to pass, got errors: %v", validation.Errors)
	}
	if len(validation.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", validation.Warnings)
	}
}

func TestHandoffValidationTimeoutWarning(t *testing.T) {
	maxTime := uint64(1000)
	coordinator := newTestCoordinator(t, &maxTime)

	response := success(`{"result": "ok"}`, 2000)
	validation := coordinator.Validate("test_contract", &response)

	if !validation.Valid {
		t.Errorf("expected validation to pass (with warnings), got errors: %v", validation.Errors)
	}
	if len(validation.Warnings) == 0 {
		t.Error("expected warnings about execution time")
	}
}

func TestHandoffValidationContractNotFound(t *testing.T) {
	coordinator := NewCoordinator()
	response := success("success", 0)

	validation := coordinator.Validate("nonexistent", &response)

	if validation.Valid {
		t.Error("expected validation to fail for nonexistent contract")
	}
	if validation.Errors[0].ErrorType != "ContractNotFound" {
		t.Errorf("expected ContractNotFound, got %s", validation.Errors[0].ErrorType)
	}
}

func TestHandoffValidationAgentFailure(t *testing.T) {
	coordinator := newTestCoordinator(t, nil)

	failure := agent.NewFailureResponse("boom", nil, 10, "agent_a")
	validation := coordinator.Validate("test_contract", &failure)
	if validation.Valid || validation.Errors[0].ErrorType != "AgentFailure" {
		t.Errorf("expected AgentFailure, got %+v", validation)
	}

	timeout := agent.NewTimeoutResponse(nil, nil, 10, "agent_a", nil, 3)
	validation = coordinator.Validate("test_contract", &timeout)
	if validation.Valid || validation.Errors[0].ErrorType != "AgentTimeout" {
		t.Errorf("expected AgentTimeout, got %+v", validation)
	}
}

func TestHandoffValidationSchemaViolations(t *testing.T) {
	coordinator := newTestCoordinator(t, nil)

	response := success(`Here you go: {"count": -1}`, 0)
	validation := coordinator.Validate("test_contract", &response)

	if validation.Valid {
		t.Fatal("expected schema violations")
	}
	if len(validation.Errors) != 2 {
		t.Fatalf("expected 2 violations, got %d: %+v", len(validation.Errors), validation.Errors)
	}
	fields := []string{validation.Errors[0].Field, validation.Errors[1].Field}
	if fields[0] != "/" || fields[1] != "/count" {
		t.Errorf("expected violations at / and /count, got %v", fields)
	}
	for _, e := range validation.Errors {
		if e.ErrorType != "SchemaViolation" || e.Message == "" {
			t.Errorf("unexpected error %+v", e)
		}
	}
}

func TestHandoffValidationNonJSON(t *testing.T) {
	coordinator := newTestCoordinator(t, nil)

	response := success("plain text answer", 0)
	validation := coordinator.Validate("test_contract", &response)

	if validation.Valid || validation.Errors[0].ErrorType != "InvalidJSON" {
		t.Errorf("expected InvalidJSON, got %+v", validation)
	}
}

func TestRegisterContractRejectsBadSchema(t *testing.T) {
	coordinator := NewCoordinator()
	err := coordinator.RegisterContract("bad", Contract{Schema: []byte(`{"type": 12}`)})
	if err == nil {
		t.Fatal("expected compile error")
	}
	if !strings.Contains(err.Error(), "bad") {
		t.Errorf("expected contract name in error, got %v", err)
	}
	if len(coordinator.ContractNames()) != 0 {
		t.Error("expected failed contract not to be registered")
	}
}

func TestAgentContracts(t *testing.T) {
	coordinator := NewCoordinator()
	if err := coordinator.RegisterContract(ContractRetrieval, Contract{Schema: prompts.RetrievalSchema}); err != nil {
		t.Fatalf("retrieval schema failed to compile: %v", err)
	}
	if err := coordinator.RegisterContract(ContractAnalytics, Contract{Schema: prompts.AnalyticsSchema}); err != nil {
		t.Fatalf("analytics schema failed to compile: %v", err)
	}

	retrieval := success(retrievalAnswer, 0)
	if v := coordinator.Validate(ContractRetrieval, &retrieval); !v.Valid {
		t.Errorf("expected retrieval answer to validate, got %+v", v.Errors)
	}

	analytics := success(analyticsAnswer, 0)
	if v := coordinator.Validate(ContractAnalytics, &analytics); !v.Valid {
		t.Errorf("expected analytics answer to validate, got %+v", v.Errors)
	}

	badChart := success(`{"analysis_summary": "x", "visualization_hints": [{"chart_type": "radar", "x": [], "y": [], "title": "t"}]}`, 0)
	v := coordinator.Validate(ContractAnalytics, &badChart)
	if v.Valid {
		t.Fatal("expected radar chart to be rejected")
	}
	if v.Errors[0].Field != "/visualization_hints/0/chart_type" {
		t.Errorf("unexpected violation field %q", v.Errors[0].Field)
	}

	names := coordinator.ContractNames()
	if len(names) != 2 || names[0] != ContractAnalytics {
		t.Errorf("expected sorted contract names, got %v", names)
	}
}

func stringPtr(s string) *string {
	return &s
}
