package domain

import (
	"bytes"
	"strings"
	"testing"
)

func TestDecodeStepPayloadVariants(t *testing.T) {
	t.Parallel()

	payload, err := DecodeStepPayload(StepClassification, []byte(`{"category":"network","priority":"high","keywords":["vpn"]}`))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	classification, ok := payload.(ClassificationPayload)
	if !ok {
		t.Fatalf("expected ClassificationPayload, got %T", payload)
	}
	if classification.Category != CategoryNetwork || classification.Priority != TicketPriorityHigh {
		t.Errorf("unexpected decode result %+v", classification)
	}
	if classification.Step() != StepClassification {
		t.Errorf("payload reports step %q", classification.Step())
	}

	payload, err = DecodeStepPayload(StepKnowledgeSearch, []byte(`{"solution_found":true,"articles_found":2}`))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if search, ok := payload.(KnowledgeSearchPayload); !ok || !search.SolutionFound {
		t.Errorf("unexpected decode result %+v", payload)
	}

	payload, err = DecodeStepPayload(StepAssignment, []byte(`{"team":"network"}`))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if assignment, ok := payload.(AssignmentPayload); !ok || assignment.Team != TeamNetwork {
		t.Errorf("unexpected decode result %+v", payload)
	}
}

func TestDecodeStepPayloadRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, err := DecodeStepPayload(StepClassification, []byte(`{"category":"network","priority":"high","oops":1}`))
	if err == nil {
		t.Fatal("expected unknown-field error")
	}
}

func TestDecodeStepPayloadRejectsNonExecutableStep(t *testing.T) {
	t.Parallel()

	if _, err := DecodeStepPayload(StepComplete, []byte(`{}`)); err == nil {
		t.Fatal("expected error for COMPLETE")
	}
	if _, err := DecodeStepPayload(WorkflowStep("TRIAGE"), []byte(`{}`)); err == nil {
		t.Fatal("expected error for unknown step")
	}
}

func TestEncodeStepPayloadIsDeterministic(t *testing.T) {
	t.Parallel()

	payload := ClassificationPayload{Category: CategoryNetwork, Priority: TicketPriorityHigh, Keywords: []string{"vpn", "office"}}
	first, err := EncodeStepPayload(payload)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, err := EncodeStepPayload(payload)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("encoding not stable: %s vs %s", first, second)
	}
}

func TestStepPayloadValidate(t *testing.T) {
	t.Parallel()

	if err := (ClassificationPayload{Category: "gadgets", Priority: TicketPriorityHigh}).Validate(); err == nil {
		t.Error("expected error for unknown category")
	}
	if err := (ClassificationPayload{Category: CategoryNetwork, Priority: "sometime"}).Validate(); err == nil {
		t.Error("expected error for unknown priority")
	}
	if err := (ClassificationPayload{Category: CategoryNetwork, Priority: TicketPriorityLow}).Validate(); err != nil {
		t.Errorf("expected valid payload, got %v", err)
	}

	if err := (KnowledgeSearchPayload{ArticlesFound: -1}).Validate(); err == nil {
		t.Error("expected error for negative articles_found")
	}

	err := (AssignmentPayload{}).Validate()
	if err == nil || !strings.Contains(err.Error(), "team") {
		t.Errorf("expected team-required error, got %v", err)
	}
}

func TestWorkflowStepValid(t *testing.T) {
	t.Parallel()

	for _, step := range []WorkflowStep{StepClassification, StepKnowledgeSearch, StepAssignment} {
		if !step.Valid() {
			t.Errorf("expected %q to be executable", step)
		}
	}
	if StepComplete.Valid() {
		t.Error("COMPLETE must not be executable")
	}
	if WorkflowStep("").Valid() {
		t.Error("empty step must not be executable")
	}
}
