package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// StepPayload is the tagged union of per-step workflow inputs. Each variant
// knows which step it belongs to; the store persists the JSON encoding.
type StepPayload interface {
	Step() WorkflowStep
	Validate() error
}

// ClassificationPayload carries the triage outcome for a ticket.
type ClassificationPayload struct {
	Category      TicketCategory `json:"category"`
	Priority      TicketPriority `json:"priority"`
	Keywords      []string       `json:"keywords,omitempty"`
	Confidence    float64        `json:"confidence,omitempty"`
	SuggestedTeam TeamID         `json:"suggested_team,omitempty"`
}

func (ClassificationPayload) Step() WorkflowStep { return StepClassification }

func (p ClassificationPayload) Validate() error {
	if !p.Category.Valid() {
		return fmt.Errorf("category %q is not a known category", p.Category)
	}
	if !p.Priority.Valid() {
		return fmt.Errorf("priority %q is not a known priority", p.Priority)
	}
	return nil
}

// ArticleRef points at a knowledge-base article included in search results.
type ArticleRef struct {
	Title    string         `json:"title"`
	Category TicketCategory `json:"category"`
}

// KnowledgeSearchPayload records the outcome of the knowledge lookup step.
// SolutionFound decides whether the workflow short-circuits to COMPLETE.
type KnowledgeSearchPayload struct {
	SolutionFound bool         `json:"solution_found"`
	ArticlesFound int          `json:"articles_found"`
	Articles      []ArticleRef `json:"articles,omitempty"`
	Query         string       `json:"query,omitempty"`
}

func (KnowledgeSearchPayload) Step() WorkflowStep { return StepKnowledgeSearch }

func (p KnowledgeSearchPayload) Validate() error {
	if p.ArticlesFound < 0 {
		return fmt.Errorf("articles_found must not be negative")
	}
	return nil
}

// AssignmentPayload records which team takes over the ticket.
type AssignmentPayload struct {
	Team          TeamID `json:"team"`
	Queue         string `json:"queue,omitempty"`
	RoutingReason string `json:"routing_reason,omitempty"`
}

func (AssignmentPayload) Step() WorkflowStep { return StepAssignment }

func (p AssignmentPayload) Validate() error {
	if p.Team == "" {
		return fmt.Errorf("team is required")
	}
	return nil
}

// EncodeStepPayload renders the canonical JSON form of a payload. The byte
// output is deterministic for a given value, so it doubles as the idempotency
// fingerprint input.
func EncodeStepPayload(p StepPayload) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.Step(), err)
	}
	return raw, nil
}

// DecodeStepPayload parses raw JSON into the payload variant for the step.
// Unknown JSON fields are rejected so malformed callers fail loudly.
func DecodeStepPayload(step WorkflowStep, raw []byte) (StepPayload, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	switch step {
	case StepClassification:
		var p ClassificationPayload
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", step, err)
		}
		return p, nil
	case StepKnowledgeSearch:
		var p KnowledgeSearchPayload
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", step, err)
		}
		return p, nil
	case StepAssignment:
		var p AssignmentPayload
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", step, err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("step %q has no payload form", step)
	}
}
