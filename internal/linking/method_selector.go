package linking

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sogos/paperlink/internal/domain/entity"
	"github.com/sogos/paperlink/internal/domain/service"
)

// methodSelectorMaxConcurrency is not referenced: selectMethods runs
// inside Phase C's goroutines, whose fan-out c2oMaxConcurrency bounds.
const methodSelectorMaxConcurrency = 100

type methodOption struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
}

type methodSelection struct {
	MethodIDs []string `json:"method_ids"`
}

// selectMethods asks the LLM which of methods could plausibly produce
// observations bearing on claimText. Returns an empty slice (not an
// error) on any failure, per spec §4.5 Phase C step 1.
func selectMethods(ctx context.Context, llm service.LLMClient, claimText string, methods []*entity.Extract) ([]string, service.Usage) {
	if len(methods) == 0 {
		return nil, service.Usage{}
	}

	options := make([]methodOption, 0, len(methods))
	for _, m := range methods {
		options = append(options, methodOption{ID: m.ID.String(), Summary: m.MethodSummary()})
	}
	optionsJSON, err := json.Marshal(options)
	if err != nil {
		return nil, service.Usage{}
	}

	req := service.CompletionRequest{
		SystemPrompt: selectMethodsSystemPrompt,
		UserPrompt:   fmt.Sprintf("Claim: %s\n\nMethods:\n%s", claimText, optionsJSON),
		SchemaName:   "method_selection",
	}
	completion, err := llm.Complete(ctx, req)
	if err != nil {
		return nil, service.Usage{}
	}
	var selection methodSelection
	if err := json.Unmarshal([]byte(completion.Text), &selection); err != nil {
		return nil, completion.Usage
	}
	return selection.MethodIDs, completion.Usage
}

const selectMethodsSystemPrompt = `Given a scientific claim and a list of methods (each with an id and a summary), select the IDs of methods whose observations could plausibly bear on the claim — either by supporting, contradicting, or providing relevant context for it.

Respond with JSON: {"method_ids": ["..."]}`
