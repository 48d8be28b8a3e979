package extract

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sogos/paperlink/internal/domain/service"
)

// ClaimExtractor extracts core scientific claims from a paper.
type ClaimExtractor interface {
	ExtractClaims(ctx context.Context, title, paperContent string) ([]ClaimContent, service.Usage, error)
}

// MethodExtractor extracts study designs/methods from a paper.
type MethodExtractor interface {
	ExtractMethods(ctx context.Context, paperContent string) ([]MethodContent, service.Usage, error)
}

// ObservationExtractor extracts empirical observations, one per method
// that produced it. Called only when a paper has at least one method.
type ObservationExtractor interface {
	ExtractObservations(ctx context.Context, paperContent string, methods []methodRef) ([]ObservationContent, service.Usage, error)
}

// methodRef is what the observation extractor needs to know about each
// method extract already persisted: its assigned ID and summary, so the
// LLM can cite method_reference by an ID that actually exists.
type methodRef struct {
	ID      string
	Summary string
}

// genaiExtractor backs the ClaimExtractor, MethodExtractor and
// ObservationExtractor instances with one
// LLMClient, differing only in system prompt and response shape.
type genaiExtractor struct {
	LLM service.LLMClient
}

// NewClaimExtractor returns the genai-backed ClaimExtractor.
func NewClaimExtractor(llm service.LLMClient) ClaimExtractor { return genaiExtractor{LLM: llm} }

// NewMethodExtractor returns the genai-backed MethodExtractor.
func NewMethodExtractor(llm service.LLMClient) MethodExtractor { return genaiExtractor{LLM: llm} }

// NewObservationExtractor returns the genai-backed ObservationExtractor.
func NewObservationExtractor(llm service.LLMClient) ObservationExtractor { return genaiExtractor{LLM: llm} }

type claimsResponse struct {
	Claims []ClaimContent `json:"claims"`
}

func (g genaiExtractor) ExtractClaims(ctx context.Context, title, paperContent string) ([]ClaimContent, service.Usage, error) {
	prompt := paperContent
	if title != "" {
		prompt = fmt.Sprintf("TITLE: %s\n\n%s", title, paperContent)
	}
	req := service.CompletionRequest{
		SystemPrompt: claimsSystemPrompt,
		UserPrompt:   prompt,
		SchemaName:   "claims_extraction_result",
	}
	completion, err := g.LLM.Complete(ctx, req)
	if err != nil {
		return nil, service.Usage{}, fmt.Errorf("extract claims: %w", err)
	}
	var resp claimsResponse
	if err := json.Unmarshal([]byte(completion.Text), &resp); err != nil {
		return nil, completion.Usage, fmt.Errorf("extract claims: decode response: %w", err)
	}
	return resp.Claims, completion.Usage, nil
}

type methodsResponse struct {
	Methods []MethodContent `json:"methods"`
}

func (g genaiExtractor) ExtractMethods(ctx context.Context, paperContent string) ([]MethodContent, service.Usage, error) {
	req := service.CompletionRequest{
		SystemPrompt: methodsSystemPrompt,
		UserPrompt:   paperContent,
		SchemaName:   "methods_extraction_result",
	}
	completion, err := g.LLM.Complete(ctx, req)
	if err != nil {
		return nil, service.Usage{}, fmt.Errorf("extract methods: %w", err)
	}
	var resp methodsResponse
	if err := json.Unmarshal([]byte(completion.Text), &resp); err != nil {
		return nil, completion.Usage, fmt.Errorf("extract methods: decode response: %w", err)
	}
	return resp.Methods, completion.Usage, nil
}

type observationsResponse struct {
	Observations []ObservationContent `json:"observations"`
}

func (g genaiExtractor) ExtractObservations(ctx context.Context, paperContent string, methods []methodRef) ([]ObservationContent, service.Usage, error) {
	methodsJSON, err := json.Marshal(methods)
	if err != nil {
		return nil, service.Usage{}, fmt.Errorf("extract observations: marshal methods: %w", err)
	}
	req := service.CompletionRequest{
		SystemPrompt: observationsSystemPrompt,
		UserPrompt:   fmt.Sprintf("PAPER:\n%s\n\nMETHODS:\n%s", paperContent, methodsJSON),
		SchemaName:   "observations_extraction_result",
	}
	completion, err := g.LLM.Complete(ctx, req)
	if err != nil {
		return nil, service.Usage{}, fmt.Errorf("extract observations: %w", err)
	}
	var resp observationsResponse
	if err := json.Unmarshal([]byte(completion.Text), &resp); err != nil {
		return nil, completion.Usage, fmt.Errorf("extract observations: decode response: %w", err)
	}
	return resp.Observations, completion.Usage, nil
}

const claimsSystemPrompt = `Extract the core scientific claims from the provided research paper.

Core claims are the main contributions a paper makes: new relationships between, or new understanding of, phenomena. They are typically stated in the title, abstract, and conclusion/discussion section. A news article on this paper would list these claims as what it is about.

Claims are conclusive, interpretive, and often generalizable. Authors often signal one by saying the paper "demonstrates," "reveals," or "suggests" something.

Do not extract empirical observations (e.g. "70% of patients showed X") or statements about future work ("this needs further investigation") — those are not claims.

For rephrased_claim, write a standalone summary understandable without the paper's context: the phenomena investigated and the proposed relationship between or novel understanding of them.

Respond with JSON: {"claims": [{"source_elements": [{"excerpt": "..."}], "rephrased_claim": "...", "original_claim_by_paper": true, "reasoning": "..."}]}`

const methodsSystemPrompt = `Extract the study designs or core methods from the provided research paper, if any. Return an empty list if this is not empirical work.

For most empirical papers this is the study design used to produce the main results. Occasionally a paper introduces a new method as its core contribution — set novel_method to true in that rare case, false otherwise.

Focus on empirical research designs; ignore purely theoretical or review content, literature review methodology, and statistical analysis plans that don't define the core experimental design.

For method_summary, write a standalone rephrasing of the method's general setup (e.g. "Between-subjects design testing the effect of A on B"), understandable without the paper's context.

Respond with JSON: {"methods": [{"source_elements": [{"excerpt": "..."}], "structured_method_description": {"study_design_or_method_class": "...", "study_subject": "...", "manipulated_conditions": "...", "observed_outcomes": "...", "control_or_reference_point": "..."}, "method_summary": "...", "novel_method": false}]}`

const observationsSystemPrompt = `Extract empirical observations from the provided research paper.

Observations are concrete empirical findings resulting from applying the methods listed below — factual reports of what was measured, detected, or found, not interpretations or claims. Null results and "no effect" findings count.

For each observation, set method_reference to the id of the method (from the METHODS list provided) that produced it or provided its context. Use the ids exactly as given; do not invent new ones.

Do not extract descriptive statistics, sample descriptions, interpretations, or background/citations.

Respond with JSON: {"observations": [{"source_elements": [{"excerpt": "..."}], "method_reference": "...", "observation_summary": "...", "observation_type": "...", "quantitative_details": "..."}]}`
