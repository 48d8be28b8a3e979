package linking

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sogos/paperlink/internal/domain/entity"
	"github.com/sogos/paperlink/internal/domain/service"
	"github.com/sogos/paperlink/internal/domain/valueobject"
)

// c2oMaxConcurrency bounds in-flight evidence-linking calls.
const c2oMaxConcurrency = 100

type evidenceLink struct {
	ObservationID string `json:"observation_id"`
	LinkType      string `json:"link_type"`
	Reasoning     string `json:"reasoning"`
}

type evidenceLinkingResponse struct {
	Links []evidenceLink `json:"links"`
}

// runClaimToObservation implements Phase C: for every unprocessed input
// claim, preselect candidate observations, ask the LLM for evidential
// links, validate endpoints against validObsIDs, and return the
// resulting directional links plus processed claim IDs.
func runClaimToObservation(ctx context.Context, llm service.LLMClient, log service.Logger, input []claimWithEmbedding, m *materials, done map[string]struct{}) ([]*entity.ExtractLink, []string, service.Usage, error) {
	var pending []claimWithEmbedding
	for _, c := range input {
		if _, skip := done[c.ID]; !skip {
			pending = append(pending, c)
		}
	}
	if len(pending) == 0 {
		return nil, nil, service.Usage{}, nil
	}

	var (
		mu        sync.Mutex
		links     []*entity.ExtractLink
		usage     service.Usage
		processed []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c2oMaxConcurrency)

	for _, claim := range pending {
		claim := claim
		g.Go(func() error {
			claimLinks, claimUsage := linkClaimToObservations(gctx, llm, log, claim, m)
			mu.Lock()
			usage.Add(claimUsage)
			links = append(links, claimLinks...)
			processed = append(processed, claim.ID)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, usage, fmt.Errorf("claim2observation: %w", err)
	}

	return links, processed, usage, nil
}

// linkClaimToObservations runs preselection + the single evidence-linking
// call for one claim. Per-call failures degrade to "no links for this
// claim" (spec §7) rather than propagating.
func linkClaimToObservations(ctx context.Context, llm service.LLMClient, log service.Logger, claim claimWithEmbedding, m *materials) ([]*entity.ExtractLink, service.Usage) {
	var usage service.Usage

	methodIDs, selectUsage := selectMethods(ctx, llm, claim.Text, m.Methods)
	usage.Add(selectUsage)

	candidates := preselectObservations(methodIDs, claim.PaperID, m)
	if len(candidates) == 0 {
		return nil, usage
	}

	req := service.CompletionRequest{
		SystemPrompt: linkEvidenceSystemPrompt,
		UserPrompt:   formatEvidencePrompt(claim, candidates, m.Methods),
		SchemaName:   "evidence_linking_result",
	}
	completion, err := llm.Complete(ctx, req)
	if err != nil {
		log.Warn("evidence linking call failed", "claim_id", claim.ID, "error", err)
		return nil, usage
	}
	usage.Add(completion.Usage)

	var resp evidenceLinkingResponse
	if err := json.Unmarshal([]byte(completion.Text), &resp); err != nil {
		log.Warn("evidence linking response malformed", "claim_id", claim.ID, "error", err)
		return nil, usage
	}

	claimID, err := parseUUID(claim.ID)
	if err != nil {
		return nil, usage
	}

	seen := make(map[[2]string]struct{})
	var links []*entity.ExtractLink
	for _, item := range resp.Links {
		if _, valid := m.ValidObsIDs[item.ObservationID]; !valid {
			log.Warn("dropping evidence link to invalid observation id", "claim_id", claim.ID, "observation_id", item.ObservationID)
			continue
		}
		obsID, err := parseUUID(item.ObservationID)
		if err != nil {
			log.Warn("dropping evidence link with non-UUID observation id", "claim_id", claim.ID, "observation_id", item.ObservationID)
			continue
		}
		linkType, ok := parseEvidenceLinkType(item.LinkType)
		if !ok {
			continue
		}
		key := [2]string{claim.ID, item.ObservationID}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		links = append(links, &entity.ExtractLink{
			FromID:    claimID,
			ToID:      obsID,
			Category:  valueobject.LinkCategoryClaimToObservation,
			Type:      linkType,
			Reasoning: item.Reasoning,
		})
	}
	return links, usage
}

func parseEvidenceLinkType(s string) (valueobject.LinkType, bool) {
	switch s {
	case "supports":
		return valueobject.LinkTypeSupports, true
	case "contradicts":
		return valueobject.LinkTypeContradicts, true
	case "contextualizes":
		return valueobject.LinkTypeContextualizes, true
	default:
		return "", false
	}
}

// preselectObservations builds the candidate set: observations from
// selected methods, plus all observations from the claim's own paper
// (always included regardless of method selection).
func preselectObservations(methodIDs []string, claimPaperID string, m *materials) []*entity.Extract {
	seen := make(map[string]struct{})
	var candidates []*entity.Extract

	add := func(obs []*entity.Extract) {
		for _, o := range obs {
			if _, dup := seen[o.ID.String()]; dup {
				continue
			}
			seen[o.ID.String()] = struct{}{}
			candidates = append(candidates, o)
		}
	}

	for _, methodID := range methodIDs {
		add(m.ObservationsByMethod[methodID])
	}
	add(m.ObservationsByPaper[claimPaperID])

	return candidates
}

type evidenceObservation struct {
	ID      string `json:"id"`
	Content map[string]any `json:"content"`
}

type evidenceMethodGroup struct {
	MethodSummary string                `json:"method_summary,omitempty"`
	Observations  []evidenceObservation `json:"observations"`
}

// formatEvidencePrompt groups candidate observations into same-paper vs
// general-literature buckets, then by producing method, mirroring the
// original system's prompt shape so method context travels with each
// observation group.
func formatEvidencePrompt(claim claimWithEmbedding, candidates []*entity.Extract, methods []*entity.Extract) string {
	samePaper := map[string][]*entity.Extract{}
	general := map[string][]*entity.Extract{}
	methodSummaries := make(map[string]string, len(methods))
	for _, mth := range methods {
		methodSummaries[mth.ID.String()] = mth.MethodSummary()
	}

	for _, obs := range candidates {
		bucket := general
		if obs.PaperID.String() == claim.PaperID {
			bucket = samePaper
		}
		methodID := obs.MethodReference()
		bucket[methodID] = append(bucket[methodID], obs)
	}

	group := func(bucket map[string][]*entity.Extract) []evidenceMethodGroup {
		groups := make([]evidenceMethodGroup, 0, len(bucket))
		for methodID, obsList := range bucket {
			observations := make([]evidenceObservation, 0, len(obsList))
			for _, o := range obsList {
				content := make(map[string]any, len(o.Content))
				for k, v := range o.Content {
					if k == "source_elements" || k == "method_reference" {
						continue
					}
					content[k] = v
				}
				observations = append(observations, evidenceObservation{ID: o.ID.String(), Content: content})
			}
			groups = append(groups, evidenceMethodGroup{
				MethodSummary: methodSummaries[methodID],
				Observations:  observations,
			})
		}
		return groups
	}

	payload := map[string]any{}
	if len(samePaper) > 0 {
		payload["observations_from_same_paper"] = group(samePaper)
	}
	if len(general) > 0 {
		payload["observations_from_general_literature"] = group(general)
	}
	observationsJSON, _ := json.Marshal(payload)

	return fmt.Sprintf("Claim: %s\n\nObservations:\n%s", claim.Text, observationsJSON)
}

const linkEvidenceSystemPrompt = `Identify evidential relationships between a scientific claim and a set of candidate observations (empirical findings, measurements, experimental results) drawn from a research library.

- supports: the observation provides empirical evidence supporting the claim; it is a specific instance of the claim's general assertion
- contradicts: the observation provides empirical evidence against the claim
- contextualizes: the observation provides relevant context (scope, conditions, related findings) without directly supporting or contradicting the claim

Only create links where there is a clear evidential relationship. Use the observation ids exactly as provided.

Respond with JSON: {"links": [{"observation_id": "...", "link_type": "...", "reasoning": "..."}]}`
