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

// c2cThreshold is the default cosine similarity cutoff for candidate
// claim-to-claim pairs (spec §4.5 Phase B, τ_c2c).
const c2cThreshold = 0.35

// c2cMaxConcurrency bounds in-flight pairwise classification calls.
const c2cMaxConcurrency = 150

// pairwiseLabel mirrors the six-way classification the LLM returns for
// one claim pair; it never sees the claims' IDs, only their text.
type pairwiseLabel string

const (
	pairwiseNone          pairwiseLabel = "none"
	pairwiseDuplicate     pairwiseLabel = "duplicate"
	pairwiseVariant       pairwiseLabel = "variant"
	pairwiseContradiction pairwiseLabel = "contradiction"
	pairwisePremise1to2   pairwiseLabel = "premise_1_to_2"
	pairwisePremise2to1   pairwiseLabel = "premise_2_to_1"
)

type pairwiseResult struct {
	LinkType  pairwiseLabel `json:"link_type"`
	Reasoning string        `json:"reasoning"`
}

// runClaimToClaim classifies every candidate pair over input (claims not
// yet in progress.c2cDone) against the full library claim pool, returns
// the links to persist plus the set of input-claim IDs it processed.
func runClaimToClaim(ctx context.Context, llm service.LLMClient, input, library []claimWithEmbedding, done map[string]struct{}) ([]*entity.ExtractLink, []string, service.Usage, error) {
	var pending []claimWithEmbedding
	for _, c := range input {
		if _, skip := done[c.ID]; !skip {
			pending = append(pending, c)
		}
	}
	if len(pending) == 0 {
		return nil, nil, service.Usage{}, nil
	}

	pairs := buildCandidatePairs(pending, library, c2cThreshold)

	var (
		mu        sync.Mutex
		links     []*entity.ExtractLink
		usage     service.Usage
		processed = make(map[string]struct{}, len(pending))
	)
	for _, c := range pending {
		processed[c.ID] = struct{}{}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c2cMaxConcurrency)

	for _, pair := range pairs {
		pair := pair
		g.Go(func() error {
			result, callUsage := classifyPair(gctx, llm, pair)
			mu.Lock()
			usage.Add(callUsage)
			if link := labelToLink(pair, result); link != nil {
				links = append(links, link)
			}
			mu.Unlock()
			return nil
		})
	}
	// classifyPair never returns an error (LLM failures degrade to "none"
	// per spec §7) and every goroutine returns nil, so g.Wait() returns nil.
	if err := g.Wait(); err != nil {
		return nil, nil, usage, fmt.Errorf("claim2claim: %w", err)
	}

	doneIDs := make([]string, 0, len(processed))
	for id := range processed {
		doneIDs = append(doneIDs, id)
	}
	return links, doneIDs, usage, nil
}

// classifyPair issues the single LLM call for one candidate pair. On
// failure it returns "none" so the pair contributes no link; neither it
// nor runClaimToClaim logs the failure.
func classifyPair(ctx context.Context, llm service.LLMClient, pair candidatePair) (pairwiseResult, service.Usage) {
	req := service.CompletionRequest{
		SystemPrompt: classifyPairSystemPrompt,
		UserPrompt:   fmt.Sprintf("Claim 1: %s\n\nClaim 2: %s", pair.AText, pair.BText),
		SchemaName:   "pairwise_link_result",
	}
	completion, err := llm.Complete(ctx, req)
	if err != nil {
		return pairwiseResult{LinkType: pairwiseNone}, service.Usage{}
	}
	var result pairwiseResult
	if err := json.Unmarshal([]byte(completion.Text), &result); err != nil {
		return pairwiseResult{LinkType: pairwiseNone}, completion.Usage
	}
	return result, completion.Usage
}

// labelToLink maps a pairwise classification onto a directed or
// symmetric ExtractLink, or nil for "none". IDs are parsed back in by
// the caller from pair.AID/BID — the LLM never saw them.
func labelToLink(pair candidatePair, result pairwiseResult) *entity.ExtractLink {
	link := &entity.ExtractLink{
		Category:  valueobject.LinkCategoryClaimToClaim,
		Reasoning: result.Reasoning,
	}
	switch result.LinkType {
	case pairwiseDuplicate:
		link.Type = valueobject.LinkTypeDuplicate
	case pairwiseVariant:
		link.Type = valueobject.LinkTypeVariant
	case pairwiseContradiction:
		link.Type = valueobject.LinkTypeContradiction
	case pairwisePremise1to2:
		link.Type = valueobject.LinkTypePremise
	case pairwisePremise2to1:
		link.Type = valueobject.LinkTypePremise
	default:
		return nil
	}

	fromStr, toStr := pair.AID, pair.BID
	if result.LinkType == pairwisePremise2to1 {
		fromStr, toStr = pair.BID, pair.AID
	}
	from, err := parseUUID(fromStr)
	if err != nil {
		return nil
	}
	to, err := parseUUID(toStr)
	if err != nil {
		return nil
	}
	link.FromID, link.ToID = from, to
	link.Normalize()
	return link
}

const classifyPairSystemPrompt = `Determine if two scientific claims have a meaningful relationship.

Classify the relationship as one of:
- none: no meaningful relationship
- duplicate: the claims say the same thing in different words
- variant: the claims address the exact same phenomenon or relationship but differ in some detail of its nature; two variant claims can both be true at once
- contradiction: the claims directly disagree and cannot both be true
- premise_1_to_2: claim 1 is a logical premise or foundation for claim 2
- premise_2_to_1: claim 2 is a logical premise or foundation for claim 1

Respond with JSON: {"link_type": "...", "reasoning": "..."}`
