// Package linking implements the LINK_LIBRARY handler: candidate
// generation over claim embeddings, concurrent pairwise LLM evaluation,
// per-phase persistence, and resume-on-retry progress tracking.
package linking

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sogos/paperlink/internal/domain/entity"
	"github.com/sogos/paperlink/internal/domain/repository"
	"github.com/sogos/paperlink/internal/domain/service"
	worker "github.com/sogos/paperlink/internal/domain/worker"
)

// Handler is the LINK_LIBRARY job handler.
type Handler struct {
	Jobs      repository.JobStore
	Libraries repository.LibraryRepository
	Extracts  repository.ExtractRepository
	Vectors   repository.ExtractVectorRepository
	Links     repository.ExtractLinkRepository
	LLM       service.LLMClient
	Logger    service.Logger
}

// Handle runs Phases A-D for one LINK_LIBRARY job.
func (h *Handler) Handle(ctx context.Context, job *entity.Job) (map[string]any, error) {
	payload, err := worker.DecodePayload(job.Kind, job.Payload, job.ID)
	if err != nil {
		return nil, err
	}
	p := payload.(worker.LinkLibraryPayload)
	log := h.Logger.With("job_id", job.ID, "library_id", p.LibraryID)

	paperIDs, err := h.Libraries.ListPaperIDs(ctx, p.LibraryID)
	if err != nil {
		return nil, fmt.Errorf("link_library: list library papers: %w", err)
	}

	m, err := materialize(ctx, p.LibraryID, paperIDs, p.Cutoff, h.Extracts, h.Vectors)
	if err != nil {
		return nil, fmt.Errorf("link_library: materialize: %w", err)
	}
	log.Info("materialized linking inputs", "input_claims", len(m.Input), "library_claims", len(m.LibraryClaims))
	if dropped := len(m.ValidClaimIDs) - len(m.LibraryClaims); dropped > 0 {
		log.Warn("dropped claims without an embedding", "count", dropped)
	}

	prog := progressFromMap(job.Progress)

	c2cLinks, c2cDoneIDs, c2cUsage, err := runClaimToClaim(ctx, h.LLM, m.Input, m.LibraryClaims, prog.c2cDoneSet())
	if err != nil {
		return nil, fmt.Errorf("link_library: phase B: %w", err)
	}
	c2cValid := validateLinks(c2cLinks, m.ValidClaimIDs, m.ValidClaimIDs, log)
	if err := h.persistLinks(ctx, c2cValid, job.ID); err != nil {
		return nil, fmt.Errorf("link_library: persist phase B links: %w", err)
	}
	prog.C2CDone = mergeIDs(prog.C2CDone, c2cDoneIDs)
	if err := h.Jobs.PutProgress(ctx, job.ID, claimant(job), prog.toMap()); err != nil {
		log.Warn("checkpoint after phase B failed", "error", err)
	}

	c2oLinks, c2oDoneIDs, c2oUsage, err := runClaimToObservation(ctx, h.LLM, log, m.Input, m, prog.c2oDoneSet())
	if err != nil {
		return nil, fmt.Errorf("link_library: phase C: %w", err)
	}
	c2oValid := validateLinks(c2oLinks, m.ValidClaimIDs, m.ValidObsIDs, log)
	if err := h.persistLinks(ctx, c2oValid, job.ID); err != nil {
		return nil, fmt.Errorf("link_library: persist phase C links: %w", err)
	}
	prog.C2ODone = mergeIDs(prog.C2ODone, c2oDoneIDs)
	if err := h.Jobs.PutProgress(ctx, job.ID, claimant(job), prog.toMap()); err != nil {
		log.Warn("checkpoint after phase C failed", "error", err)
	}

	result := worker.LinkLibraryResult{
		LibraryID:       p.LibraryID,
		ClaimsProcessed: len(m.Input),
		C2CLinksFound:   len(c2cLinks),
		C2CLinksCreated: len(c2cValid),
		C2OLinksFound:   len(c2oLinks),
		C2OLinksCreated: len(c2oValid),
		Status:          "complete",
		Usage: worker.UsageReport{
			C2C: toServiceUsageReport(c2cUsage),
			C2O: toServiceUsageReport(c2oUsage),
		},
	}
	log.Info("link_library complete",
		"c2c_links_created", result.C2CLinksCreated,
		"c2o_links_created", result.C2OLinksCreated,
	)
	return worker.EncodeResult(result)
}

// validateLinks drops any link whose endpoint is not in the legal write
// surface (fromSet for FromID, toSet for ToID), logging each drop: this
// is the defense against hallucinated IDs required by spec §4.5/§7.
func validateLinks(links []*entity.ExtractLink, fromSet, toSet map[string]struct{}, log service.Logger) []*entity.ExtractLink {
	valid := make([]*entity.ExtractLink, 0, len(links))
	for _, link := range links {
		if _, ok := fromSet[link.FromID.String()]; !ok {
			log.Warn("dropping link with invalid from_id", "from_id", link.FromID)
			continue
		}
		if _, ok := toSet[link.ToID.String()]; !ok {
			log.Warn("dropping link with invalid to_id", "to_id", link.ToID)
			continue
		}
		valid = append(valid, link)
	}
	return valid
}

func (h *Handler) persistLinks(ctx context.Context, links []*entity.ExtractLink, jobID uuid.UUID) error {
	if len(links) == 0 {
		return nil
	}
	for _, link := range links {
		link.ID = uuid.New()
		link.JobID = jobID
	}
	return h.Links.CreateBatch(ctx, links)
}

func mergeIDs(existing, fresh []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(fresh))
	out := make([]string, 0, len(existing)+len(fresh))
	for _, id := range existing {
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	for _, id := range fresh {
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// claimant returns the worker ID that currently owns job, used to
// authorize PutProgress calls mid-handler.
func claimant(job *entity.Job) string {
	if job.ClaimedBy == nil {
		return ""
	}
	return *job.ClaimedBy
}

func toServiceUsageReport(u service.Usage) worker.ServiceUsage {
	return worker.ServiceUsage{
		Calls:        u.Calls,
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
		CostUSD:      u.CostUSD,
	}
}
