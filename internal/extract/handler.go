// Package extract implements the EXTRACT_ELEMENTS handler: three
// LLM-backed extractors (claims, methods, observations) run over a
// paper's parsed text, their output is persisted as Extracts (plus
// embeddings for claims), and the coordination layer is invoked once per
// library the paper belongs to.
package extract

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sogos/paperlink/internal/coordination"
	"github.com/sogos/paperlink/internal/domain/entity"
	"github.com/sogos/paperlink/internal/domain/repository"
	"github.com/sogos/paperlink/internal/domain/service"
	"github.com/sogos/paperlink/internal/domain/valueobject"
	worker "github.com/sogos/paperlink/internal/domain/worker"
	"github.com/sogos/paperlink/internal/infrastructure/storage"
)

// Handler is the EXTRACT_ELEMENTS job handler.
type Handler struct {
	Papers       repository.PaperRepository
	Libraries    repository.LibraryRepository
	Extracts     repository.ExtractRepository
	Vectors      repository.ExtractVectorRepository
	Storage      storage.StorageAdapter
	Claims       ClaimExtractor
	Methods      MethodExtractor
	Observations ObservationExtractor
	Embedder     service.LLMClient
	Coordinator  *coordination.Coordinator
	Logger       service.Logger
}

// Handle runs the three extractors over paper, persists their output,
// and invokes coordination for every library the paper belongs to.
func (h *Handler) Handle(ctx context.Context, job *entity.Job) (map[string]any, error) {
	payload, err := worker.DecodePayload(job.Kind, job.Payload, job.ID)
	if err != nil {
		return nil, err
	}
	p := payload.(worker.ExtractElementsPayload)
	log := h.Logger.With("job_id", job.ID, "paper_id", p.PaperID)

	alreadyRan, err := h.Extracts.ExistsForJob(ctx, p.JobID)
	if err != nil {
		return nil, fmt.Errorf("extract_elements: idempotency check: %w", err)
	}
	if alreadyRan {
		log.Info("extract_elements skipped: already ran")
		return worker.EncodeResult(worker.ExtractElementsResult{
			PaperID: p.PaperID,
			JobID:   p.JobID,
			Skipped: true,
		})
	}

	paper, err := h.Papers.Get(ctx, p.PaperID)
	if err != nil {
		return nil, fmt.Errorf("extract_elements: load paper: %w", err)
	}
	if !paper.IsParsed() {
		return nil, fmt.Errorf("extract_elements: paper %s has not been parsed", p.PaperID)
	}

	text, err := h.Storage.GetContent(ctx, *paper.ParsedPath)
	if err != nil {
		return nil, fmt.Errorf("extract_elements: fetch parsed text: %w", err)
	}
	paperContent := string(text)

	claims, claimsUsage, err := h.Claims.ExtractClaims(ctx, paper.Title, paperContent)
	if err != nil {
		return nil, fmt.Errorf("extract_elements: claims: %w", err)
	}
	claimExtracts, err := toExtracts(claims, p.PaperID, p.JobID, valueobject.ExtractTypeClaim)
	if err != nil {
		return nil, fmt.Errorf("extract_elements: encode claims: %w", err)
	}
	if err := h.Extracts.CreateBatch(ctx, claimExtracts); err != nil {
		return nil, fmt.Errorf("extract_elements: persist claims: %w", err)
	}
	if err := h.embedClaims(ctx, claimExtracts); err != nil {
		return nil, fmt.Errorf("extract_elements: embed claims: %w", err)
	}

	methods, methodsUsage, err := h.Methods.ExtractMethods(ctx, paperContent)
	if err != nil {
		return nil, fmt.Errorf("extract_elements: methods: %w", err)
	}
	methodExtracts, err := toExtracts(methods, p.PaperID, p.JobID, valueobject.ExtractTypeMethod)
	if err != nil {
		return nil, fmt.Errorf("extract_elements: encode methods: %w", err)
	}
	if err := h.Extracts.CreateBatch(ctx, methodExtracts); err != nil {
		return nil, fmt.Errorf("extract_elements: persist methods: %w", err)
	}

	var (
		observationExtracts []*entity.Extract
		observationsSkipped = len(methodExtracts) == 0
	)
	if !observationsSkipped {
		refs := make([]methodRef, 0, len(methodExtracts))
		for _, m := range methodExtracts {
			refs = append(refs, methodRef{ID: m.ID.String(), Summary: m.MethodSummary()})
		}
		observations, obsUsage, err := h.Observations.ExtractObservations(ctx, paperContent, refs)
		if err != nil {
			return nil, fmt.Errorf("extract_elements: observations: %w", err)
		}
		observationExtracts, err = toExtracts(observations, p.PaperID, p.JobID, valueobject.ExtractTypeObservation)
		if err != nil {
			return nil, fmt.Errorf("extract_elements: encode observations: %w", err)
		}
		if err := h.Extracts.CreateBatch(ctx, observationExtracts); err != nil {
			return nil, fmt.Errorf("extract_elements: persist observations: %w", err)
		}
		log.Debug("observations extracted", "usage_calls", obsUsage.Calls)
	}

	log.Info("extraction complete",
		"claims", len(claimExtracts),
		"methods", len(methodExtracts),
		"observations", len(observationExtracts),
		"usage_calls", claimsUsage.Calls+methodsUsage.Calls,
	)

	if err := h.triggerCoordination(ctx, p.PaperID, p.JobID); err != nil {
		log.Warn("coordination trigger failed", "error", err)
	}

	return worker.EncodeResult(worker.ExtractElementsResult{
		PaperID:             p.PaperID,
		JobID:               p.JobID,
		ClaimsCount:         len(claimExtracts),
		MethodsCount:        len(methodExtracts),
		ObservationsCount:   len(observationExtracts),
		ObservationsSkipped: observationsSkipped,
	})
}

// triggerCoordination invokes MaybeQueueLinkLibrary once per library the
// paper belongs to, passing this job's ID so coordination's
// "nothing processing" test excludes the run that's calling it.
func (h *Handler) triggerCoordination(ctx context.Context, paperID, jobID uuid.UUID) error {
	libraryIDs, err := h.Libraries.ListLibraryIDsForPaper(ctx, paperID)
	if err != nil {
		return fmt.Errorf("list libraries for paper: %w", err)
	}
	for _, libraryID := range libraryIDs {
		if err := h.Coordinator.MaybeQueueLinkLibrary(ctx, libraryID, &jobID); err != nil {
			return fmt.Errorf("library %s: %w", libraryID, err)
		}
	}
	return nil
}

func (h *Handler) embedClaims(ctx context.Context, claims []*entity.Extract) error {
	if len(claims) == 0 {
		return nil
	}
	texts := make([]string, len(claims))
	for i, c := range claims {
		texts[i] = c.RephrasedClaim()
	}
	embeddings, err := h.Embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}
	if len(embeddings) != len(claims) {
		return fmt.Errorf("embedder returned %d vectors for %d claims", len(embeddings), len(claims))
	}
	vectors := make([]*entity.ExtractVector, len(claims))
	for i, c := range claims {
		vectors[i] = &entity.ExtractVector{ExtractID: c.ID, Embedding: embeddings[i]}
	}
	return h.Vectors.CreateBatch(ctx, vectors)
}

// toExtracts converts a typed content slice into persistable Extract
// rows, assigning each a fresh ID before any cross-referencing (e.g.
// observations citing method IDs) needs it.
func toExtracts[T any](items []T, paperID, jobID uuid.UUID, extractType valueobject.ExtractType) ([]*entity.Extract, error) {
	out := make([]*entity.Extract, 0, len(items))
	for _, item := range items {
		content, err := toContentMap(item)
		if err != nil {
			return nil, err
		}
		out = append(out, &entity.Extract{
			ID:      uuid.New(),
			PaperID: paperID,
			JobID:   jobID,
			Type:    extractType,
			Content: content,
		})
	}
	return out, nil
}
