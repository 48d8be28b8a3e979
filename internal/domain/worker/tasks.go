package worker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sogos/paperlink/internal/domain/valueobject"
)

// This file replaces a dictionary-of-maps payload contract with a sealed
// set of per-kind payload/result types. Each handler decodes its job's
// payload with DecodePayload, which matches on Job.Kind and returns an
// error for a kind with no case here.

// ParsePaperPayload is the PARSE_PAPER job payload.
type ParsePaperPayload struct {
	PaperID uuid.UUID `json:"paper_id"`
}

// ParsePaperResult is the PARSE_PAPER job result.
type ParsePaperResult struct {
	PaperID          uuid.UUID `json:"paper_id"`
	ParsedPath       string    `json:"parsed_path"`
	TEISize          int       `json:"tei_size"`
	FiguresExtracted int       `json:"figures_extracted"`
	Title            string    `json:"title"`
	ReferencesCount  int       `json:"references_count"`
}

// ExtractElementsPayload is the EXTRACT_ELEMENTS job payload. JobID is
// injected by the worker before dispatch, not supplied by the caller of
// Enqueue.
type ExtractElementsPayload struct {
	PaperID uuid.UUID `json:"paper_id"`
	JobID   uuid.UUID `json:"job_id"`
}

// ExtractElementsResult is the EXTRACT_ELEMENTS job result. Skipped is
// set when a prior attempt under the same job_id already produced
// extracts (spec §4.3/§6 idempotent-on-retry); every count is zero in
// that case since nothing ran. ObservationsSkipped is true when the
// paper had no methods, so observation extraction never ran for it
// (spec §4.3's "runs three extractors").
type ExtractElementsResult struct {
	PaperID             uuid.UUID `json:"paper_id"`
	JobID               uuid.UUID `json:"job_id"`
	ClaimsCount         int       `json:"claims_count"`
	MethodsCount        int       `json:"methods_count"`
	ObservationsCount   int       `json:"observations_count"`
	ObservationsSkipped bool      `json:"observations_skipped"`
	Skipped             bool      `json:"skipped,omitempty"`
}

// LinkLibraryPayload is the LINK_LIBRARY job payload. Cutoff is nil for
// a library's first linking run. JobID is injected by the worker.
type LinkLibraryPayload struct {
	LibraryID uuid.UUID  `json:"library_id"`
	Cutoff    *time.Time `json:"cutoff,omitempty"`
	JobID     uuid.UUID  `json:"job_id"`
}

// LinkLibraryResult is the LINK_LIBRARY job result.
type LinkLibraryResult struct {
	LibraryID       uuid.UUID   `json:"library_id"`
	ClaimsProcessed int         `json:"claims_processed"`
	C2CLinksFound   int         `json:"c2c_links_found"`
	C2CLinksCreated int         `json:"c2c_links_created"`
	C2OLinksFound   int         `json:"c2o_links_found"`
	C2OLinksCreated int         `json:"c2o_links_created"`
	Status          string      `json:"status"`
	Usage           UsageReport `json:"usage"`
}

// UsageReport carries the token/cost accounting supplemented onto
// LINK_LIBRARY results (spec §10): separate totals per linking phase
// since they use different prompts and candidate volumes.
type UsageReport struct {
	C2C ServiceUsage `json:"c2c_usage"`
	C2O ServiceUsage `json:"c2o_usage"`
}

// ServiceUsage mirrors service.Usage in JSON form so it round-trips
// through the job store's schemaless result map without an import cycle
// back into the service package.
type ServiceUsage struct {
	Calls        int     `json:"total_calls"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost"`
}

// DecodePayload decodes a job's schemaless payload map into the typed
// payload struct for kind, injecting jobID under the "job_id" key first
// for the kinds that require it.
func DecodePayload(kind valueobject.JobKind, payload map[string]any, jobID uuid.UUID) (any, error) {
	withJobID := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		withJobID[k] = v
	}
	if kind == valueobject.JobKindExtractElements || kind == valueobject.JobKindLinkLibrary {
		withJobID["job_id"] = jobID.String()
	}

	raw, err := json.Marshal(withJobID)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	switch kind {
	case valueobject.JobKindParsePaper:
		var p ParsePaperPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode parse_paper payload: %w", err)
		}
		return p, nil
	case valueobject.JobKindExtractElements:
		var p ExtractElementsPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode extract_elements payload: %w", err)
		}
		return p, nil
	case valueobject.JobKindLinkLibrary:
		var p LinkLibraryPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode link_library payload: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown job kind: %s", kind)
	}
}

// EncodeResult marshals a typed result struct back into the schemaless
// map the job store persists.
func EncodeResult(result any) (map[string]any, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode result to map: %w", err)
	}
	return m, nil
}
