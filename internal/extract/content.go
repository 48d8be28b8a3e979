package extract

import "encoding/json"

// SourceReference points back at the region of the parsed paper an
// extracted element was drawn from. The original TEI-based extractors
// referenced xml:id anchors; PARSE_PAPER here produces flat text, so
// Excerpt carries a short verbatim snippet instead (spec §1's PDF→TEI
// internals stay out of scope, so there is no xml:id to point at).
type SourceReference struct {
	Excerpt string `json:"excerpt"`
}

// ClaimContent is the claims extractor's output shape, preserving the
// original content-key names (rephrased_claim, original_claim_by_paper,
// reasoning) so downstream consumers reading Extract.Content see the
// same fields regardless of which extractor produced them.
type ClaimContent struct {
	SourceElements       []SourceReference `json:"source_elements"`
	RephrasedClaim       string            `json:"rephrased_claim"`
	OriginalClaimByPaper bool              `json:"original_claim_by_paper"`
	Reasoning            string            `json:"reasoning"`
}

// StructuredMethodDescription standardizes the study design being
// described, mirroring the original extractor's nested schema.
type StructuredMethodDescription struct {
	StudyDesignOrMethodClass string `json:"study_design_or_method_class"`
	StudySubject             string `json:"study_subject"`
	ManipulatedConditions    string `json:"manipulated_conditions"`
	ObservedOutcomes         string `json:"observed_outcomes"`
	ControlOrReferencePoint  string `json:"control_or_reference_point"`
}

// MethodContent is the methods extractor's output shape.
type MethodContent struct {
	SourceElements              []SourceReference           `json:"source_elements"`
	StructuredMethodDescription StructuredMethodDescription  `json:"structured_method_description"`
	MethodSummary               string                       `json:"method_summary"`
	NovelMethod                 bool                         `json:"novel_method"`
}

// ObservationContent is the observations extractor's output shape.
// MethodReference holds the ID (assigned by Handler before this
// extractor runs) of the method extract that produced it.
type ObservationContent struct {
	SourceElements       []SourceReference `json:"source_elements"`
	MethodReference      string            `json:"method_reference"`
	ObservationSummary   string            `json:"observation_summary"`
	ObservationType      string            `json:"observation_type"`
	QuantitativeDetails  string            `json:"quantitative_details,omitempty"`
}

func toContentMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
