// Package parse implements the PARSE_PAPER handler: a thin PDF probe
// that stands in for a full PDF→TEI pipeline (explicitly out of scope,
// spec §1), producing just enough structure — a plain-text blob and a
// handful of counts — for EXTRACT_ELEMENTS to work from.
package parse

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/sogos/paperlink/internal/domain/entity"
	"github.com/sogos/paperlink/internal/domain/repository"
	"github.com/sogos/paperlink/internal/domain/service"
	"github.com/sogos/paperlink/internal/domain/valueobject"
	worker "github.com/sogos/paperlink/internal/domain/worker"
	"github.com/sogos/paperlink/internal/infrastructure/storage"
)

// PaperParser turns raw PDF bytes into a best-effort parsed rendition.
// PDFProbeParser is the only implementation today; a production system
// would swap this seam for a real GROBID client without touching Handler.
type PaperParser interface {
	Parse(raw []byte) (ParsedPaper, error)
}

// ParsedPaper is what a PaperParser extracts from a PDF.
type ParsedPaper struct {
	Text            string
	Title           string
	PageCount       int
	ReferencesCount int
}

// Handler is the PARSE_PAPER job handler.
type Handler struct {
	Papers  repository.PaperRepository
	Jobs    repository.JobStore
	Storage storage.StorageAdapter
	Parser  PaperParser
	Logger  service.Logger
}

// Handle downloads the paper's PDF bytes, probes them for a plain-text
// rendition and coarse structural counts, stores the result at
// <storage_path>.tei.txt, and enqueues EXTRACT_ELEMENTS.
//
// If ParsedPath is already set, re-running re-derives and overwrites the
// same content (spec §5), and enqueues another EXTRACT_ELEMENTS job.
func (h *Handler) Handle(ctx context.Context, job *entity.Job) (map[string]any, error) {
	payload, err := worker.DecodePayload(job.Kind, job.Payload, job.ID)
	if err != nil {
		return nil, err
	}
	p := payload.(worker.ParsePaperPayload)
	log := h.Logger.With("job_id", job.ID, "paper_id", p.PaperID)

	paper, err := h.Papers.Get(ctx, p.PaperID)
	if err != nil {
		return nil, fmt.Errorf("parse_paper: load paper: %w", err)
	}

	raw, err := h.Storage.GetContent(ctx, paper.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("parse_paper: fetch bytes: %w", err)
	}

	probe, err := h.Parser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse_paper: probe pdf: %w", err)
	}

	parsedPath := paper.StoragePath + ".tei.txt"
	if err := h.Storage.PutContent(ctx, parsedPath, []byte(probe.Text), "text/plain"); err != nil {
		return nil, fmt.Errorf("parse_paper: store parsed text: %w", err)
	}

	title := probe.Title
	if title == "" {
		title = paper.Title
	}

	metadata := map[string]any{
		"references_count": probe.ReferencesCount,
		"page_count":       probe.PageCount,
	}
	if err := h.Papers.SetParsedPath(ctx, p.PaperID, parsedPath, metadata); err != nil {
		return nil, fmt.Errorf("parse_paper: set parsed path: %w", err)
	}

	if _, err := h.Jobs.Enqueue(ctx, valueobject.JobKindExtractElements, map[string]any{"paper_id": p.PaperID.String()}, repository.DefaultMaxAttempts); err != nil {
		return nil, fmt.Errorf("parse_paper: enqueue extract_elements: %w", err)
	}
	log.Info("paper parsed", "tei_size", len(probe.Text), "references_count", probe.ReferencesCount)

	return worker.EncodeResult(worker.ParsePaperResult{
		PaperID:          p.PaperID,
		ParsedPath:       parsedPath,
		TEISize:          len(probe.Text),
		FiguresExtracted: 0, // figure extraction is out of scope (spec §1)
		Title:            title,
		ReferencesCount:  probe.ReferencesCount,
	})
}

// PDFProbeParser is the default PaperParser: a plain-text extraction via
// ledongthuc/pdf plus a coarse reference count, not a real TEI pipeline.
type PDFProbeParser struct{}

var referenceHeadingPattern = regexp.MustCompile(`(?i)\b(references|bibliography)\b`)
var referenceLinePattern = regexp.MustCompile(`\[\d+\]`)

// Parse extracts plain text via ledongthuc/pdf and derives a coarse
// reference count by finding the first "References"/"Bibliography" word
// in the whitespace-collapsed text and counting the bracketed [n]
// citation markers after it. This is intentionally a probe, not a
// citation parser.
func (PDFProbeParser) Parse(raw []byte) (ParsedPaper, error) {
	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return ParsedPaper{}, fmt.Errorf("pdf reader: %w", err)
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return ParsedPaper{}, fmt.Errorf("pdf plaintext: %w", err)
	}
	content, err := io.ReadAll(plain)
	if err != nil {
		return ParsedPaper{}, fmt.Errorf("pdf read: %w", err)
	}
	text := collapseWhitespace(string(content))

	title := firstNonEmptyLine(text)
	refs := countReferences(text)

	return ParsedPaper{
		Text:            text,
		Title:           title,
		PageCount:       r.NumPage(),
		ReferencesCount: refs,
	}, nil
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func firstNonEmptyLine(s string) string {
	const maxLen = 200
	if len(s) > maxLen {
		return s[:maxLen]
	}
	return s
}

func countReferences(text string) int {
	loc := referenceHeadingPattern.FindStringIndex(text)
	if loc == nil {
		return 0
	}
	tail := text[loc[1]:]
	return len(referenceLinePattern.FindAllString(tail, -1))
}
