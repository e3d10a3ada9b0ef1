package pbix

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vizscan/vizscan/internal/model"
	"github.com/vizscan/vizscan/internal/visual"
)

// layoutSegment is the path segment marking report layout entries
// inside the archive.
const layoutSegment = "Layout"

// maxLayoutEntrySize caps how much of a single layout entry is read.
// Layouts are JSON manifests and stay far below this; the cap guards
// against decompression bombs in hostile archives.
const maxLayoutEntrySize = 64 * 1024 * 1024 // 64MB

// layoutDocument mirrors the layout manifest schema. Only the fields
// needed for visual extraction are decoded; unknown fields are ignored
// by encoding/json, and missing fields default to their zero values
// which the extraction code handles explicitly.
type layoutDocument struct {
	Sections []layoutSection `json:"sections"`
}

// layoutSection is one report page within the layout.
type layoutSection struct {
	DisplayName      string            `json:"displayName"`      //nolint:tagliatelle // layout schema field
	VisualContainers []layoutContainer `json:"visualContainers"` //nolint:tagliatelle // layout schema field
}

// layoutContainer is one visual placement. Its config field is a
// JSON-encoded string requiring a second, nested parse.
type layoutContainer struct {
	Config string `json:"config"`
}

// visualConfig is the nested document inside a container's config
// string. singleVisual.visualType carries the type identifier.
type visualConfig struct {
	Name         string `json:"name"`
	SingleVisual struct {
		VisualType string `json:"visualType"` //nolint:tagliatelle // layout schema field
	} `json:"singleVisual"` //nolint:tagliatelle // layout schema field
}

// Parser extracts visual records from PBIX archives.
type Parser struct {
	// logger receives per-entry diagnostics for skipped entries and
	// containers. Skips are expected with hand-edited or unusually
	// versioned archives and never fail the parse.
	logger *slog.Logger
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithLogger sets the diagnostics logger.
func WithLogger(logger *slog.Logger) ParserOption {
	return func(p *Parser) {
		p.logger = logger
	}
}

// NewParser creates a Parser.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Parse decodes a PBIX blob into the visual records it declares, in
// encounter order across all layout entries. The returned slice may be
// empty. Parse fails only when the container itself cannot be opened;
// undecodable entries and malformed containers are skipped and logged.
func (p *Parser) Parse(blob []byte) ([]model.VisualRecord, error) {
	reader, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedArchive, err)
	}

	var records []model.VisualRecord
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() || !strings.Contains(entry.Name, layoutSegment) {
			continue
		}

		data, err := readEntry(entry)
		if err != nil {
			p.logger.Warn("skipping unreadable layout entry",
				"entry", entry.Name,
				"error", err,
			)
			continue
		}

		text, err := decodeLayout(data)
		if err != nil {
			p.logger.Warn("skipping undecodable layout entry",
				"entry", entry.Name,
				"error", err,
			)
			continue
		}

		var doc layoutDocument
		if err := json.Unmarshal(text, &doc); err != nil {
			p.logger.Warn("skipping layout entry with unexpected schema",
				"entry", entry.Name,
				"error", err,
			)
			continue
		}

		records = append(records, p.extractVisuals(entry.Name, doc)...)
	}

	return records, nil
}

// extractVisuals walks a decoded layout document. A malformed config
// string skips that container only, never the entry or the report.
func (p *Parser) extractVisuals(entryName string, doc layoutDocument) []model.VisualRecord {
	var records []model.VisualRecord
	for _, section := range doc.Sections {
		page := section.DisplayName
		if page == "" {
			page = "Unnamed Section"
		}

		for _, container := range section.VisualContainers {
			if container.Config == "" {
				continue
			}

			var cfg visualConfig
			if err := json.Unmarshal([]byte(container.Config), &cfg); err != nil {
				p.logger.Warn("skipping visual container with malformed config",
					"entry", entryName,
					"page", page,
					"error", err,
				)
				continue
			}

			name := cfg.Name
			if name == "" {
				name = "Unnamed"
			}
			visualType := cfg.SingleVisual.VisualType
			if visualType == "" {
				visualType = "Unknown"
			}

			records = append(records, model.VisualRecord{
				Name:   name,
				Type:   visualType,
				Page:   page,
				Custom: visual.IsCustom(visualType),
			})
		}
	}
	return records
}

// readEntry reads one archive entry up to maxLayoutEntrySize.
func readEntry(entry *zip.File) ([]byte, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxLayoutEntrySize))
	if err != nil {
		return nil, err
	}
	return data, nil
}
