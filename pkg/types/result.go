// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the data shared between the CLI and the conversion
// engines.
package types

// MetadataTOC is the metadata key engines use for the table of contents.
const MetadataTOC = "table_of_contents"

// Request is one conversion, built from the parsed command line.
type Request struct {
	InputPath string
	OutputDir string
	Force     bool
}

// TOCEntry is one section heading reported by an engine.
type TOCEntry struct {
	Title        string `json:"title" yaml:"title"`
	HeadingLevel int    `json:"heading_level,omitempty" yaml:"heading_level,omitempty"`
	PageID       int    `json:"page_id" yaml:"page_id"`
}

// Result is what an engine returns for a converted PDF. Images maps a file
// name to its raw bytes; Metadata is engine specific and may be nil.
type Result struct {
	Markdown string
	Images   map[string][]byte
	Metadata map[string]any
}

// TOCSections returns the number of table-of-contents entries carried in
// the metadata, or 0 when there is none.
func (r *Result) TOCSections() int {
	if r == nil || r.Metadata == nil {
		return 0
	}
	switch toc := r.Metadata[MetadataTOC].(type) {
	case []any:
		return len(toc)
	case []TOCEntry:
		return len(toc)
	case []map[string]any:
		return len(toc)
	}
	return 0
}
