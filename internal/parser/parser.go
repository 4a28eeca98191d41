// Package parser reads test suite manifests in YAML or Markdown form and
// produces the configuration the orchestrator executes.
package parser

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/harrison/testflow/internal/models"
)

// Format represents the format of a manifest file
type Format int

const (
	// FormatUnknown represents an unknown or unsupported file format
	FormatUnknown Format = iota
	// FormatMarkdown represents a Markdown (.md, .markdown) manifest
	FormatMarkdown
	// FormatYAML represents a YAML (.yaml, .yml) manifest
	FormatYAML
)

// String returns the string representation of the Format
func (f Format) String() string {
	switch f {
	case FormatMarkdown:
		return "markdown"
	case FormatYAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// Parser is the interface that all manifest parsers implement
type Parser interface {
	// Parse reads from an io.Reader and returns a test configuration
	Parse(r io.Reader) (*models.TestConfiguration, error)
}

// DetectFormat detects the manifest format from the file extension.
// Supported extensions:
//   - .md, .markdown -> FormatMarkdown
//   - .yaml, .yml -> FormatYAML
//   - all others -> FormatUnknown
func DetectFormat(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".md", ".markdown":
		return FormatMarkdown
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatUnknown
	}
}

// NewParser creates a parser for the given format. Returns an error for
// unknown formats.
func NewParser(format Format) (Parser, error) {
	switch format {
	case FormatMarkdown:
		return NewMarkdownParser(), nil
	case FormatYAML:
		return NewYAMLParser(), nil
	default:
		return nil, fmt.Errorf("unsupported format: %v", format)
	}
}

// ParseFile detects the manifest format from the path, opens the file,
// parses it, and validates the resulting configuration.
//
// This is the recommended way to load manifests from disk.
func ParseFile(path string) (*models.TestConfiguration, error) {
	format := DetectFormat(path)
	if format == FormatUnknown {
		return nil, fmt.Errorf("unknown file format: %s (supported: .md, .markdown, .yaml, .yml)", path)
	}

	parser, err := NewParser(format)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	cfg, err := parser.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if cfg.ID == "" {
		// Fall back to the file name so the configuration is addressable.
		base := filepath.Base(path)
		cfg.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return cfg, nil
}
