package parser

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/harrison/testflow/internal/models"
)

// MarkdownParser parses Markdown test suite manifests. A manifest is an
// optional YAML frontmatter block with run settings, followed by one
// "### Suite: <id>" section per suite carrying **Field**: metadata lines.
type MarkdownParser struct {
	markdown goldmark.Markdown
}

// NewMarkdownParser creates a new Markdown manifest parser.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{
		markdown: goldmark.New(),
	}
}

// markdownSettings is the yaml shape of manifest frontmatter.
type markdownSettings struct {
	ID               string `yaml:"id"`
	Name             string `yaml:"name"`
	ConcurrencyLevel int    `yaml:"concurrency_level"`
	Timeout          string `yaml:"timeout"`
	RetryAttempts    int    `yaml:"retry_attempts"`
	Priority         int    `yaml:"priority"`
}

var suiteHeadingRegex = regexp.MustCompile(`^Suite:\s+(\S+)$`)

// Parse reads a Markdown manifest and returns the configuration it
// describes.
func (p *MarkdownParser) Parse(r io.Reader) (*models.TestConfiguration, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	cfg := &models.TestConfiguration{}
	content, frontmatter := extractFrontmatter(content)
	if frontmatter != nil {
		var settings markdownSettings
		if err := yaml.Unmarshal(frontmatter, &settings); err != nil {
			return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
		}
		cfg.ID = settings.ID
		cfg.Name = settings.Name
		cfg.ConcurrencyLevel = settings.ConcurrencyLevel
		cfg.RetryAttempts = settings.RetryAttempts
		cfg.Priority = settings.Priority
		if settings.Timeout != "" {
			timeout, err := time.ParseDuration(settings.Timeout)
			if err != nil {
				return nil, fmt.Errorf("invalid timeout %q: %w", settings.Timeout, err)
			}
			cfg.Timeout = timeout
		}
	}

	suites, err := p.extractSuites(content)
	if err != nil {
		return nil, err
	}
	cfg.Suites = suites

	return cfg, nil
}

// suiteSection is a suite heading plus the byte offset where its body
// starts in the source.
type suiteSection struct {
	id    string
	start int
}

// extractSuites walks the markdown AST collecting "### Suite:" headings
// and slices the source between consecutive headings into suite bodies.
func (p *MarkdownParser) extractSuites(source []byte) ([]models.TestSuiteConfig, error) {
	doc := p.markdown.Parser().Parse(text.NewReader(source))

	var sections []suiteSection
	var boundaries []int

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok || heading.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}

		seg := heading.Lines().At(heading.Lines().Len() - 1)
		if heading.Level <= 3 {
			boundaries = append(boundaries, seg.Start)
		}
		if heading.Level != 3 {
			return ast.WalkSkipChildren, nil
		}

		headingText := extractText(heading, source)
		if matches := suiteHeadingRegex.FindStringSubmatch(headingText); len(matches) == 2 {
			sections = append(sections, suiteSection{id: matches[1], start: seg.Stop})
		}
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return nil, err
	}

	var suites []models.TestSuiteConfig
	for _, sec := range sections {
		end := len(source)
		for _, b := range boundaries {
			if b > sec.start && b < end {
				end = b
			}
		}

		suite, err := parseSuiteSection(sec.id, string(source[sec.start:end]))
		if err != nil {
			return nil, fmt.Errorf("suite %s: %w", sec.id, err)
		}
		suites = append(suites, suite)
	}

	return suites, nil
}

// parseSuiteSection extracts suite metadata from the **Field**: lines of
// one suite body.
func parseSuiteSection(id, body string) (models.TestSuiteConfig, error) {
	suite := models.TestSuiteConfig{
		ID:      id,
		Name:    id,
		Enabled: true,
	}

	if v := fieldValue(body, "Name"); v != "" {
		suite.Name = v
	}

	if v := fieldValue(body, "Enabled"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return models.TestSuiteConfig{}, fmt.Errorf("invalid Enabled %q: %w", v, err)
		}
		suite.Enabled = enabled
	}

	if v := fieldValue(body, "Priority"); v != "" {
		priority, err := strconv.Atoi(v)
		if err != nil {
			return models.TestSuiteConfig{}, fmt.Errorf("invalid Priority %q: %w", v, err)
		}
		suite.Priority = priority
	}

	if v := fieldValue(body, "Estimated time"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return models.TestSuiteConfig{}, fmt.Errorf("invalid Estimated time %q: %w", v, err)
		}
		suite.EstimatedDuration = d
	}

	if v := fieldValue(body, "Depends on"); v != "" && !strings.EqualFold(v, "none") {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(strings.Trim(strings.TrimSpace(part), "`"))
			if part != "" {
				suite.DependsOn = append(suite.DependsOn, part)
			}
		}
	}

	if v := fieldValue(body, "Resources"); v != "" {
		resources, err := parseResourcePairs(v)
		if err != nil {
			return models.TestSuiteConfig{}, err
		}
		suite.Resources = resources
	}

	return suite, nil
}

// fieldValue finds a "**Field**: value" metadata line in a suite body.
func fieldValue(body, field string) string {
	re := regexp.MustCompile(`(?m)^\*\*` + regexp.QuoteMeta(field) + `\*\*:\s*(.+)$`)
	if matches := re.FindStringSubmatch(body); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}
	return ""
}

// parseResourcePairs parses "memory_mb=512, cpu_cores=1" style resource
// declarations.
func parseResourcePairs(s string) (models.ResourceRequirements, error) {
	var r models.ResourceRequirements
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		if !found {
			return r, fmt.Errorf("invalid resource declaration %q", pair)
		}
		amount, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return r, fmt.Errorf("invalid resource amount %q: %w", value, err)
		}
		switch strings.TrimSpace(key) {
		case "memory_mb":
			r.MemoryMB = amount
		case "cpu_cores":
			r.CPUCores = amount
		case "network_mbps":
			r.NetworkMbps = amount
		case "storage_mb":
			r.StorageMB = amount
		case "concurrent_users":
			r.ConcurrentUsers = amount
		default:
			return r, fmt.Errorf("unknown resource dimension %q", key)
		}
	}
	return r, nil
}

// extractText extracts plain text from an AST node
func extractText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if text, ok := c.(*ast.Text); ok {
			buf.Write(text.Segment.Value(source))
		}
	}
	return buf.String()
}

// extractFrontmatter extracts YAML frontmatter from markdown content.
// Returns the content without frontmatter and the frontmatter bytes.
func extractFrontmatter(content []byte) ([]byte, []byte) {
	lines := bytes.Split(content, []byte("\n"))

	if len(lines) < 3 || !bytes.Equal(bytes.TrimSpace(lines[0]), []byte("---")) {
		return content, nil
	}

	for i := 1; i < len(lines); i++ {
		if bytes.Equal(bytes.TrimSpace(lines[i]), []byte("---")) {
			frontmatter := bytes.Join(lines[1:i], []byte("\n"))
			body := bytes.Join(lines[i+1:], []byte("\n"))
			return body, frontmatter
		}
	}

	return content, nil
}
