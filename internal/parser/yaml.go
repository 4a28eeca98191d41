package parser

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harrison/testflow/internal/models"
)

// YAMLParser parses YAML test suite manifests.
type YAMLParser struct{}

// NewYAMLParser creates a new YAML manifest parser.
func NewYAMLParser() *YAMLParser {
	return &YAMLParser{}
}

// yamlManifest is the yaml shape of a manifest. Durations arrive as
// strings ("5m", "1h30m").
type yamlManifest struct {
	ID               string      `yaml:"id"`
	Name             string      `yaml:"name"`
	ConcurrencyLevel int         `yaml:"concurrency_level"`
	Timeout          string      `yaml:"timeout"`
	RetryAttempts    int         `yaml:"retry_attempts"`
	Priority         int         `yaml:"priority"`
	Suites           []yamlSuite `yaml:"suites"`
}

type yamlSuite struct {
	ID                string        `yaml:"id"`
	Name              string        `yaml:"name"`
	Enabled           *bool         `yaml:"enabled"`
	Priority          int           `yaml:"priority"`
	EstimatedDuration string        `yaml:"estimated_duration"`
	DependsOn         []string      `yaml:"depends_on"`
	Resources         yamlResources `yaml:"resources"`
}

type yamlResources struct {
	MemoryMB        float64 `yaml:"memory_mb"`
	CPUCores        float64 `yaml:"cpu_cores"`
	NetworkMbps     float64 `yaml:"network_mbps"`
	StorageMB       float64 `yaml:"storage_mb"`
	ConcurrentUsers float64 `yaml:"concurrent_users"`
}

func (r yamlResources) requirements() models.ResourceRequirements {
	return models.ResourceRequirements{
		MemoryMB:        r.MemoryMB,
		CPUCores:        r.CPUCores,
		NetworkMbps:     r.NetworkMbps,
		StorageMB:       r.StorageMB,
		ConcurrentUsers: r.ConcurrentUsers,
	}
}

// Parse reads a YAML manifest and returns the configuration it describes.
func (p *YAMLParser) Parse(r io.Reader) (*models.TestConfiguration, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	var m yamlManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	cfg := &models.TestConfiguration{
		ID:               m.ID,
		Name:             m.Name,
		ConcurrencyLevel: m.ConcurrencyLevel,
		RetryAttempts:    m.RetryAttempts,
		Priority:         m.Priority,
	}

	if m.Timeout != "" {
		timeout, err := time.ParseDuration(m.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", m.Timeout, err)
		}
		cfg.Timeout = timeout
	}

	for i, ys := range m.Suites {
		suite, err := convertSuite(ys)
		if err != nil {
			return nil, fmt.Errorf("suite %d (%s): %w", i, ys.ID, err)
		}
		cfg.Suites = append(cfg.Suites, suite)
	}

	return cfg, nil
}

func convertSuite(ys yamlSuite) (models.TestSuiteConfig, error) {
	suite := models.TestSuiteConfig{
		ID:        ys.ID,
		Name:      ys.Name,
		Enabled:   true,
		Priority:  ys.Priority,
		DependsOn: ys.DependsOn,
		Resources: ys.Resources.requirements(),
	}
	if suite.Name == "" {
		suite.Name = suite.ID
	}
	if ys.Enabled != nil {
		suite.Enabled = *ys.Enabled
	}
	if ys.EstimatedDuration != "" {
		d, err := time.ParseDuration(ys.EstimatedDuration)
		if err != nil {
			return models.TestSuiteConfig{}, fmt.Errorf("invalid estimated_duration %q: %w", ys.EstimatedDuration, err)
		}
		suite.EstimatedDuration = d
	}
	return suite, nil
}
