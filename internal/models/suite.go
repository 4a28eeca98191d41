package models

import (
	"errors"
	"fmt"
	"time"
)

// TestSuiteConfig describes a single test suite and its scheduling inputs.
// Configurations are supplied by an external loader and treated as
// immutable once a session has been started from them.
type TestSuiteConfig struct {
	ID                string               // Unique suite identifier (e.g. "firebase-auth")
	Name              string               // Human-readable suite name
	Enabled           bool                 // Disabled suites are excluded from scheduling
	Priority          int                  // Higher values are admitted first
	EstimatedDuration time.Duration        // Expected wall-clock runtime of the suite
	Resources         ResourceRequirements // Baseline capacity the suite needs while running
	DependsOn         []string             // Suite IDs that must complete in earlier phases
}

// Validate checks that the suite has the required fields and sane values.
func (s *TestSuiteConfig) Validate() error {
	if s.ID == "" {
		return errors.New("suite id is required")
	}
	if s.Name == "" {
		return fmt.Errorf("suite %s: name is required", s.ID)
	}
	if s.EstimatedDuration < 0 {
		return fmt.Errorf("suite %s: estimated duration is negative", s.ID)
	}
	if err := s.Resources.Validate(); err != nil {
		return fmt.Errorf("suite %s: %w", s.ID, err)
	}
	for _, dep := range s.DependsOn {
		if dep == s.ID {
			return fmt.Errorf("suite %s: depends on itself", s.ID)
		}
	}
	return nil
}

// TestConfiguration is a batch of suites submitted for execution as one
// session, plus session-level scheduling knobs.
type TestConfiguration struct {
	ID               string            // Configuration identifier
	Name             string            // Human-readable name
	Suites           []TestSuiteConfig // Suites in the batch (enabled and disabled)
	ConcurrencyLevel int               // Max suites running concurrently within a phase
	Timeout          time.Duration     // Overall session timeout (0 = none)
	RetryAttempts    int               // Retry budget passed through to the suite runner
	Priority         int               // Admission priority for the whole session
}

// Validate checks the configuration and every suite in it. Dependency ids
// are not resolved here; that is the resolver's job.
func (c *TestConfiguration) Validate() error {
	if c.ID == "" {
		return errors.New("configuration id is required")
	}
	seen := make(map[string]bool, len(c.Suites))
	for i := range c.Suites {
		if err := c.Suites[i].Validate(); err != nil {
			return err
		}
		if seen[c.Suites[i].ID] {
			return fmt.Errorf("suite %s: duplicate suite id", c.Suites[i].ID)
		}
		seen[c.Suites[i].ID] = true
	}
	return nil
}

// EnabledSuites returns the suites that participate in scheduling.
func (c *TestConfiguration) EnabledSuites() []TestSuiteConfig {
	enabled := make([]TestSuiteConfig, 0, len(c.Suites))
	for _, s := range c.Suites {
		if s.Enabled {
			enabled = append(enabled, s)
		}
	}
	return enabled
}
