package resolver

import (
	"testing"
	"time"

	"github.com/harrison/testflow/internal/models"
)

func timedSuite(id string, d time.Duration, deps ...string) models.TestSuiteConfig {
	s := suite(id, deps...)
	s.EstimatedDuration = d
	return s
}

func TestCriticalPath(t *testing.T) {
	suites := []models.TestSuiteConfig{
		timedSuite("auth", 2*time.Minute),
		timedSuite("ui", 10*time.Minute),
		timedSuite("firestore", 4*time.Minute, "auth"),
		timedSuite("websocket", 1*time.Minute, "auth"),
		timedSuite("booking", 3*time.Minute, "auth", "firestore", "websocket"),
	}

	g, err := BuildGraph(suites)
	if err != nil {
		t.Fatalf("BuildGraph() error = %v", err)
	}

	path := CriticalPath(g)

	// ui alone is 10m; auth->firestore->booking is 9m.
	want := []string{"ui"}
	if len(path) != len(want) {
		t.Fatalf("CriticalPath() = %v, want %v", path, want)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Fatalf("CriticalPath() = %v, want %v", path, want)
		}
	}
	if got := PathDuration(g, path); got != 10*time.Minute {
		t.Errorf("PathDuration() = %v, want 10m", got)
	}
}

func TestCriticalPathFollowsChain(t *testing.T) {
	suites := []models.TestSuiteConfig{
		timedSuite("auth", 2*time.Minute),
		timedSuite("ui", 1*time.Minute),
		timedSuite("firestore", 4*time.Minute, "auth"),
		timedSuite("websocket", 6*time.Minute, "auth"),
		timedSuite("booking", 3*time.Minute, "auth", "firestore", "websocket"),
	}

	g, err := BuildGraph(suites)
	if err != nil {
		t.Fatalf("BuildGraph() error = %v", err)
	}

	path := CriticalPath(g)
	want := []string{"auth", "websocket", "booking"}
	if len(path) != len(want) {
		t.Fatalf("CriticalPath() = %v, want %v", path, want)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Fatalf("CriticalPath() = %v, want %v", path, want)
		}
	}

	// The path always starts at a level-0 suite.
	if g.Nodes[path[0]].Level != 0 {
		t.Errorf("path starts at %s (level %d), want a level-0 suite", path[0], g.Nodes[path[0]].Level)
	}
	if got := PathDuration(g, path); got != 11*time.Minute {
		t.Errorf("PathDuration() = %v, want 11m", got)
	}
}

func TestCriticalPathEmptyGraph(t *testing.T) {
	g, err := BuildGraph(nil)
	if err != nil {
		t.Fatalf("BuildGraph() error = %v", err)
	}
	if path := CriticalPath(g); len(path) != 0 {
		t.Errorf("CriticalPath() = %v, want empty", path)
	}
}

func TestCriticalPathSingleNode(t *testing.T) {
	g, err := BuildGraph([]models.TestSuiteConfig{timedSuite("only", time.Minute)})
	if err != nil {
		t.Fatalf("BuildGraph() error = %v", err)
	}
	path := CriticalPath(g)
	if len(path) != 1 || path[0] != "only" {
		t.Errorf("CriticalPath() = %v, want [only]", path)
	}
}
