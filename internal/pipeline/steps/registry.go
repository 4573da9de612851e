// Package steps provides stage definitions and dependency validation for
// the docset build pipeline.
package steps

import (
	"fmt"
	"sort"
)

// Stage names.
const (
	Download       = "download"
	MergeSecondary = "merge_secondary"
	LoadManifest   = "load_manifest"
	Rewrite        = "rewrite"
	Localize       = "localize"
	Index          = "index"
	FullText       = "fulltext"
	Package        = "package"
)

// Stage categories.
const (
	CategoryAcquire   = "acquire"
	CategoryTransform = "transform"
	CategoryOutput    = "output"
)

// StepDefinition defines metadata for a pipeline stage
type StepDefinition struct {
	Name     string
	Category string
	// Dependencies must all be completed. AnyOf, when set, needs at least one.
	Dependencies []string
	AnyOf        []string
}

// StepRegistry holds all stage definitions
var StepRegistry = map[string]StepDefinition{
	Download: {
		Name:     Download,
		Category: CategoryAcquire,
	},
	MergeSecondary: {
		Name:         MergeSecondary,
		Category:     CategoryAcquire,
		Dependencies: []string{Download},
	},
	LoadManifest: {
		Name:     LoadManifest,
		Category: CategoryAcquire,
	},
	Rewrite: {
		Name:     Rewrite,
		Category: CategoryTransform,
		AnyOf:    []string{Download, LoadManifest},
	},
	Localize: {
		Name:         Localize,
		Category:     CategoryTransform,
		Dependencies: []string{Rewrite},
	},
	Index: {
		Name:         Index,
		Category:     CategoryOutput,
		Dependencies: []string{Localize},
	},
	FullText: {
		Name:         FullText,
		Category:     CategoryOutput,
		Dependencies: []string{Index},
	},
	Package: {
		Name:         Package,
		Category:     CategoryOutput,
		Dependencies: []string{Index},
	},
}

// DependencyError represents a dependency validation error
type DependencyError struct {
	Step                string
	MissingDependencies []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("stage %s: missing dependencies: %v", e.Step, e.MissingDependencies)
}

// Tracker records completed stages of one run.
type Tracker struct {
	completed map[string]bool
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{completed: map[string]bool{}}
}

// Complete marks a stage done.
func (t *Tracker) Complete(stepName string) {
	t.completed[stepName] = true
}

// Completed lists finished stages in name order.
func (t *Tracker) Completed() []string {
	names := make([]string, 0, len(t.completed))
	for name := range t.completed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDependencies checks if all required dependencies for a stage are completed
func (t *Tracker) ValidateDependencies(stepName string) error {
	def, ok := StepRegistry[stepName]
	if !ok {
		return fmt.Errorf("unknown step: %s", stepName)
	}

	var missing []string

	for _, dep := range def.Dependencies {
		if !t.completed[dep] {
			missing = append(missing, dep)
		}
	}

	if len(def.AnyOf) > 0 {
		found := false
		for _, dep := range def.AnyOf {
			if t.completed[dep] {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, def.AnyOf...)
		}
	}

	if len(missing) > 0 {
		return &DependencyError{
			Step:                stepName,
			MissingDependencies: missing,
		}
	}

	return nil
}

// GetAvailableSteps returns stages whose dependencies are met and that have not run
func (t *Tracker) GetAvailableSteps() []string {
	var available []string
	for stepName := range StepRegistry {
		if t.completed[stepName] {
			continue
		}
		if err := t.ValidateDependencies(stepName); err != nil {
			continue
		}
		available = append(available, stepName)
	}
	sort.Strings(available)
	return available
}
