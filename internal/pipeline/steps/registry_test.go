package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepRegistry(t *testing.T) {
	expectedSteps := []string{
		Download, MergeSecondary, LoadManifest,
		Rewrite, Localize,
		Index, FullText, Package,
	}

	for _, stepName := range expectedSteps {
		def, ok := StepRegistry[stepName]
		require.True(t, ok, "Step %s should be in registry", stepName)
		assert.Equal(t, stepName, def.Name)
		assert.NotEmpty(t, def.Category)
	}
	assert.Len(t, StepRegistry, len(expectedSteps))
}

func TestStepRegistryCategories(t *testing.T) {
	categories := map[string][]string{
		CategoryAcquire:   {Download, MergeSecondary, LoadManifest},
		CategoryTransform: {Rewrite, Localize},
		CategoryOutput:    {Index, FullText, Package},
	}

	for category, stepNames := range categories {
		for _, stepName := range stepNames {
			def, ok := StepRegistry[stepName]
			require.True(t, ok)
			assert.Equal(t, category, def.Category, "Step %s should be in category %s", stepName, category)
		}
	}
}

func TestDependencyError(t *testing.T) {
	err := &DependencyError{
		Step:                "test_step",
		MissingDependencies: []string{"dep1", "dep2"},
	}

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing dependencies")
	assert.Equal(t, "test_step", err.Step)
	assert.Equal(t, []string{"dep1", "dep2"}, err.MissingDependencies)
}

func TestValidateDependencies_UnknownStep(t *testing.T) {
	err := NewTracker().ValidateDependencies("unknown_step")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown step")
}

func TestValidateDependencies_Online(t *testing.T) {
	tr := NewTracker()

	var depErr *DependencyError
	require.ErrorAs(t, tr.ValidateDependencies(Rewrite), &depErr)
	assert.Equal(t, []string{Download, LoadManifest}, depErr.MissingDependencies)

	tr.Complete(Download)
	assert.NoError(t, tr.ValidateDependencies(MergeSecondary))
	assert.NoError(t, tr.ValidateDependencies(Rewrite))

	require.ErrorAs(t, tr.ValidateDependencies(Package), &depErr)
	assert.Equal(t, []string{Index}, depErr.MissingDependencies)
}

func TestValidateDependencies_Local(t *testing.T) {
	tr := NewTracker()
	tr.Complete(LoadManifest)

	assert.NoError(t, tr.ValidateDependencies(Rewrite))
	assert.Error(t, tr.ValidateDependencies(MergeSecondary))
}

func TestGetAvailableSteps(t *testing.T) {
	tr := NewTracker()
	assert.Equal(t, []string{Download, LoadManifest}, tr.GetAvailableSteps())

	tr.Complete(Download)
	assert.Equal(t, []string{LoadManifest, MergeSecondary, Rewrite}, tr.GetAvailableSteps())

	tr.Complete(Rewrite)
	tr.Complete(Localize)
	tr.Complete(Index)
	assert.Equal(t, []string{FullText, LoadManifest, MergeSecondary, Package}, tr.GetAvailableSteps())
	assert.Equal(t, []string{Download, Index, Localize, Rewrite}, tr.Completed())
}
