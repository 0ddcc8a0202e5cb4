package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStage is a named no-op stage with declared dependencies.
type stubStage struct {
	name string
	deps []string
	run  func(ctx context.Context, b *Build) error
}

func (s *stubStage) Name() string   { return s.name }
func (s *stubStage) Deps() []string { return s.deps }
func (s *stubStage) Run(ctx context.Context, b *Build) error {
	if s.run != nil {
		return s.run(ctx, b)
	}
	return nil
}

func TestGraphPlanOrdersByDependency(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Add(&stubStage{name: "push", deps: []string{"assemble"}}))
	require.NoError(t, g.Add(&stubStage{name: "assemble", deps: []string{"resolve"}}))
	require.NoError(t, g.Add(&stubStage{name: "resolve"}))

	plan, err := g.Plan()
	require.NoError(t, err)

	names := make([]string, len(plan))
	for i, s := range plan {
		names[i] = s.Name()
	}
	assert.Equal(t, []string{"resolve", "assemble", "push"}, names)
}

func TestGraphPlanDetectsCycle(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Add(&stubStage{name: "a", deps: []string{"b"}}))
	require.NoError(t, g.Add(&stubStage{name: "b", deps: []string{"a"}}))

	_, err := g.Plan()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestGraphPlanRejectsUnknownDependency(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Add(&stubStage{name: "assemble", deps: []string{"resolve"}}))

	_, err := g.Plan()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown stage")
}

func TestGraphRejectsDuplicateStage(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Add(&stubStage{name: "resolve"}))
	assert.Error(t, g.Add(&stubStage{name: "resolve"}))
}

func TestStandardGraphIsTwoStages(t *testing.T) {
	plan, err := NewStandardGraph().Plan()
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, StageNameResolve, plan[0].Name())
	assert.Equal(t, StageNameAssemble, plan[1].Name())
}
