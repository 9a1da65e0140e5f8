package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Impact:
// - Direct callers split from transitive ones by hop distance
// - WouldBreak only on direct callers of a breaking change kind
// - Tests are listed separately and do not count toward the blast radius
// - Blast radius tiers: minimal, moderate, significant, severe, with the
//   severe thresholds configurable
// - Unknown change kinds rejected, empty defaults to signature-change

func TestImpact_DirectAndTransitive(t *testing.T) {
	t.Parallel()

	// handler -> service -> repo, plus a test on the service.
	f := newGraphFixture()
	repo := f.fn("src/repo.ts", "findUser", 5)
	service := f.fn("src/service.ts", "loadUser", 5)
	handler := f.fn("src/api.ts", "handleGetUser", 5, entry(EntryHTTPHandler))
	spec := f.fn("src/service.test.ts", "testLoadUser", 5, entry(EntryTest))
	f.call(service, repo, 8)
	f.call(handler, service, 7)
	f.call(spec, service, 12)
	s := f.open(t, SearcherOptions{})

	res, err := s.Impact(context.Background(), repo.ID, ImpactOptions{ChangeKind: ChangeSignature})
	require.NoError(t, err)

	assert.Equal(t, repo.ID, res.TargetID)
	assert.Equal(t, ChangeSignature, res.ChangeKind)

	require.Len(t, res.DirectCallers, 1)
	direct := res.DirectCallers[0]
	assert.Equal(t, service.ID, direct.FunctionID)
	assert.False(t, direct.Transitive)
	assert.True(t, direct.WouldBreak, "signature change breaks direct call sites")

	require.Len(t, res.TransitiveCallers, 2)
	for _, caller := range res.TransitiveCallers {
		assert.True(t, caller.Transitive)
		assert.False(t, caller.WouldBreak, "transitive callers compile either way")
		assert.Equal(t, 2, caller.Depth)
	}

	assert.Equal(t, []string{handler.ID}, res.AffectedEntryPoints)
	assert.Equal(t, []string{spec.ID}, res.AffectedTests, "tests are reported separately")
	assert.Equal(t, BlastSignificant, res.BlastRadius)
}

func TestImpact_BehaviorChangeNeverBreaks(t *testing.T) {
	t.Parallel()

	f := newGraphFixture()
	repo := f.fn("src/repo.ts", "findUser", 5)
	service := f.fn("src/service.ts", "loadUser", 5)
	f.call(service, repo, 8)
	s := f.open(t, SearcherOptions{})

	res, err := s.Impact(context.Background(), repo.ID, ImpactOptions{ChangeKind: ChangeBehavior})
	require.NoError(t, err)
	require.Len(t, res.DirectCallers, 1)
	assert.False(t, res.DirectCallers[0].WouldBreak)
}

func TestImpact_BlastRadiusTiers(t *testing.T) {
	t.Parallel()

	t.Run("minimal when nothing calls it", func(t *testing.T) {
		t.Parallel()
		f := newGraphFixture()
		orphan := f.fn("src/util.ts", "unused", 5)
		s := f.open(t, SearcherOptions{})

		res, err := s.Impact(context.Background(), orphan.ID, ImpactOptions{})
		require.NoError(t, err)
		assert.Equal(t, BlastMinimal, res.BlastRadius)
	})

	t.Run("moderate with callers but no entry points", func(t *testing.T) {
		t.Parallel()
		f := newGraphFixture()
		target := f.fn("src/util.ts", "format", 5)
		caller := f.fn("src/service.ts", "loadUser", 5)
		f.call(caller, target, 8)
		s := f.open(t, SearcherOptions{})

		res, err := s.Impact(context.Background(), target.ID, ImpactOptions{})
		require.NoError(t, err)
		assert.Equal(t, BlastModerate, res.BlastRadius)
	})

	t.Run("severe at the entry point threshold", func(t *testing.T) {
		t.Parallel()
		f := newGraphFixture()
		target := f.fn("src/repo.ts", "findUser", 5)
		for _, name := range []string{"handleA", "handleB", "handleC"} {
			h := f.fn("src/api.ts", name, 5, entry(EntryHTTPHandler))
			f.call(h, target, 8)
		}
		s := f.open(t, SearcherOptions{})

		res, err := s.Impact(context.Background(), target.ID, ImpactOptions{})
		require.NoError(t, err)
		assert.Len(t, res.AffectedEntryPoints, 3)
		assert.Equal(t, BlastSevere, res.BlastRadius)
	})

	t.Run("severe at the direct caller threshold", func(t *testing.T) {
		t.Parallel()
		f := newGraphFixture()
		target := f.fn("src/util.ts", "clamp", 5)
		for i := 0; i < 10; i++ {
			caller := f.fn("src/services.ts", "svc", 5+i*10)
			f.call(caller, target, 7+i*10)
		}
		s := f.open(t, SearcherOptions{})

		res, err := s.Impact(context.Background(), target.ID, ImpactOptions{})
		require.NoError(t, err)
		require.Len(t, res.DirectCallers, 10)
		assert.Equal(t, BlastSevere, res.BlastRadius)
	})

	t.Run("thresholds configurable", func(t *testing.T) {
		t.Parallel()
		f := newGraphFixture()
		target := f.fn("src/repo.ts", "findUser", 5)
		h := f.fn("src/api.ts", "handleGet", 5, entry(EntryHTTPHandler))
		f.call(h, target, 8)
		s := f.open(t, SearcherOptions{SevereEntryPoints: 1})

		res, err := s.Impact(context.Background(), target.ID, ImpactOptions{})
		require.NoError(t, err)
		assert.Equal(t, BlastSevere, res.BlastRadius)
	})
}

func TestImpact_DepthBound(t *testing.T) {
	t.Parallel()

	// d -> c -> b -> a
	f := newGraphFixture()
	a := f.fn("src/chain.ts", "a", 1)
	b := f.fn("src/chain.ts", "b", 11)
	c := f.fn("src/chain.ts", "c", 21)
	d := f.fn("src/chain.ts", "d", 31)
	f.call(b, a, 13)
	f.call(c, b, 23)
	f.call(d, c, 33)
	s := f.open(t, SearcherOptions{})

	res, err := s.Impact(context.Background(), a.ID, ImpactOptions{MaxDepth: 2})
	require.NoError(t, err)
	assert.Len(t, res.DirectCallers, 1)
	assert.Len(t, res.TransitiveCallers, 1, "d sits past the depth bound")
}

func TestImpact_InvalidChangeKind(t *testing.T) {
	t.Parallel()

	f := newGraphFixture()
	target := f.fn("src/a.ts", "run", 1)
	s := f.open(t, SearcherOptions{})

	_, err := s.Impact(context.Background(), target.ID, ImpactOptions{ChangeKind: "refactor"})
	assert.Error(t, err)

	res, err := s.Impact(context.Background(), target.ID, ImpactOptions{})
	require.NoError(t, err)
	assert.Equal(t, ChangeSignature, res.ChangeKind, "empty kind defaults to signature-change")
}
