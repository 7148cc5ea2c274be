package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hatobus/tunebox/internal/domain/track"
)

type stubFilter struct {
	name    string
	result  Result
	sources []Source
	calls   int
}

func (s *stubFilter) Name() string                        { return s.name }
func (s *stubFilter) Description() string                 { return "stub" }
func (s *stubFilter) ReturnCodes() []string               { return []string{"stub_rejected"} }
func (s *stubFilter) ValidateConfig(map[string]any) error { return nil }

func (s *stubFilter) AppliesTo(source Source) bool {
	for _, candidate := range s.sources {
		if candidate == source {
			return true
		}
	}
	return false
}

func (s *stubFilter) Check(ctx context.Context, tenant string, t track.Track) Result {
	s.calls++
	return s.result
}

func TestChain_AllAccept(t *testing.T) {
	chain := NewChain()
	first := &stubFilter{name: "a", result: Accept(), sources: []Source{SourceUser}}
	second := &stubFilter{name: "b", result: Accept(), sources: []Source{SourceUser}}
	chain.Add(first)
	chain.Add(second)

	result := chain.Execute(context.Background(), "guild-1", track.Track{Title: "t"}, SourceUser)
	assert.True(t, result.Accepted)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestChain_StopsAtFirstRejection(t *testing.T) {
	chain := NewChain()
	first := &stubFilter{name: "a", result: Reject("nope"), sources: []Source{SourceUser}}
	second := &stubFilter{name: "b", result: Accept(), sources: []Source{SourceUser}}
	chain.Add(first)
	chain.Add(second)

	result := chain.Execute(context.Background(), "guild-1", track.Track{Title: "t"}, SourceUser)
	assert.False(t, result.Accepted)
	assert.Equal(t, "nope", result.Code)
	assert.Equal(t, 0, second.calls)
}

func TestChain_SkipsNonApplicableFilters(t *testing.T) {
	chain := NewChain()
	userOnly := &stubFilter{name: "a", result: Reject("nope"), sources: []Source{SourceUser}}
	chain.Add(userOnly)

	result := chain.Execute(context.Background(), "guild-1", track.Track{Title: "t"}, SourceRecommendation)
	assert.True(t, result.Accepted)
	assert.Equal(t, 0, userOnly.calls)
}

func TestChain_Empty(t *testing.T) {
	chain := NewChain()
	result := chain.Execute(context.Background(), "guild-1", track.Track{Title: "t"}, SourceUser)
	assert.True(t, result.Accepted)
	assert.Empty(t, chain.Filters())
}
