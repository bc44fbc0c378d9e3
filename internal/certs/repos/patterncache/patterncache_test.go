package patterncache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-certoverride/internal/certs/domain"
)

func TestMatcher_AgreesWithDomain(t *testing.T) {
	m, err := New(2)
	require.NoError(t, err)

	cases := [][2]string{
		{"*.example.com", "foo.example.com"},
		{"*.example.com", "example.com"},
		{"*.example.com", "foo.bar.example.com"},
		{"Example.com", "example.COM"},
		{"a.test", "b.test"},
	}
	// two passes: first compiles, second hits the cache (with evictions at size 2)
	for pass := 0; pass < 2; pass++ {
		for _, c := range cases {
			assert.Equal(t, domain.MatchHostPattern(c[0], c[1]), m.Match(c[0], c[1]), "pattern %q host %q", c[0], c[1])
		}
	}
}

func TestMatcher_CachesCompiledPattern(t *testing.T) {
	m, err := New(8)
	require.NoError(t, err)
	impl := m.(*matcher)

	assert.True(t, m.Match("*.example.com", "a.example.com"))
	assert.Equal(t, 1, impl.lru.Len())
	assert.False(t, m.Match("*.example.com", "example.com"))
	assert.Equal(t, 1, impl.lru.Len())
}

func TestMatcher_EmptyPattern(t *testing.T) {
	m, err := New(8)
	require.NoError(t, err)
	assert.False(t, m.Match("", ""))
}

func TestNew_InvalidSize(t *testing.T) {
	_, err := New(0)
	assert.Error(t, err)
}
