package config

import (
	"testing"

	"github.com/knadh/koanf/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefs_UnsetReturnsDefault(t *testing.T) {
	p := NewPrefs(nil)

	v, err := p.GetBool("accept_untrusted_certs", true)
	require.NoError(t, err)
	assert.True(t, v)

	v, err = p.GetBool("accept_untrusted_certs", false)
	require.NoError(t, err)
	assert.False(t, v)
}

func TestPrefs_ExplicitValues(t *testing.T) {
	k := koanf.New(".")
	require.NoError(t, k.Set("a", false))
	require.NoError(t, k.Set("b", "TRUE"))
	require.NoError(t, k.Set("c", "nope"))
	require.NoError(t, k.Set("d", 42))
	p := NewPrefs(k)

	v, err := p.GetBool("a", true)
	require.NoError(t, err)
	assert.False(t, v)

	v, err = p.GetBool("b", false)
	require.NoError(t, err)
	assert.True(t, v)

	_, err = p.GetBool("c", true)
	assert.Error(t, err)

	_, err = p.GetBool("d", true)
	assert.Error(t, err)
}

func TestPrefs_Set(t *testing.T) {
	p := NewPrefs(nil)
	require.NoError(t, p.Set("assume_untrusted_issuer", false))

	v, err := p.GetBool("assume_untrusted_issuer", true)
	require.NoError(t, err)
	assert.False(t, v)
}
