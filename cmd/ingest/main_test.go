package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveThreshold(t *testing.T) {
	// Omitted flag falls back to the configured value
	got, err := resolveThreshold(false, 0, 25.0)
	require.NoError(t, err)
	assert.Equal(t, 25.0, got)

	// Explicit flag wins over configuration
	got, err = resolveThreshold(true, 40.0, 25.0)
	require.NoError(t, err)
	assert.Equal(t, 40.0, got)
}

func TestResolveThreshold_RejectsNonPositive(t *testing.T) {
	_, err := resolveThreshold(true, 0, 25.0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "positive")

	_, err = resolveThreshold(true, -5, 25.0)
	require.Error(t, err)
}
