package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseContext(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		attrs, err := parseContext(nil)
		require.NoError(t, err)
		assert.Nil(t, attrs)
	})

	t.Run("pairs", func(t *testing.T) {
		attrs, err := parseContext([]string{"brand=topps", "era=vintage"})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"brand": "topps", "era": "vintage"}, attrs)
	})

	t.Run("value may contain equals", func(t *testing.T) {
		attrs, err := parseContext([]string{"note=a=b"})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"note": "a=b"}, attrs)
	})

	t.Run("rejects malformed pair", func(t *testing.T) {
		_, err := parseContext([]string{"brand"})
		assert.Error(t, err)

		_, err = parseContext([]string{"=topps"})
		assert.Error(t, err)
	})
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "cardlearnd", rootCmd.Use)

	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "train", "predict", "correct", "status"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}
