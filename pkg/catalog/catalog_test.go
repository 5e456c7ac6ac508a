package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAll_UniqueIDs(t *testing.T) {
	models := All()
	require.Len(t, models, 29)
	seen := make(map[string]bool, len(models))
	for _, m := range models {
		assert.NotEmpty(t, m.Name)
		assert.False(t, seen[m.ID], "duplicate id %s", m.ID)
		seen[m.ID] = true
	}
}

func TestAll_ReturnsCopy(t *testing.T) {
	models := All()
	models[0].Name = "changed"
	assert.NotEqual(t, "changed", All()[0].Name)
}

func TestLookup(t *testing.T) {
	m, ok := Lookup("anthropic.claude-3-sonnet-20240229-v1:0")
	require.True(t, ok)
	assert.Equal(t, "Claude 3 Sonnet", m.Name)
	assert.True(t, m.Vision)
	assert.True(t, m.StreamingToolUse)

	_, ok = Lookup("no.such-model")
	assert.False(t, ok)
}

func TestWithCapabilities(t *testing.T) {
	vision := WithCapabilities(CapVision, CapToolUse)
	require.NotEmpty(t, vision)
	for _, m := range vision {
		assert.True(t, m.Vision)
		assert.True(t, m.ToolUse)
	}
	assert.Contains(t, vision, AnthropicClaude35Sonnet20240620V10)
	assert.NotContains(t, vision, MistralMistral7bInstructV02)

	assert.Len(t, WithCapabilities(), 29)
}

func TestModel_Has(t *testing.T) {
	m := MistralMistral7bInstructV02
	assert.True(t, m.Has(CapConverse))
	assert.False(t, m.Has(CapVision))
	assert.False(t, m.Has("unknown"))
	assert.Len(t, Capabilities(), 8)
}
