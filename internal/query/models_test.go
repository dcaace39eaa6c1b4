package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()

	assert.Equal(t, "o3-mini", c.Default().ID)
	assert.True(t, c.IsValid("o3-mini"))
	assert.False(t, c.IsValid("o4-mini"), "listed but unavailable")
	assert.False(t, c.IsValid("gpt-5"))

	m, ok := c.Get("o4-mini")
	require.True(t, ok)
	assert.Equal(t, 64000, m.ContextWindow)
	assert.Equal(t, "Low", m.Cost)
}

func TestCatalog_ResolveFallsBackToDefault(t *testing.T) {
	c := DefaultCatalog()

	assert.Equal(t, "o3-mini", c.Resolve("o3-mini"))
	assert.Equal(t, "o3-mini", c.Resolve("o4-mini"))
	assert.Equal(t, "o3-mini", c.Resolve(""))
}

func TestCatalog_DefaultSelection(t *testing.T) {
	tests := []struct {
		name   string
		models []Model
		want   string
	}{
		{
			name:   "marked default wins",
			models: []Model{{ID: "a", Available: true}, {ID: "b", IsDefault: true}},
			want:   "b",
		},
		{
			name:   "first available",
			models: []Model{{ID: "a"}, {ID: "b", Available: true}},
			want:   "b",
		},
		{
			name:   "first model",
			models: []Model{{ID: "a"}, {ID: "b"}},
			want:   "a",
		},
		{
			name: "empty",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewCatalog(tt.models).Default().ID)
		})
	}
}

func TestCatalog_SetDefault(t *testing.T) {
	c := NewCatalog([]Model{{ID: "a", Available: true, IsDefault: true}, {ID: "b", Available: true}, {ID: "c"}})

	require.NoError(t, c.SetDefault("b"))
	assert.Equal(t, "b", c.Default().ID)
	assert.Error(t, c.SetDefault("c"))
	assert.Equal(t, "b", c.Default().ID)
}

func TestCatalog_ModelsIsACopy(t *testing.T) {
	c := DefaultCatalog()
	ms := c.Models()
	ms[0].ID = "changed"

	m, ok := c.Get("o4-mini")
	require.True(t, ok)
	assert.NotEqual(t, "changed", c.Models()[0].ID)
	assert.Equal(t, "o4-mini", m.ID)
}

func TestRunOptions(t *testing.T) {
	tests := []struct {
		id         string
		wantModel  string
		wantEffort string
	}{
		{id: "o3-mini", wantModel: "o3-mini", wantEffort: "medium"},
		{id: "gpt-4o-mini"},
		{id: "o4-mini", wantModel: "o4-mini"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			model, effort := RunOptions(tt.id)
			assert.Equal(t, tt.wantModel, model)
			assert.Equal(t, tt.wantEffort, effort)
		})
	}
}
