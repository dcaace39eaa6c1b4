package document

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusProcessing.IsTerminal())
	assert.True(t, StatusReady.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("ready")
	require.NoError(t, err)
	assert.Equal(t, StatusReady, st)

	_, err = ParseStatus("in_progress")
	assert.Error(t, err)
}

func TestPartition_PreservesOrder(t *testing.T) {
	records := []Record{
		{Filename: "a.pdf", IsActive: true},
		{Filename: "b.pdf", IsActive: false},
		{Filename: "c.pdf", IsActive: true},
	}

	active, inactive := Partition(records)

	require.Len(t, active, 2)
	require.Len(t, inactive, 1)
	assert.Equal(t, "a.pdf", active[0].Filename)
	assert.Equal(t, "c.pdf", active[1].Filename)
	assert.Equal(t, "b.pdf", inactive[0].Filename)
}

func TestOwner_CollectionLabel(t *testing.T) {
	o := Owner{Name: "Ada"}
	assert.Equal(t, "Ada's Vector Store", o.CollectionLabel())
}

func TestRecord_Age(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := Record{CreatedAt: t0}

	assert.Equal(t, 6*time.Minute, r.Age(t0.Add(6*time.Minute)))
	assert.False(t, r.HasCollectionFile())
}
