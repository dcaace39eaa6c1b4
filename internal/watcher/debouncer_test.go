package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, d *Debouncer) []FileEvent {
	t.Helper()
	select {
	case batch := <-d.Output():
		return batch
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for debounced batch")
		return nil
	}
}

func TestDebouncer_CoalescesPerPath(t *testing.T) {
	// Given a debouncer
	d := NewDebouncer(30*time.Millisecond, 4, nil)
	defer d.Stop()

	// When a file is created then written several times
	d.Add(FileEvent{Path: "a.pdf", Operation: OpCreate})
	for i := 0; i < 3; i++ {
		d.Add(FileEvent{Path: "a.pdf", Operation: OpModify})
	}
	d.Add(FileEvent{Path: "b.pdf", Operation: OpModify})

	// Then one sorted batch carries one event per path
	batch := receive(t, d)
	require.Len(t, batch, 2)
	assert.Equal(t, "a.pdf", batch[0].Path)
	assert.Equal(t, OpCreate, batch[0].Operation)
	assert.Equal(t, "b.pdf", batch[1].Path)
}

func TestDebouncer_Rules(t *testing.T) {
	tests := []struct {
		name  string
		ops   []Operation
		want  Operation
		empty bool
	}{
		{"create then delete cancels", []Operation{OpCreate, OpDelete}, 0, true},
		{"modify then delete is delete", []Operation{OpModify, OpDelete}, OpDelete, false},
		{"delete then create is modify", []Operation{OpDelete, OpCreate}, OpModify, false},
		{"modify twice is modify", []Operation{OpModify, OpModify}, OpModify, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDebouncer(20*time.Millisecond, 4, nil)
			defer d.Stop()

			for _, op := range tt.ops {
				d.Add(FileEvent{Path: "x.pdf", Operation: op})
			}
			d.Add(FileEvent{Path: "marker.pdf", Operation: OpCreate})

			batch := receive(t, d)
			var got []FileEvent
			for _, ev := range batch {
				if ev.Path == "x.pdf" {
					got = append(got, ev)
				}
			}
			if tt.empty {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Operation)
		})
	}
}

func TestDebouncer_StopClosesOutput(t *testing.T) {
	d := NewDebouncer(time.Hour, 1, nil)
	d.Add(FileEvent{Path: "a.pdf", Operation: OpCreate})

	d.Stop()
	d.Stop()
	d.Add(FileEvent{Path: "b.pdf", Operation: OpCreate})

	_, ok := <-d.Output()
	assert.False(t, ok)
}
