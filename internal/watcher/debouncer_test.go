package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, d *Debouncer, within time.Duration) []FileEvent {
	t.Helper()
	select {
	case batch := <-d.Output():
		return batch
	case <-time.After(within):
		t.Fatal("timeout waiting for debounced batch")
		return nil
	}
}

func TestDebouncer_SingleEvent_PassesThrough(t *testing.T) {
	// Given: a debouncer with short window
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	// When: a single event is added
	d.Add(FileEvent{Path: "faq.md", Operation: OpCreate})

	// Then: it is emitted after the window
	batch := receive(t, d, time.Second)
	require.Len(t, batch, 1)
	assert.Equal(t, "faq.md", batch[0].Path)
	assert.Equal(t, OpCreate, batch[0].Operation)
}

func TestDebouncer_BurstBecomesOneSortedBatch(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	for range 3 {
		d.Add(FileEvent{Path: "b.md", Operation: OpModify})
	}
	d.Add(FileEvent{Path: "a.txt", Operation: OpModify})

	batch := receive(t, d, time.Second)
	require.Len(t, batch, 2)
	assert.Equal(t, "a.txt", batch[0].Path)
	assert.Equal(t, "b.md", batch[1].Path)
}

func TestDebouncer_CreateThenDelete_NoEvent(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "tmp.md", Operation: OpCreate})
	d.Add(FileEvent{Path: "tmp.md", Operation: OpDelete})

	select {
	case batch := <-d.Output():
		t.Fatalf("unexpected batch %v", batch)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name       string
		prev, next Operation
		want       Operation
		keep       bool
	}{
		{"create+modify", OpCreate, OpModify, OpCreate, true},
		{"create+delete", OpCreate, OpDelete, 0, false},
		{"delete+create", OpDelete, OpCreate, OpModify, true},
		{"modify+delete", OpModify, OpDelete, OpDelete, true},
		{"modify+modify", OpModify, OpModify, OpModify, true},
		{"rename+modify", OpRename, OpModify, OpModify, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, keep := merge(tt.prev, tt.next)
			assert.Equal(t, tt.keep, keep)
			if keep {
				assert.Equal(t, tt.want, op)
			}
		})
	}
}

func TestDebouncer_StopIsIdempotent(t *testing.T) {
	d := NewDebouncer(time.Millisecond)
	d.Stop()
	d.Stop()
	d.Add(FileEvent{Path: "late.md"})

	_, open := <-d.Output()
	assert.False(t, open)
}
