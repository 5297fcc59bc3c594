package metrics

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_RecordsJournal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewTracker(t.TempDir(), &buf)

	m := NewCompletionMetrics("go", 3)
	tracker.TrackShown(m)
	m.Additions = 1
	tracker.TrackAccepted(m)
	tracker.TrackDisposed(m)

	var records []Record
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var rec Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}

	require.Len(t, records, 3, "one line per event")
	assert.Equal(t, EventShown, records[0].EventType)
	assert.Equal(t, 3, records[0].Additions, "shown size")
	assert.Equal(t, EventAccepted, records[1].EventType)
	assert.Equal(t, 1, records[1].Additions, "accepted size")
	assert.Equal(t, EventDisposed, records[2].EventType)
	assert.NotNil(t, records[2].Lifespan, "disposed carries lifespan")
	for _, rec := range records {
		assert.Equal(t, m.ID, rec.AutocompleteID, "same suggestion id")
		assert.Equal(t, tracker.DeviceID(), rec.DeviceID, "device id")
		assert.Equal(t, "go", rec.FileType)
	}

	assert.Equal(t, 1, tracker.Count(EventShown))
	assert.Equal(t, 1, tracker.Count(EventAccepted))
	assert.Equal(t, 1, tracker.Count(EventDisposed))
}

func TestTracker_NilWriterCounts(t *testing.T) {
	tracker := NewTracker("", nil)

	tracker.TrackShown(NewCompletionMetrics("lua", 1))
	tracker.TrackShown(NewCompletionMetrics("lua", 1))

	assert.Equal(t, 2, tracker.Count(EventShown))
	assert.Equal(t, 0, tracker.Count(EventAccepted))
}

func TestNewCompletionMetrics_UniqueIDs(t *testing.T) {
	a := NewCompletionMetrics("go", 1)
	b := NewCompletionMetrics("go", 1)

	assert.NotEqual(t, a.ID, b.ID)
	_, err := uuid.Parse(a.ID)
	assert.NoError(t, err, "id is a uuid")
}

func TestDeviceID_Persisted(t *testing.T) {
	dir := t.TempDir()

	first := NewTracker(dir, nil).DeviceID()
	second := NewTracker(dir, nil).DeviceID()

	assert.Equal(t, first, second, "reused across trackers")
	data, err := os.ReadFile(filepath.Join(dir, "device_id"))
	require.NoError(t, err)
	assert.Equal(t, first, string(data))
}

func TestDeviceID_ReplacesGarbage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "device_id"), []byte("not-a-uuid"), 0o644))

	id := NewTracker(dir, nil).DeviceID()

	_, err := uuid.Parse(id)
	assert.NoError(t, err)
}
