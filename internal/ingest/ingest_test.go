package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRecord_Accessors(t *testing.T) {
	iot := Record{Fields: []Field{
		{Name: "Device_ID", Value: "DEV42"},
		{Name: "CPU_Usage (%)", Value: "91.5"},
	}}
	assert.Equal(t, "DEV42", iot.DeviceID())
	assert.Equal(t, "IoT", iot.SchemaType())
	assert.Equal(t, "91.5", iot.Get("CPU_Usage (%)"))
	assert.Equal(t, "", iot.Get("missing"))

	cam := Record{Fields: []Field{{Name: "Model", Value: "Canon X"}}}
	assert.Equal(t, "Canon X", cam.DeviceID())
	assert.Equal(t, "Camera", cam.SchemaType())

	blank := Record{}
	assert.Equal(t, "unknown", blank.DeviceID())
	assert.Equal(t, "Unknown", blank.SchemaType())
}

func TestRecord_EngineInputPreservesOrder(t *testing.T) {
	r := Record{Fields: []Field{
		{Name: "Device_ID", Value: "D1"},
		{Name: "Battery_Level (%)", Value: "17"},
		{Name: "Note", Value: `he said "hot"`},
	}}
	got := r.EngineInput()
	assert.Equal(t, `{"record": {"Device_ID": "D1", "Battery_Level (%)": "17", "Note": "he said \"hot\""}}`, got)
}

func TestOpenSource_MissingFile(t *testing.T) {
	_, err := OpenSource(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)

	var ingestErr *IngestError
	require.ErrorAs(t, err, &ingestErr)
	assert.Contains(t, ingestErr.Source, "nope.csv")
}

func TestMultiplexer_RoundRobinWithRemoval(t *testing.T) {
	dir := t.TempDir()
	// Source 1 has 3 rows, source 2 has 5.
	p1 := writeCSV(t, dir, "a.csv", "Device_ID,V\nA1,1\nA2,2\nA3,3\n")
	p2 := writeCSV(t, dir, "b.csv", "Device_ID,V\nB1,1\nB2,2\nB3,3\nB4,4\nB5,5\n")

	mux, err := NewMultiplexer([]string{p1, p2}, zap.NewNop())
	require.NoError(t, err)
	defer mux.Close()

	var devices []string
	var seqs []int
	for {
		rec, ok := mux.Next()
		if !ok {
			break
		}
		devices = append(devices, rec.DeviceID())
		seqs = append(seqs, rec.Sequence)
	}

	assert.Equal(t, []string{"A1", "B1", "A2", "B2", "A3", "B3", "B4", "B5"}, devices)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, seqs)
}

func TestMultiplexer_SingleSource(t *testing.T) {
	dir := t.TempDir()
	p := writeCSV(t, dir, "only.csv", "Model,Price\nNikon Z,450\n")

	mux, err := NewMultiplexer([]string{p}, zap.NewNop())
	require.NoError(t, err)
	defer mux.Close()

	rec, ok := mux.Next()
	require.True(t, ok)
	assert.Equal(t, "Nikon Z", rec.DeviceID())
	assert.Equal(t, p, rec.SourceID)

	_, ok = mux.Next()
	assert.False(t, ok)
}

func TestMultiplexer_FailsFastOnMissingSource(t *testing.T) {
	dir := t.TempDir()
	p1 := writeCSV(t, dir, "ok.csv", "Device_ID\nA1\n")
	missing := filepath.Join(dir, "missing.csv")

	_, err := NewMultiplexer([]string{p1, missing}, zap.NewNop())
	require.Error(t, err)

	var ingestErr *IngestError
	require.ErrorAs(t, err, &ingestErr)
	assert.Equal(t, missing, ingestErr.Source)
}

func TestMultiplexer_MalformedRowTreatedAsExhaustion(t *testing.T) {
	dir := t.TempDir()
	// Unclosed quote makes the second data row unreadable.
	bad := writeCSV(t, dir, "bad.csv", "Device_ID,Note\nA1,fine\nA2,\"broken\n")
	good := writeCSV(t, dir, "good.csv", "Device_ID,Note\nB1,fine\nB2,fine\n")

	mux, err := NewMultiplexer([]string{bad, good}, zap.NewNop())
	require.NoError(t, err)
	defer mux.Close()

	var devices []string
	for {
		rec, ok := mux.Next()
		if !ok {
			break
		}
		devices = append(devices, rec.DeviceID())
	}

	// A1 was yielded before the failure and stands; the bad source then
	// drops out of the rotation.
	assert.Equal(t, []string{"A1", "B1", "B2"}, devices)
}

func TestNewMultiplexer_NoSources(t *testing.T) {
	_, err := NewMultiplexer(nil, zap.NewNop())
	var ingestErr *IngestError
	require.ErrorAs(t, err, &ingestErr)
}
