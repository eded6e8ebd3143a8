package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRows() []RosterRow {
	return []RosterRow{
		{Day: "2026-09-07", Weekday: "Monday", Period: "7", Duty: "self_study", Teacher: "Teacher One"},
		{Day: "2026-09-07", Weekday: "Monday", Period: "8-9", Duty: "leave_seat", Teacher: "Teacher Two"},
	}
}

func TestCSVExporterRender(t *testing.T) {
	payload, err := NewCSVExporter().Render(sampleRows())
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(payload)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, rosterHeaders, records[0])
	assert.Equal(t, []string{"2026-09-07", "Monday", "7", "self_study", "Teacher One"}, records[1])
}

func TestCSVExporterRenderEmpty(t *testing.T) {
	payload, err := NewCSVExporter().Render(nil)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(payload)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1, "headers only")
}

func TestPDFExporterRender(t *testing.T) {
	payload, err := NewPDFExporter().Render(sampleRows(), "Supervision Roster")
	require.NoError(t, err)
	require.NotEmpty(t, payload)
	assert.True(t, bytes.HasPrefix(payload, []byte("%PDF")), "output should be a PDF document")
}

func TestPDFExporterRenderWithoutTitle(t *testing.T) {
	payload, err := NewPDFExporter().Render(nil, "")
	require.NoError(t, err)
	assert.NotEmpty(t, payload)
}
