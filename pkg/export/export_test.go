package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rosterDataset() Dataset {
	return Dataset{
		Title:   "Student Roster",
		Headers: []string{"Roll Number", "Full Name", "Class"},
		Rows: []map[string]string{
			{"Roll Number": "MPS-M-001", "Full Name": "Neil Matthews", "Class": "7"},
			{"Roll Number": "MPS-M-002", "Full Name": "Smith, Ana", "Class": "8"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(rosterDataset())
	require.NoError(t, err)
	assert.Equal(t, "Roll Number,Full Name,Class\nMPS-M-001,Neil Matthews,7\nMPS-M-002,\"Smith, Ana\",8\n", string(out))
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(rosterDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestRendererFor(t *testing.T) {
	r, err := RendererFor(FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "csv", r.Extension())

	r, err = RendererFor(FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", r.ContentType())

	_, err = RendererFor("xlsx")
	assert.Error(t, err)
}

func TestRenderRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestColumnWidthsFillPage(t *testing.T) {
	widths := columnWidths(rosterDataset())
	sum := 0.0
	for _, w := range widths {
		sum += w
	}
	assert.InDelta(t, tablePageWidth, sum, 0.001)
	assert.Greater(t, widths[1], widths[2])
}
