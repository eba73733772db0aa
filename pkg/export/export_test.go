package export

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset(rows int) Dataset {
	data := Dataset{
		Title: "Serials 2024",
		Columns: []Column{
			{Key: "institution", Label: "Institution"},
			{Key: "grand_total", Label: "Grand Total", Numeric: true},
		},
	}
	for i := 0; i < rows; i++ {
		data.Rows = append(data.Rows, map[string]string{"institution": fmt.Sprintf("Lib %d", i), "grand_total": "12.50"})
	}
	return data
}

func TestCSVRendererOrdersColumns(t *testing.T) {
	out, err := NewCSVRenderer().Render(sampleDataset(1))
	require.NoError(t, err)
	assert.Equal(t, "Institution,Grand Total\nLib 0,12.50\n", string(out))
}

func TestCSVRendererRequiresColumns(t *testing.T) {
	_, err := NewCSVRenderer().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFRendererPaginates(t *testing.T) {
	out, err := NewPDFRenderer().Render(sampleDataset(120))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRendererFor(t *testing.T) {
	format, err := ParseFormat(" PDF ")
	require.NoError(t, err)
	renderer, err := RendererFor(format)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", renderer.ContentType())

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}
