package templates

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/csvtable/internal/core"
	"github.com/JonMunkholm/csvtable/internal/table"
)

func TestPreviewPage(t *testing.T) {
	p := &core.Preview{
		Info: core.TableInfo{
			Name:    "<people>",
			Rows:    3,
			Key:     []string{"id"},
			Columns: []table.Column{{Name: "id", Type: table.TypeInt}, {Name: "name", Type: table.TypeString}},
		},
		Header:    []string{"id", "name"},
		Rows:      [][]string{{"1", "<b>ann</b>"}, {"2", "bob & co"}},
		Truncated: true,
	}

	var buf bytes.Buffer
	require.NoError(t, PreviewPage(p).Render(context.Background(), &buf))
	html := buf.String()

	assert.Contains(t, html, "<title>&lt;people&gt;</title>")
	assert.Contains(t, html, "<th>id <span class=\"muted\">int</span></th>")
	assert.Contains(t, html, "<td>&lt;b&gt;ann&lt;/b&gt;</td>")
	assert.Contains(t, html, "<td>bob &amp; co</td>")
	assert.Contains(t, html, "3 rows, 2 columns, key id")
	assert.Contains(t, html, "showing the first 2 of 3 rows")
	assert.NotContains(t, html, "<b>ann</b>")
}

func TestErrorAlert(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ErrorAlert("Bad <input>", "", "CSV001").Render(context.Background(), &buf))
	assert.Equal(t, `<div class="alert" role="alert"><strong>Bad &lt;input&gt;</strong><p class="muted">Code: CSV001</p></div>`, buf.String())
}
