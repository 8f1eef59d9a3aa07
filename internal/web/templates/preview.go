// Package templates holds the HTML components of the web server.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/csvtable/internal/core"
)

const pageStyle = `body{font-family:system-ui,sans-serif;margin:2rem;color:#1f2937}` +
	`table{border-collapse:collapse;font-size:.875rem}` +
	`th,td{border:1px solid #d1d5db;padding:.25rem .5rem;text-align:left}` +
	`th{background:#f3f4f6}.muted{color:#6b7280}.alert{border:1px solid #fca5a5;background:#fef2f2;padding:1rem}`

// PreviewPage renders a complete HTML page for a table preview.
func PreviewPage(p *core.Preview) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		title := templ.EscapeString(p.Info.Name)
		if _, err := fmt.Fprintf(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>%s</title><style>%s</style></head><body>`, title, pageStyle); err != nil {
			return err
		}
		if err := PreviewTable(p).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}

// PreviewTable renders the preview heading and table as a fragment.
func PreviewTable(p *core.Preview) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder

		b.WriteString(`<h1>`)
		b.WriteString(templ.EscapeString(p.Info.Name))
		b.WriteString(`</h1><p class="muted">`)
		fmt.Fprintf(&b, "%d rows, %d columns", p.Info.Rows, len(p.Header))
		if len(p.Info.Key) > 0 {
			b.WriteString(", key ")
			b.WriteString(templ.EscapeString(strings.Join(p.Info.Key, ", ")))
		}
		b.WriteString(`</p><table><thead><tr>`)
		for i, h := range p.Header {
			b.WriteString(`<th>`)
			b.WriteString(templ.EscapeString(h))
			if i < len(p.Info.Columns) && p.Info.Columns[i].Type != "" {
				b.WriteString(` <span class="muted">`)
				b.WriteString(templ.EscapeString(string(p.Info.Columns[i].Type)))
				b.WriteString(`</span>`)
			}
			b.WriteString(`</th>`)
		}
		b.WriteString(`</tr></thead><tbody>`)
		for _, row := range p.Rows {
			b.WriteString(`<tr>`)
			for _, cell := range row {
				b.WriteString(`<td>`)
				b.WriteString(templ.EscapeString(cell))
				b.WriteString(`</td>`)
			}
			b.WriteString(`</tr>`)
		}
		b.WriteString(`</tbody></table>`)
		if p.Truncated {
			fmt.Fprintf(&b, `<p class="muted">showing the first %d of %d rows</p>`, len(p.Rows), p.Info.Rows)
		}

		_, err := io.WriteString(w, b.String())
		return err
	})
}

// ErrorAlert renders a user-facing error message.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="alert" role="alert"><strong>`)
		b.WriteString(templ.EscapeString(message))
		b.WriteString(`</strong>`)
		if action != "" {
			b.WriteString(`<p>`)
			b.WriteString(templ.EscapeString(action))
			b.WriteString(`</p>`)
		}
		b.WriteString(`<p class="muted">Code: `)
		b.WriteString(templ.EscapeString(code))
		b.WriteString(`</p></div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}
