package email

import (
	"bytes"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

// mdRenderer converts notification bodies written in markdown.
// Raw HTML in the input is escaped because WithUnsafe is not set.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// policy strips anything the renderer let through that mail clients should not see.
var policy = bluemonday.UGCPolicy()

// layout wraps the rendered body for mail clients.
const layout = `<!DOCTYPE html><html><body style="font-family:sans-serif;line-height:1.5">%s</body></html>`

// Render turns a markdown body into sanitized HTML and a plain-text alternative.
// PRE: md is user or template supplied markdown
// POST: html contains no script, style or event handler attributes
func Render(md string) (html string, text string, err error) {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return "", "", errors.Wrap(err, "render markdown")
	}
	body := policy.SanitizeBytes(buf.Bytes())
	return strings.Replace(layout, "%s", string(body), 1), strings.TrimSpace(md), nil
}
