package httphandler

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// messageRenderer turns oracle decision messages into HTML safe to embed in
// the dashboard. Raw HTML in a message passes through goldmark and is then
// stripped down by the UGC policy.
type messageRenderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func newMessageRenderer() *messageRenderer {
	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)

	return &messageRenderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps(), html.WithUnsafe()),
		),
		policy: policy,
	}
}

func (r *messageRenderer) render(msg string) string {
	if strings.TrimSpace(msg) == "" {
		return ""
	}
	var out bytes.Buffer
	if err := r.md.Convert([]byte(msg), &out); err != nil {
		return r.policy.Sanitize(msg)
	}
	return r.policy.Sanitize(out.String())
}

var defaultRenderer = newMessageRenderer()

// RenderMarkdown renders a decision message as sanitized GFM HTML. Blank
// messages render to "".
func RenderMarkdown(msg string) string {
	return defaultRenderer.render(msg)
}

// IsURL reports whether an evidence entry is an absolute http(s) link.
func IsURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
