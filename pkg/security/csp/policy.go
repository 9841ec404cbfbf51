// Package csp builds Content-Security-Policy header values.
package csp

import "strings"

// Header names.
const (
	HeaderEnforce    = "Content-Security-Policy"
	HeaderReportOnly = "Content-Security-Policy-Report-Only"
)

// directiveOrder keeps the rendered policy stable regardless of call order.
var directiveOrder = []string{
	"default-src",
	"script-src",
	"style-src",
	"img-src",
	"font-src",
	"connect-src",
	"frame-ancestors",
	"form-action",
	"base-uri",
	"object-src",
	"report-uri",
}

// Builder assembles a policy. It is not safe for concurrent use.
//
//	policy := csp.NewBuilder().
//	    DefaultSrc("'none'").
//	    FrameAncestors("'none'").
//	    Build()
//	// "default-src 'none'; frame-ancestors 'none'"
type Builder struct {
	directives map[string][]string
	reportOnly bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{directives: make(map[string][]string)}
}

func (b *Builder) set(directive string, sources []string) *Builder {
	b.directives[directive] = append([]string(nil), sources...)
	return b
}

// DefaultSrc sets the fallback for every fetch directive.
func (b *Builder) DefaultSrc(sources ...string) *Builder { return b.set("default-src", sources) }

// ScriptSrc sets allowed script sources.
func (b *Builder) ScriptSrc(sources ...string) *Builder { return b.set("script-src", sources) }

// StyleSrc sets allowed stylesheet sources.
func (b *Builder) StyleSrc(sources ...string) *Builder { return b.set("style-src", sources) }

// FontSrc sets allowed font sources.
func (b *Builder) FontSrc(sources ...string) *Builder { return b.set("font-src", sources) }

// ImgSrc sets allowed image sources.
func (b *Builder) ImgSrc(sources ...string) *Builder { return b.set("img-src", sources) }

// ConnectSrc sets allowed fetch/XHR/WebSocket targets.
func (b *Builder) ConnectSrc(sources ...string) *Builder { return b.set("connect-src", sources) }

// FrameAncestors sets who may embed the response. 'none' replaces X-Frame-Options: DENY.
func (b *Builder) FrameAncestors(sources ...string) *Builder {
	return b.set("frame-ancestors", sources)
}

// FormAction sets allowed form submission targets.
func (b *Builder) FormAction(sources ...string) *Builder { return b.set("form-action", sources) }

// BaseURI sets allowed <base> URLs.
func (b *Builder) BaseURI(sources ...string) *Builder { return b.set("base-uri", sources) }

// ObjectSrc sets allowed plugin sources.
func (b *Builder) ObjectSrc(sources ...string) *Builder { return b.set("object-src", sources) }

// ReportURI sets where violation reports are posted.
func (b *Builder) ReportURI(uri string) *Builder { return b.set("report-uri", []string{uri}) }

// ReportOnly switches the policy to report-only mode.
func (b *Builder) ReportOnly(enabled bool) *Builder {
	b.reportOnly = enabled
	return b
}

// Build renders the policy. Directives without sources are omitted.
func (b *Builder) Build() string {
	parts := make([]string, 0, len(b.directives))
	for _, directive := range directiveOrder {
		if sources := b.directives[directive]; len(sources) > 0 {
			parts = append(parts, directive+" "+strings.Join(sources, " "))
		}
	}
	return strings.Join(parts, "; ")
}

// HeaderName returns the header the policy belongs in.
func (b *Builder) HeaderName() string {
	if b.reportOnly {
		return HeaderReportOnly
	}
	return HeaderEnforce
}

// APIPolicy is the policy for JSON-only responses: nothing may be loaded,
// embedded or submitted.
func APIPolicy() *Builder {
	return NewBuilder().
		DefaultSrc("'none'").
		FrameAncestors("'none'").
		FormAction("'none'").
		BaseURI("'none'")
}

// SwaggerUIPolicy is the policy for the bundled Swagger UI pages, which run
// inline scripts and styles and fetch the API description from this origin.
func SwaggerUIPolicy() *Builder {
	return NewBuilder().
		DefaultSrc("'self'").
		ScriptSrc("'self'", "'unsafe-inline'").
		StyleSrc("'self'", "'unsafe-inline'").
		ImgSrc("'self'", "data:").
		FontSrc("'self'", "data:").
		ConnectSrc("'self'").
		FrameAncestors("'none'").
		FormAction("'self'").
		BaseURI("'self'").
		ObjectSrc("'none'")
}
