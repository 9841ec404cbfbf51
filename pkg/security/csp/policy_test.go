package csp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilder_Build(t *testing.T) {
	tests := []struct {
		name    string
		builder *Builder
		want    string
	}{
		{
			name:    "empty",
			builder: NewBuilder(),
			want:    "",
		},
		{
			name:    "order is fixed",
			builder: NewBuilder().FrameAncestors("'none'").DefaultSrc("'self'"),
			want:    "default-src 'self'; frame-ancestors 'none'",
		},
		{
			name:    "multiple sources",
			builder: NewBuilder().ImgSrc("'self'", "data:", "https:"),
			want:    "img-src 'self' data: https:",
		},
		{
			name:    "later call replaces",
			builder: NewBuilder().ConnectSrc("'self'").ConnectSrc("https://api.example.com"),
			want:    "connect-src https://api.example.com",
		},
		{
			name:    "empty directive omitted",
			builder: NewBuilder().DefaultSrc("'none'").ObjectSrc(),
			want:    "default-src 'none'",
		},
		{
			name:    "report uri last",
			builder: NewBuilder().ReportURI("/csp-report").DefaultSrc("'none'"),
			want:    "default-src 'none'; report-uri /csp-report",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.builder.Build())
		})
	}
}

func TestBuilder_HeaderName(t *testing.T) {
	assert.Equal(t, HeaderEnforce, NewBuilder().HeaderName())
	assert.Equal(t, HeaderReportOnly, NewBuilder().ReportOnly(true).HeaderName())
}

func TestAPIPolicy(t *testing.T) {
	assert.Equal(t,
		"default-src 'none'; frame-ancestors 'none'; form-action 'none'; base-uri 'none'",
		APIPolicy().Build())
}

func TestSwaggerUIPolicy(t *testing.T) {
	assert.Equal(t,
		"default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; "+
			"img-src 'self' data:; font-src 'self' data:; connect-src 'self'; frame-ancestors 'none'; "+
			"form-action 'self'; base-uri 'self'; object-src 'none'",
		SwaggerUIPolicy().Build())
}
