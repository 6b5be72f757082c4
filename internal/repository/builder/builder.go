package builder

import (
	"fmt"
	"net/url"
	"strings"
)

// URLBuilder helps construct employee API URLs dynamically.
// Query parameters keep the order they were added in.
type URLBuilder struct {
	base     url.URL
	segments []string
	params   []param
}

type param struct {
	key   string
	value string
}

// NewURLBuilder creates a builder rooted at base. base is copied.
func NewURLBuilder(base *url.URL) *URLBuilder {
	b := &URLBuilder{}
	if base != nil {
		b.base = *base
	}
	return b
}

// Path appends path segments. Each segment is escaped and followed by a slash,
// which is how the employee resource routes items.
func (b *URLBuilder) Path(segments ...string) *URLBuilder {
	b.segments = append(b.segments, segments...)
	return b
}

// Param adds a query parameter unconditionally.
func (b *URLBuilder) Param(key string, value interface{}) *URLBuilder {
	b.params = append(b.params, param{key: key, value: fmt.Sprint(value)})
	return b
}

// ParamIf adds a query parameter only when value is not empty.
func (b *URLBuilder) ParamIf(key, value string) *URLBuilder {
	if value == "" {
		return b
	}
	return b.Param(key, value)
}

// Query returns the encoded query string without the leading '?'.
func (b *URLBuilder) Query() string {
	parts := make([]string, 0, len(b.params))
	for _, p := range b.params {
		parts = append(parts, url.QueryEscape(p.key)+"="+url.QueryEscape(p.value))
	}
	return strings.Join(parts, "&")
}

// Build returns the full URL.
func (b *URLBuilder) Build() string {
	u := b.base
	u.RawQuery = ""
	u.Fragment = ""

	path := u.Path
	if len(b.segments) > 0 && !strings.HasSuffix(path, "/") {
		path += "/"
	}
	rawPath := u.EscapedPath()
	if len(b.segments) > 0 && !strings.HasSuffix(rawPath, "/") {
		rawPath += "/"
	}
	for _, s := range b.segments {
		path += s + "/"
		rawPath += url.PathEscape(s) + "/"
	}
	u.Path = path
	u.RawPath = rawPath

	if q := b.Query(); q != "" {
		u.RawQuery = q
	}
	return u.String()
}
