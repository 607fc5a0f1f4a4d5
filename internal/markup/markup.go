// Package markup builds HTML as a typed node tree. Text and attribute values
// are escaped by the renderer, so callers never interpolate raw strings into
// markup.
package markup

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Node is a renderable HTML node.
type Node = html.Node

// Attr is a single attribute. An Attr with an empty Key is dropped, which
// lets callers write conditional attributes inline.
type Attr struct {
	Key string
	Val string
}

// A builds a plain attribute.
func A(key, val string) Attr { return Attr{Key: key, Val: val} }

func Class(v string) Attr { return Attr{Key: "class", Val: v} }
func ID(v string) Attr    { return Attr{Key: "id", Val: v} }
func Style(v string) Attr { return Attr{Key: "style", Val: v} }

// Data builds a data-* attribute.
func Data(name, val string) Attr { return Attr{Key: "data-" + name, Val: val} }

// Flag renders a boolean attribute such as disabled or checked when on is true.
func Flag(key string, on bool) Attr {
	if !on {
		return Attr{}
	}
	return Attr{Key: key, Val: key}
}

// Href builds an href attribute from an untrusted URL.
func Href(raw string) Attr { return Attr{Key: "href", Val: SafeURL(raw)} }

// Src builds a src attribute from an untrusted URL.
func Src(raw string) Attr { return Attr{Key: "src", Val: SafeSrc(raw)} }

// Attrs is a convenience for building attribute lists.
func Attrs(attrs ...Attr) []Attr { return attrs }

// El builds an element. Nil children are skipped.
func El(tag string, attrs []Attr, children ...*Node) *Node {
	n := &html.Node{Type: html.ElementNode, Data: tag}
	for _, a := range attrs {
		if a.Key == "" {
			continue
		}
		n.Attr = append(n.Attr, html.Attribute{Key: a.Key, Val: a.Val})
	}
	appendChildren(n, children)
	return n
}

// Text builds an escaped text node.
func Text(s string) *Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// Textf formats and escapes.
func Textf(format string, args ...any) *Node {
	return Text(fmt.Sprintf(format, args...))
}

// Fragment groups nodes without a wrapping element.
func Fragment(children ...*Node) *Node {
	n := &html.Node{Type: html.DocumentNode}
	appendChildren(n, children)
	return n
}

// StyleSheet builds a <style> element. Style content is emitted verbatim by
// the renderer, so css must only contain values that went through SafeColor
// or other validators.
func StyleSheet(css string) *Node {
	return El("style", nil, Text(css))
}

// Stylesheet links a whitelisted CDN stylesheet. Unknown hosts are dropped.
func Stylesheet(href string) *Node {
	if !IsWhitelistedCDN(href) {
		return nil
	}
	return El("link", Attrs(A("rel", "stylesheet"), A("href", href)))
}

func appendChildren(n *Node, children []*Node) {
	for _, c := range children {
		if c == nil {
			continue
		}
		if c.Parent != nil {
			c.Parent.RemoveChild(c)
		}
		n.AppendChild(c)
	}
}

// Convenience element builders.
func Div(attrs []Attr, children ...*Node) *Node    { return El("div", attrs, children...) }
func Span(attrs []Attr, children ...*Node) *Node   { return El("span", attrs, children...) }
func P(attrs []Attr, children ...*Node) *Node      { return El("p", attrs, children...) }
func H2(attrs []Attr, children ...*Node) *Node     { return El("h2", attrs, children...) }
func H3(attrs []Attr, children ...*Node) *Node     { return El("h3", attrs, children...) }
func Ul(attrs []Attr, children ...*Node) *Node     { return El("ul", attrs, children...) }
func Li(attrs []Attr, children ...*Node) *Node     { return El("li", attrs, children...) }
func Label(attrs []Attr, children ...*Node) *Node  { return El("label", attrs, children...) }
func Button(attrs []Attr, children ...*Node) *Node { return El("button", attrs, children...) }
func Link(attrs []Attr, children ...*Node) *Node   { return El("a", attrs, children...) }
func Img(attrs ...Attr) *Node                      { return El("img", attrs) }
func Input(attrs ...Attr) *Node                    { return El("input", attrs) }

// Icon renders a Font Awesome icon. Only class-safe characters are kept.
func Icon(name string) *Node {
	return El("i", Attrs(Class("fa-solid "+SafeClass(name)), A("aria-hidden", "true")))
}

// Render serializes a tree. A nil node renders as an empty string.
func Render(n *Node) string {
	if n == nil {
		return ""
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		// html.Render only fails on writer errors or void elements with children.
		return ""
	}
	return buf.String()
}

// RenderAll serializes a list of nodes back to back.
func RenderAll(nodes ...*Node) string {
	var sb strings.Builder
	for _, n := range nodes {
		sb.WriteString(Render(n))
	}
	return sb.String()
}

// --- URL and value filters ---

var allowedSchemes = map[string]bool{"http": true, "https": true, "mailto": true, "tel": true}

// SafeURL returns raw when it is a relative URL or uses an allowed scheme,
// and "#" otherwise.
func SafeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "#"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "#"
	}
	if u.Scheme == "" {
		// Reject scheme-like prefixes the parser did not recognise ("javascript :alert").
		if strings.Contains(strings.SplitN(raw, "/", 2)[0], ":") {
			return "#"
		}
		return raw
	}
	if !allowedSchemes[strings.ToLower(u.Scheme)] {
		return "#"
	}
	return raw
}

// SafeSrc filters URLs used as src. Only http(s) and relative URLs survive.
func SafeSrc(raw string) string {
	safe := SafeURL(raw)
	if safe == "#" || strings.HasPrefix(strings.ToLower(safe), "mailto:") || strings.HasPrefix(strings.ToLower(safe), "tel:") {
		return "about:blank"
	}
	return safe
}

var colorPattern = regexp.MustCompile(`^(#[0-9a-fA-F]{3,8}|(rgb|rgba|hsl|hsla)\(\s*[0-9.%,\s/deg]+\)|[a-zA-Z]{3,20})$`)

// SafeColor returns c when it is a plain CSS color and fallback otherwise.
func SafeColor(c, fallback string) string {
	c = strings.TrimSpace(c)
	if colorPattern.MatchString(c) {
		return c
	}
	return fallback
}

var classUnsafe = regexp.MustCompile(`[^a-zA-Z0-9_ -]`)

// SafeClass strips characters that have no business in a class list.
func SafeClass(c string) string {
	return strings.TrimSpace(classUnsafe.ReplaceAllString(c, ""))
}

// CDNs whose stylesheets may be referenced from a generated artifact.
var cdnWhitelist = []string{
	"https://fonts.googleapis.com/",
	"https://cdnjs.cloudflare.com/ajax/libs/font-awesome/",
}

// IsWhitelistedCDN reports whether href points at an allowed font or icon CDN.
func IsWhitelistedCDN(href string) bool {
	for _, prefix := range cdnWhitelist {
		if strings.HasPrefix(href, prefix) {
			return true
		}
	}
	return false
}
