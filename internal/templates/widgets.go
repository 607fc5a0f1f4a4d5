package templates

import (
	"strconv"

	"showroom-popup-builder/internal/markup"
	"showroom-popup-builder/internal/model"
)

// Form widgets only carry data attributes. The editor page binds a single
// delegated listener that reads data-path / data-action, so re-rendering a
// section never requires re-attaching handlers.

// Option is one choice of a select field.
type Option struct {
	Value string
	Label string
}

func section(key, title string, fields []string, children ...*markup.Node) Section {
	body := append([]*markup.Node{markup.El("legend", nil, markup.Text(title))}, children...)
	return Section{
		Key:    key,
		Title:  title,
		Fields: fields,
		Node: markup.El("fieldset", markup.Attrs(
			markup.ID("section-"+key),
			markup.Class("editor-section"),
			markup.Data("section", key),
		), body...),
	}
}

func field(label string, control *markup.Node) *markup.Node {
	return markup.Label(markup.Attrs(markup.Class("editor-field")),
		markup.Span(markup.Attrs(markup.Class("editor-field-label")), markup.Text(label)),
		control,
	)
}

func textField(path, label, value, placeholder string) *markup.Node {
	return field(label, markup.Input(
		markup.A("type", "text"),
		markup.Data("path", path),
		markup.A("value", value),
		markup.A("placeholder", placeholder),
	))
}

func urlField(path, label, value string) *markup.Node {
	return field(label, markup.Input(
		markup.A("type", "url"),
		markup.Data("path", path),
		markup.A("value", value),
		markup.A("placeholder", "https://"),
	))
}

func textArea(path, label, value string, rows int) *markup.Node {
	return field(label, markup.El("textarea", markup.Attrs(
		markup.Data("path", path),
		markup.A("rows", strconv.Itoa(rows)),
	), markup.Text(value)))
}

func numberField(path, label string, value, min, max int) *markup.Node {
	return field(label, markup.Input(
		markup.A("type", "number"),
		markup.Data("path", path),
		markup.A("value", strconv.Itoa(value)),
		markup.A("min", strconv.Itoa(min)),
		markup.A("max", strconv.Itoa(max)),
	))
}

func rangeField(path, label string, value, min, max int, unit string) *markup.Node {
	return field(label, markup.Span(markup.Attrs(markup.Class("editor-range")),
		markup.Input(
			markup.A("type", "range"),
			markup.Data("path", path),
			markup.A("value", strconv.Itoa(value)),
			markup.A("min", strconv.Itoa(min)),
			markup.A("max", strconv.Itoa(max)),
		),
		markup.El("output", nil, markup.Text(strconv.Itoa(value)+unit)),
	))
}

func colorField(path, label, value string) *markup.Node {
	return field(label, markup.Input(
		markup.A("type", "color"),
		markup.Data("path", path),
		markup.A("value", markup.SafeColor(value, "#000000")),
	))
}

func checkbox(path, label string, checked bool) *markup.Node {
	return markup.Label(markup.Attrs(markup.Class("editor-field editor-check")),
		markup.Input(
			markup.A("type", "checkbox"),
			markup.Data("path", path),
			markup.Flag("checked", checked),
		),
		markup.Span(nil, markup.Text(label)),
	)
}

func selectField(path, label, value string, options []Option) *markup.Node {
	opts := make([]*markup.Node, 0, len(options))
	for _, o := range options {
		opts = append(opts, markup.El("option", markup.Attrs(
			markup.A("value", o.Value),
			markup.Flag("selected", o.Value == value),
		), markup.Text(o.Label)))
	}
	return field(label, markup.El("select", markup.Attrs(markup.Data("path", path)), opts...))
}

func addButton(list, label string, disabled bool) *markup.Node {
	return markup.Button(markup.Attrs(
		markup.A("type", "button"),
		markup.Class("editor-add"),
		markup.Data("action", "add"),
		markup.Data("list", list),
		markup.Flag("disabled", disabled),
	), markup.Icon("fa-plus"), markup.Text(" "+label))
}

func removeButton(list string, index int) *markup.Node {
	return markup.Button(markup.Attrs(
		markup.A("type", "button"),
		markup.Class("editor-remove"),
		markup.Data("action", "remove"),
		markup.Data("list", list),
		markup.Data("index", strconv.Itoa(index)),
		markup.A("aria-label", "Remove"),
	), markup.Icon("fa-trash"))
}

func listItem(list string, index int, children ...*markup.Node) *markup.Node {
	body := append(children, removeButton(list, index))
	return markup.Div(markup.Attrs(
		markup.Class("editor-list-item"),
		markup.Data("list", list),
		markup.Data("index", strconv.Itoa(index)),
	), body...)
}

func buttonFields(path, title string, b model.Button) *markup.Node {
	return markup.Div(markup.Attrs(markup.Class("editor-group")),
		markup.H3(nil, markup.Text(title)),
		checkbox(path+".enabled", "Show button", b.Enabled),
		textField(path+".label", "Label", b.Label, ""),
		urlField(path+".url", "Link", b.URL),
	)
}

func itemPath(list string, index int, key string) string {
	p := list + "." + strconv.Itoa(index)
	if key != "" {
		p += "." + key
	}
	return p
}
