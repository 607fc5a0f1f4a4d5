package templates

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"showroom-popup-builder/internal/markup"
	"showroom-popup-builder/internal/model"
)

// Contact is the business-card template.
type Contact struct{}

func (Contact) Descriptor() model.TemplateDescriptor {
	return model.TemplateDescriptor{
		ID:          model.TemplateContact,
		Name:        "Contact card",
		Icon:        "fa-address-card",
		Description: "Person or stand contact with phone, email and links.",
	}
}

func (Contact) DefaultConfig() model.Config {
	enabled := true
	phone := model.ContactEntry{Type: model.ContactPhone, Label: "Phone", Value: "01 23 45 67 89"}
	phone.RefreshHref()
	email := model.ContactEntry{Type: model.ContactEmail, Label: "Email", Value: "contact@atlantis-city.com", Enabled: &enabled}
	email.RefreshHref()
	return &model.ContactConfig{
		Name:    "Jean Dupont",
		Title:   "Sales advisor",
		Company: "Atlantis City",
		Theme:   model.ContactTheme{Hue: 210, Glow: 30},
		Contacts: []model.ContactEntry{
			phone,
			email,
			{Type: model.ContactWebsite, Label: "Website", Value: "atlantis-city.com", Href: "https://atlantis-city.com"},
		},
	}
}

var contactTypeLabels = map[string]string{
	model.ContactPhone:    "Phone",
	model.ContactEmail:    "Email",
	model.ContactWebsite:  "Website",
	model.ContactLinkedIn: "LinkedIn",
	model.ContactWhatsApp: "WhatsApp",
	model.ContactAddress:  "Address",
	model.ContactOther:    "Other",
}

var contactIcons = map[string]string{
	model.ContactPhone:    "fa-phone",
	model.ContactEmail:    "fa-envelope",
	model.ContactWebsite:  "fa-globe",
	model.ContactLinkedIn: "fa-briefcase",
	model.ContactWhatsApp: "fa-comment-dots",
	model.ContactAddress:  "fa-location-dot",
	model.ContactOther:    "fa-link",
}

func contactTypeOptions() []Option {
	opts := make([]Option, 0, len(model.ContactTypes()))
	for _, t := range model.ContactTypes() {
		opts = append(opts, Option{Value: t, Label: contactTypeLabels[t]})
	}
	return opts
}

func (Contact) RenderForm(cfg model.Config) Form {
	c, ok := cfg.(*model.ContactConfig)
	if !ok {
		return Form{}
	}

	rows := make([]*markup.Node, 0, len(c.Contacts)+1)
	for i, e := range c.Contacts {
		var hrefControl *markup.Node
		if e.Type == model.ContactPhone || e.Type == model.ContactEmail {
			// Derived from the value, shown read-only.
			hrefControl = field("Link", markup.Input(
				markup.A("type", "text"),
				markup.A("value", e.Href),
				markup.Flag("readonly", true),
				markup.Data("derived", "true"),
			))
		} else {
			hrefControl = urlField(itemPath("contacts", i, "href"), "Link", e.Href)
		}
		rows = append(rows, listItem("contacts", i,
			selectField(itemPath("contacts", i, "type"), "Type", e.Type, contactTypeOptions()),
			textField(itemPath("contacts", i, "label"), "Label", e.Label, ""),
			textField(itemPath("contacts", i, "value"), "Value", e.Value, ""),
			hrefControl,
			checkbox(itemPath("contacts", i, "enabled"), "Visible", e.IsEnabled()),
		))
	}
	rows = append(rows, addButton("contacts", "Add contact", false))

	return Form{Sections: []Section{
		section("identity", "Identity", []string{"name", "title", "company", "avatar"},
			textField("name", "Name", c.Name, "Jean Dupont"),
			textField("title", "Title", c.Title, ""),
			textField("company", "Company", c.Company, ""),
			urlField("avatar", "Avatar image", c.Avatar),
		),
		section("theme", "Theme", []string{"theme"},
			rangeField("theme.hue", "Hue", c.Theme.Hue, 0, 360, "°"),
			rangeField("theme.glow", "Glow", c.Theme.Glow, 0, 100, "px"),
		),
		section("contacts", "Contacts", []string{"contacts"}, rows...),
	}}
}

func (Contact) RenderPreview(cfg model.Config, _ PreviewState) *markup.Node {
	c, ok := cfg.(*model.ContactConfig)
	if !ok {
		return RenderFailed(model.TemplateContact)
	}
	return preview(model.TemplateContact, contactCSS, contactCard(c))
}

func (Contact) GenerateArtifact(objectID string, cfg model.Config, ts time.Time) (model.Artifact, error) {
	c, ok := cfg.(*model.ContactConfig)
	if !ok {
		return model.Artifact{}, wrongConfig(model.TemplateContact, cfg)
	}
	return artifact(objectID, model.TemplateContact, c, contactCSS, contactCard(c), ts)
}

func (Contact) AddItem(cfg model.Config, list string) error {
	c, ok := cfg.(*model.ContactConfig)
	if !ok {
		return wrongConfig(model.TemplateContact, cfg)
	}
	if list != "contacts" {
		return fmt.Errorf("contact template has no list %q", list)
	}
	entry := model.ContactEntry{Type: model.ContactPhone, Label: contactTypeLabels[model.ContactPhone]}
	entry.RefreshHref()
	c.Contacts = append(c.Contacts, entry)
	return nil
}

func (Contact) RemoveItem(cfg model.Config, list string, index int) error {
	c, ok := cfg.(*model.ContactConfig)
	if !ok {
		return wrongConfig(model.TemplateContact, cfg)
	}
	if list != "contacts" {
		return fmt.Errorf("contact template has no list %q", list)
	}
	if index < 0 || index >= len(c.Contacts) {
		return fmt.Errorf("contact index %d out of range", index)
	}
	c.Contacts = append(c.Contacts[:index], c.Contacts[index+1:]...)
	return nil
}

func contactCard(c *model.ContactConfig) *markup.Node {
	p := newContactPalette(c.Theme.Hue, c.Theme.Glow)
	vars := fmt.Sprintf("--atl-from:%s;--atl-to:%s;--atl-accent:%s;--atl-accent-soft:%s;--atl-glow:%s;--atl-text:%s",
		p.GradientFrom, p.GradientTo, p.Accent, p.AccentSoft, p.Glow, p.Text)

	var avatar *markup.Node
	if strings.TrimSpace(c.Avatar) != "" {
		avatar = markup.Img(markup.Class("atl-contact-avatar"), markup.Src(c.Avatar), markup.A("alt", c.Name))
	} else {
		avatar = markup.Div(markup.Attrs(markup.Class("atl-contact-avatar atl-contact-initials")), markup.Text(initials(c.Name)))
	}

	items := make([]*markup.Node, 0, len(c.Contacts))
	for _, e := range c.Contacts {
		if !e.IsEnabled() || strings.TrimSpace(e.Value) == "" {
			continue
		}
		icon, ok := contactIcons[e.Type]
		if !ok {
			icon = contactIcons[model.ContactOther]
		}
		items = append(items, markup.Li(nil,
			markup.Link(markup.Attrs(
				markup.Class("atl-contact-link"),
				markup.Href(contactHref(e)),
				markup.A("target", "_blank"),
				markup.A("rel", "noopener noreferrer"),
			),
				markup.Span(markup.Attrs(markup.Class("atl-contact-icon")), markup.Icon(icon)),
				markup.Span(markup.Attrs(markup.Class("atl-contact-text")),
					markup.Span(markup.Attrs(markup.Class("atl-contact-label")), markup.Text(e.Label)),
					markup.Span(markup.Attrs(markup.Class("atl-contact-value")), markup.Text(e.Value)),
				),
			),
		))
	}

	var list *markup.Node
	if len(items) > 0 {
		list = markup.Ul(markup.Attrs(markup.Class("atl-contact-list")), items...)
	}

	var company *markup.Node
	if c.Company != "" {
		company = markup.P(markup.Attrs(markup.Class("atl-contact-company")), markup.Text(c.Company))
	}

	return markup.Div(markup.Attrs(markup.Class("atl-contact"), markup.Style(vars)),
		markup.Div(markup.Attrs(markup.Class("atl-contact-head")),
			avatar,
			markup.H2(markup.Attrs(markup.Class("atl-contact-name")), markup.Text(c.Name)),
			markup.P(markup.Attrs(markup.Class("atl-contact-title")), markup.Text(c.Title)),
			company,
		),
		list,
	)
}

// contactHref falls back to a link built from the value when the user left
// href empty on a link-like entry.
func contactHref(e model.ContactEntry) string {
	if e.Type == model.ContactPhone || e.Type == model.ContactEmail {
		e.RefreshHref()
		return e.Href
	}
	if strings.TrimSpace(e.Href) != "" {
		return e.Href
	}
	v := strings.TrimSpace(e.Value)
	switch e.Type {
	case model.ContactWebsite, model.ContactLinkedIn:
		if !strings.Contains(v, "://") {
			return "https://" + v
		}
		return v
	case model.ContactWhatsApp:
		digits := strings.Map(func(r rune) rune {
			if unicode.IsDigit(r) {
				return r
			}
			return -1
		}, v)
		return "https://wa.me/" + digits
	case model.ContactAddress:
		return "https://www.google.com/maps/search/?api=1&query=" + strings.ReplaceAll(v, " ", "+")
	}
	return "#"
}

func initials(name string) string {
	var out []rune
	for _, word := range strings.Fields(name) {
		for _, r := range word {
			out = append(out, unicode.ToUpper(r))
			break
		}
		if len(out) == 2 {
			break
		}
	}
	if len(out) == 0 {
		return "?"
	}
	return string(out)
}

const contactCSS = `.atl-contact{border-radius:20px;padding:28px 24px;color:var(--atl-text);background:linear-gradient(145deg,var(--atl-from),var(--atl-to));box-shadow:var(--atl-glow)}
.atl-contact-head{text-align:center;margin-bottom:18px}
.atl-contact-avatar{width:88px;height:88px;border-radius:50%;object-fit:cover;margin:0 auto 12px;display:block;border:3px solid var(--atl-accent);box-shadow:var(--atl-glow)}
.atl-contact-initials{display:flex;align-items:center;justify-content:center;font-size:32px;font-weight:700;background:var(--atl-accent-soft)}
.atl-contact-name{margin:0;font-size:24px;font-weight:700}
.atl-contact-title{margin:4px 0 0;opacity:.85}
.atl-contact-company{margin:2px 0 0;font-size:13px;text-transform:uppercase;letter-spacing:.08em;opacity:.7}
.atl-contact-list{list-style:none;margin:0;padding:0;display:flex;flex-direction:column;gap:10px}
.atl-contact-link{display:flex;align-items:center;gap:12px;padding:10px 14px;border-radius:12px;background:var(--atl-accent-soft);color:inherit;text-decoration:none}
.atl-contact-icon{width:36px;height:36px;border-radius:50%;display:flex;align-items:center;justify-content:center;background:var(--atl-accent)}
.atl-contact-text{display:flex;flex-direction:column}
.atl-contact-label{font-size:12px;opacity:.75}
.atl-contact-value{font-weight:600;word-break:break-word}`
