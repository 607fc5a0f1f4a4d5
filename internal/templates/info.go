package templates

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"showroom-popup-builder/internal/markup"
	"showroom-popup-builder/internal/model"
)

// Info is a free-text information panel.
type Info struct{}

func (Info) Descriptor() model.TemplateDescriptor {
	return model.TemplateDescriptor{
		ID:          model.TemplateInfo,
		Name:        "Info panel",
		Icon:        "fa-circle-info",
		Description: "Title, illustration and a few paragraphs of text.",
	}
}

func (Info) DefaultConfig() model.Config {
	return &model.InfoConfig{
		Title:    "Welcome to our stand",
		Subtitle: "Atlantis City showroom",
		Icon:     "fa-circle-info",
		Paragraphs: []string{
			"Discover our latest collection and meet our advisors on site.",
			"Opening hours: Monday to Saturday, 10am to 7pm.",
		},
		Button: model.Button{Label: "Learn more", URL: "https://atlantis-city.com", Enabled: true},
		Colors: model.Palette{Accent: "#0ea5e9", Background: "#ffffff", Text: "#1f2430"},
	}
}

func (Info) RenderForm(cfg model.Config) Form {
	c, ok := cfg.(*model.InfoConfig)
	if !ok {
		return Form{}
	}

	paragraphs := make([]*markup.Node, 0, len(c.Paragraphs)+1)
	for i, p := range c.Paragraphs {
		paragraphs = append(paragraphs, listItem("paragraphs", i,
			textArea(itemPath("paragraphs", i, ""), "Paragraph "+strconv.Itoa(i+1), p, 3),
		))
	}
	paragraphs = append(paragraphs, addButton("paragraphs", "Add paragraph", false))

	return Form{Sections: []Section{
		section("general", "General", []string{"title", "subtitle", "icon", "image"},
			textField("title", "Title", c.Title, ""),
			textField("subtitle", "Subtitle", c.Subtitle, ""),
			textField("icon", "Icon", c.Icon, "fa-circle-info"),
			urlField("image", "Image", c.Image),
		),
		section("content", "Content", []string{"paragraphs"}, paragraphs...),
		section("button", "Button", []string{"button"},
			buttonFields("button", "Button", c.Button),
		),
		section("colors", "Colors", []string{"colors"},
			colorField("colors.accent", "Accent", c.Colors.Accent),
			colorField("colors.background", "Background", c.Colors.Background),
			colorField("colors.text", "Text", c.Colors.Text),
		),
	}}
}

func (Info) RenderPreview(cfg model.Config, _ PreviewState) *markup.Node {
	c, ok := cfg.(*model.InfoConfig)
	if !ok {
		return RenderFailed(model.TemplateInfo)
	}
	return preview(model.TemplateInfo, infoCSS, infoCard(c))
}

func (Info) GenerateArtifact(objectID string, cfg model.Config, ts time.Time) (model.Artifact, error) {
	c, ok := cfg.(*model.InfoConfig)
	if !ok {
		return model.Artifact{}, wrongConfig(model.TemplateInfo, cfg)
	}
	return artifact(objectID, model.TemplateInfo, c, infoCSS, infoCard(c), ts)
}

func (Info) AddItem(cfg model.Config, list string) error {
	c, ok := cfg.(*model.InfoConfig)
	if !ok {
		return wrongConfig(model.TemplateInfo, cfg)
	}
	if list != "paragraphs" {
		return fmt.Errorf("info template has no list %q", list)
	}
	c.Paragraphs = append(c.Paragraphs, "")
	return nil
}

func (Info) RemoveItem(cfg model.Config, list string, index int) error {
	c, ok := cfg.(*model.InfoConfig)
	if !ok {
		return wrongConfig(model.TemplateInfo, cfg)
	}
	if list != "paragraphs" {
		return fmt.Errorf("info template has no list %q", list)
	}
	if index < 0 || index >= len(c.Paragraphs) {
		return fmt.Errorf("paragraph index %d out of range", index)
	}
	c.Paragraphs = append(c.Paragraphs[:index], c.Paragraphs[index+1:]...)
	return nil
}

func infoCard(c *model.InfoConfig) *markup.Node {
	vars := fmt.Sprintf("--atl-accent:%s;--atl-bg:%s;--atl-fg:%s",
		markup.SafeColor(c.Colors.Accent, "#0ea5e9"),
		markup.SafeColor(c.Colors.Background, "#ffffff"),
		markup.SafeColor(c.Colors.Text, "#1f2430"))

	var image *markup.Node
	if strings.TrimSpace(c.Image) != "" {
		image = markup.Img(markup.Class("atl-info-image"), markup.Src(c.Image), markup.A("alt", c.Title))
	}

	var icon *markup.Node
	if strings.TrimSpace(c.Icon) != "" {
		icon = markup.Span(markup.Attrs(markup.Class("atl-info-icon")), markup.Icon(c.Icon))
	}

	var subtitle *markup.Node
	if c.Subtitle != "" {
		subtitle = markup.P(markup.Attrs(markup.Class("atl-info-subtitle")), markup.Text(c.Subtitle))
	}

	body := make([]*markup.Node, 0, len(c.Paragraphs))
	for _, p := range nonEmpty(c.Paragraphs) {
		body = append(body, markup.P(markup.Attrs(markup.Class("atl-info-paragraph")), markup.Text(p)))
	}

	return markup.Div(markup.Attrs(markup.Class("atl-info"), markup.Style(vars)),
		image,
		markup.Div(markup.Attrs(markup.Class("atl-info-body")),
			markup.Div(markup.Attrs(markup.Class("atl-info-head")),
				icon,
				markup.Div(nil,
					markup.H2(markup.Attrs(markup.Class("atl-info-title")), markup.Text(c.Title)),
					subtitle,
				),
			),
			markup.Div(markup.Attrs(markup.Class("atl-info-content")), body...),
			cardButtons("atl-info-actions", c.Button, model.Button{}),
		),
	)
}

const infoCSS = `.atl-info{border-radius:18px;overflow:hidden;background:var(--atl-bg);color:var(--atl-fg);box-shadow:0 18px 40px rgba(0,0,0,.25);border-top:5px solid var(--atl-accent)}
.atl-info-image{display:block;width:100%;max-height:220px;object-fit:cover}
.atl-info-body{padding:20px 22px 24px}
.atl-info-head{display:flex;align-items:center;gap:12px;margin-bottom:12px}
.atl-info-icon{width:44px;height:44px;border-radius:12px;display:flex;align-items:center;justify-content:center;background:var(--atl-accent);color:#fff;font-size:20px;flex-shrink:0}
.atl-info-title{margin:0;font-size:21px}
.atl-info-subtitle{margin:2px 0 0;font-size:13px;opacity:.7}
.atl-info-paragraph{margin:0 0 10px}`
