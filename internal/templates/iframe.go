package templates

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"showroom-popup-builder/internal/markup"
	"showroom-popup-builder/internal/model"
)

// Iframe embeds an external page.
type Iframe struct{}

func (Iframe) Descriptor() model.TemplateDescriptor {
	return model.TemplateDescriptor{
		ID:          model.TemplateIframe,
		Name:        "Embedded page",
		Icon:        "fa-window-maximize",
		Description: "Any web page displayed inside the popup.",
	}
}

func (Iframe) DefaultConfig() model.Config {
	return &model.IframeConfig{
		Title:           "",
		URL:             "",
		Width:           640,
		Height:          420,
		AllowFullscreen: true,
	}
}

func (Iframe) RenderForm(cfg model.Config) Form {
	c, ok := cfg.(*model.IframeConfig)
	if !ok {
		return Form{}
	}
	return Form{Sections: []Section{
		section("general", "General", []string{"title", "url"},
			textField("title", "Title", c.Title, ""),
			urlField("url", "Page URL", c.URL),
		),
		section("layout", "Layout", []string{"width", "height", "allowFullscreen"},
			numberField("width", "Width (px)", c.Width, 200, 1600),
			numberField("height", "Height (px)", c.Height, 150, 1200),
			checkbox("allowFullscreen", "Allow fullscreen", c.AllowFullscreen),
		),
	}}
}

func (Iframe) RenderPreview(cfg model.Config, _ PreviewState) *markup.Node {
	c, ok := cfg.(*model.IframeConfig)
	if !ok {
		return RenderFailed(model.TemplateIframe)
	}
	return preview(model.TemplateIframe, embedCSS, iframeCard(c))
}

func (Iframe) GenerateArtifact(objectID string, cfg model.Config, ts time.Time) (model.Artifact, error) {
	c, ok := cfg.(*model.IframeConfig)
	if !ok {
		return model.Artifact{}, wrongConfig(model.TemplateIframe, cfg)
	}
	return artifact(objectID, model.TemplateIframe, c, embedCSS, iframeCard(c), ts)
}

func iframeCard(c *model.IframeConfig) *markup.Node {
	if strings.TrimSpace(c.URL) == "" {
		return emptyEmbed("fa-window-maximize", "No page configured yet.")
	}
	w, h := clamp(c.Width, 200, 1600), clamp(c.Height, 150, 1200)
	return embedFrame(c.Title, w, h,
		markup.El("iframe", markup.Attrs(
			markup.Src(c.URL),
			markup.A("title", c.Title),
			markup.A("width", strconv.Itoa(w)),
			markup.A("height", strconv.Itoa(h)),
			markup.A("loading", "lazy"),
			markup.A("referrerpolicy", "no-referrer"),
			markup.Flag("allowfullscreen", c.AllowFullscreen),
		)),
	)
}

// embedFrame wraps an iframe with its optional title and an aspect-ratio box.
func embedFrame(title string, w, h int, frame *markup.Node) *markup.Node {
	var heading *markup.Node
	if strings.TrimSpace(title) != "" {
		heading = markup.H3(markup.Attrs(markup.Class("atl-embed-title")), markup.Text(title))
	}
	return markup.Div(markup.Attrs(markup.Class("atl-embed")),
		heading,
		markup.Div(markup.Attrs(
			markup.Class("atl-embed-frame"),
			markup.Style(fmt.Sprintf("aspect-ratio:%d/%d", w, h)),
		), frame),
	)
}

// emptyEmbed is the placeholder shown instead of an embed with no source.
func emptyEmbed(icon, message string) *markup.Node {
	return markup.Div(markup.Attrs(markup.Class("atl-empty"), markup.Data("empty", "true")),
		markup.Icon(icon),
		markup.P(nil, markup.Text(message)),
	)
}

const embedCSS = `.atl-embed{border-radius:16px;overflow:hidden;background:#0f1115;color:#fff;box-shadow:0 18px 40px rgba(0,0,0,.3)}
.atl-embed-title{margin:0;padding:12px 16px;font-size:16px}
.atl-embed-frame{position:relative;width:100%}
.atl-embed-frame iframe{position:absolute;inset:0;width:100%;height:100%;border:0}`
