package templates

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"showroom-popup-builder/internal/markup"
	"showroom-popup-builder/internal/model"
)

// Product is the product-sheet template with a small image gallery.
type Product struct{}

func (Product) Descriptor() model.TemplateDescriptor {
	return model.TemplateDescriptor{
		ID:          model.TemplateProduct,
		Name:        "Product sheet",
		Icon:        "fa-tag",
		Description: "Product with gallery, price, tags, services and call-to-action buttons.",
	}
}

func (Product) DefaultConfig() model.Config {
	return &model.ProductConfig{
		Title:       "Atlantis lounge chair",
		Subtitle:    "Showroom collection",
		Price:       "1 290",
		Currency:    "€",
		Description: "Solid oak frame and hand-stitched upholstery, available in three finishes.",
		Images: []string{
			"https://cdn.atlantis-city.com/samples/product-1.jpg",
			"https://cdn.atlantis-city.com/samples/product-2.jpg",
		},
		Tags: []model.Tag{
			{Icon: "fa-leaf", Label: "Eco-designed"},
			{Icon: "fa-truck", Label: "Free delivery"},
		},
		Services:        []string{"2-year warranty", "Installation included"},
		PrimaryButton:   model.Button{Label: "Buy now", URL: "https://atlantis-city.com/shop", Enabled: true},
		SecondaryButton: model.Button{Label: "More info", URL: "", Enabled: false},
		Colors:          model.Palette{Accent: "#2563eb", Background: "#ffffff", Text: "#1f2430"},
	}
}

func (Product) RenderForm(cfg model.Config) Form {
	c, ok := cfg.(*model.ProductConfig)
	if !ok {
		return Form{}
	}

	images := make([]*markup.Node, 0, len(c.Images)+2)
	for i, img := range c.Images {
		images = append(images, listItem("images", i, urlField(itemPath("images", i, ""), "Image "+strconv.Itoa(i+1), img)))
	}
	full := len(c.Images) >= model.MaxProductImages
	images = append(images,
		markup.P(markup.Attrs(markup.Class("editor-hint")), markup.Textf("%d / %d images", len(c.Images), model.MaxProductImages)),
		addButton("images", "Add image", full),
	)

	tags := make([]*markup.Node, 0, len(c.Tags)+1)
	for i, tag := range c.Tags {
		tags = append(tags, listItem("tags", i,
			textField(itemPath("tags", i, "icon"), "Icon", tag.Icon, "fa-star"),
			textField(itemPath("tags", i, "label"), "Label", tag.Label, ""),
		))
	}
	tags = append(tags, addButton("tags", "Add tag", false))

	services := make([]*markup.Node, 0, len(c.Services)+1)
	for i, s := range c.Services {
		services = append(services, listItem("services", i, textField(itemPath("services", i, ""), "Service", s, "")))
	}
	services = append(services, addButton("services", "Add service", false))

	return Form{Sections: []Section{
		section("general", "General", []string{"title", "subtitle", "price", "currency", "description"},
			textField("title", "Title", c.Title, ""),
			textField("subtitle", "Subtitle", c.Subtitle, ""),
			textField("price", "Price", c.Price, "0"),
			textField("currency", "Currency", c.Currency, "€"),
			textArea("description", "Description", c.Description, 4),
		),
		section("gallery", "Gallery", []string{"images"}, images...),
		section("tags", "Tags", []string{"tags"}, tags...),
		section("services", "Services", []string{"services"}, services...),
		section("buttons", "Buttons", []string{"primaryButton", "secondaryButton"},
			buttonFields("primaryButton", "Primary button", c.PrimaryButton),
			buttonFields("secondaryButton", "Secondary button", c.SecondaryButton),
		),
		section("colors", "Colors", []string{"colors"},
			colorField("colors.accent", "Accent", c.Colors.Accent),
			colorField("colors.background", "Background", c.Colors.Background),
			colorField("colors.text", "Text", c.Colors.Text),
		),
	}}
}

func (Product) RenderPreview(cfg model.Config, st PreviewState) *markup.Node {
	c, ok := cfg.(*model.ProductConfig)
	if !ok {
		return RenderFailed(model.TemplateProduct)
	}
	return preview(model.TemplateProduct, productCSS, productCard(c, st))
}

func (Product) GenerateArtifact(objectID string, cfg model.Config, ts time.Time) (model.Artifact, error) {
	c, ok := cfg.(*model.ProductConfig)
	if !ok {
		return model.Artifact{}, wrongConfig(model.TemplateProduct, cfg)
	}
	return artifact(objectID, model.TemplateProduct, c, productCSS, productCard(c, PreviewState{}), ts)
}

func (Product) AddItem(cfg model.Config, list string) error {
	c, ok := cfg.(*model.ProductConfig)
	if !ok {
		return wrongConfig(model.TemplateProduct, cfg)
	}
	switch list {
	case "images":
		if len(c.Images) >= model.MaxProductImages {
			return fmt.Errorf("%w: at most %d images", ErrGalleryFull, model.MaxProductImages)
		}
		c.Images = append(c.Images, "")
	case "tags":
		c.Tags = append(c.Tags, model.Tag{Icon: "fa-star", Label: ""})
	case "services":
		c.Services = append(c.Services, "")
	default:
		return fmt.Errorf("product template has no list %q", list)
	}
	return nil
}

func (Product) RemoveItem(cfg model.Config, list string, index int) error {
	c, ok := cfg.(*model.ProductConfig)
	if !ok {
		return wrongConfig(model.TemplateProduct, cfg)
	}
	var n int
	switch list {
	case "images":
		n = len(c.Images)
	case "tags":
		n = len(c.Tags)
	case "services":
		n = len(c.Services)
	default:
		return fmt.Errorf("product template has no list %q", list)
	}
	if index < 0 || index >= n {
		return fmt.Errorf("%s index %d out of range", list, index)
	}
	switch list {
	case "images":
		c.Images = append(c.Images[:index], c.Images[index+1:]...)
	case "tags":
		c.Tags = append(c.Tags[:index], c.Tags[index+1:]...)
	case "services":
		c.Services = append(c.Services[:index], c.Services[index+1:]...)
	}
	return nil
}

func productCard(c *model.ProductConfig, st PreviewState) *markup.Node {
	vars := fmt.Sprintf("--atl-accent:%s;--atl-bg:%s;--atl-fg:%s",
		markup.SafeColor(c.Colors.Accent, "#2563eb"),
		markup.SafeColor(c.Colors.Background, "#ffffff"),
		markup.SafeColor(c.Colors.Text, "#1f2430"))

	images := nonEmpty(c.Images)
	active := clampIndex(st.ActiveImage, len(images))

	var gallery *markup.Node
	if len(images) == 0 {
		gallery = markup.Div(markup.Attrs(markup.Class("atl-product-gallery atl-product-noimage")), markup.Icon("fa-image"))
	} else {
		thumbs := make([]*markup.Node, 0, len(images))
		for i, img := range images {
			cls := "atl-product-thumb"
			if i == active {
				cls += " is-active"
			}
			thumbs = append(thumbs, markup.Button(markup.Attrs(
				markup.A("type", "button"),
				markup.Class(cls),
				markup.Data("action", "select-image"),
				markup.Data("index", strconv.Itoa(i)),
				markup.Data("gallery-index", strconv.Itoa(i)),
				markup.Data("src", markup.SafeSrc(img)),
			), markup.Img(markup.Src(img), markup.A("alt", ""))))
		}
		var strip *markup.Node
		if len(images) > 1 {
			strip = markup.Div(markup.Attrs(markup.Class("atl-product-thumbs")), thumbs...)
		}
		gallery = markup.Div(markup.Attrs(markup.Class("atl-product-gallery")),
			markup.Img(markup.Class("atl-product-main"), markup.Data("gallery-main", "true"), markup.Src(images[active]), markup.A("alt", c.Title)),
			strip,
		)
	}

	var tags *markup.Node
	if len(c.Tags) > 0 {
		items := make([]*markup.Node, 0, len(c.Tags))
		for _, t := range c.Tags {
			if strings.TrimSpace(t.Label) == "" {
				continue
			}
			items = append(items, markup.Span(markup.Attrs(markup.Class("atl-product-tag")), markup.Icon(t.Icon), markup.Text(" "+t.Label)))
		}
		tags = markup.Div(markup.Attrs(markup.Class("atl-product-tags")), items...)
	}

	var services *markup.Node
	if svc := nonEmpty(c.Services); len(svc) > 0 {
		items := make([]*markup.Node, 0, len(svc))
		for _, s := range svc {
			items = append(items, markup.Li(nil, markup.Icon("fa-check"), markup.Text(" "+s)))
		}
		services = markup.Ul(markup.Attrs(markup.Class("atl-product-services")), items...)
	}

	var price *markup.Node
	if strings.TrimSpace(c.Price) != "" {
		price = markup.P(markup.Attrs(markup.Class("atl-product-price")), markup.Text(strings.TrimSpace(c.Price+" "+c.Currency)))
	}

	var subtitle *markup.Node
	if c.Subtitle != "" {
		subtitle = markup.P(markup.Attrs(markup.Class("atl-product-subtitle")), markup.Text(c.Subtitle))
	}

	var description *markup.Node
	if c.Description != "" {
		description = markup.P(markup.Attrs(markup.Class("atl-product-description")), markup.Text(c.Description))
	}

	return markup.Div(markup.Attrs(markup.Class("atl-product"), markup.Style(vars)),
		gallery,
		markup.Div(markup.Attrs(markup.Class("atl-product-body")),
			subtitle,
			markup.H2(markup.Attrs(markup.Class("atl-product-title")), markup.Text(c.Title)),
			price,
			tags,
			description,
			services,
			cardButtons("atl-product-actions", c.PrimaryButton, c.SecondaryButton),
		),
	)
}

// cardButtons renders the enabled call-to-action buttons, or nothing.
func cardButtons(class string, primary, secondary model.Button) *markup.Node {
	var btns []*markup.Node
	if primary.Enabled && strings.TrimSpace(primary.Label) != "" {
		btns = append(btns, ctaLink("atl-btn atl-btn-primary", primary))
	}
	if secondary.Enabled && strings.TrimSpace(secondary.Label) != "" {
		btns = append(btns, ctaLink("atl-btn atl-btn-secondary", secondary))
	}
	if len(btns) == 0 {
		return nil
	}
	return markup.Div(markup.Attrs(markup.Class(class)), btns...)
}

func ctaLink(class string, b model.Button) *markup.Node {
	return markup.Link(markup.Attrs(
		markup.Class(class),
		markup.Href(b.URL),
		markup.A("target", "_blank"),
		markup.A("rel", "noopener noreferrer"),
	), markup.Text(b.Label))
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

const productCSS = `.atl-product{border-radius:18px;overflow:hidden;background:var(--atl-bg);color:var(--atl-fg);box-shadow:0 18px 40px rgba(0,0,0,.25)}
.atl-product-gallery{background:#0f1115}
.atl-product-main{display:block;width:100%;height:280px;object-fit:cover}
.atl-product-noimage{display:flex;align-items:center;justify-content:center;height:200px;color:#6b7280;font-size:40px}
.atl-product-thumbs{display:flex;gap:6px;padding:8px;background:rgba(0,0,0,.4)}
.atl-product-thumb{border:2px solid transparent;padding:0;border-radius:6px;overflow:hidden;cursor:pointer;background:none;width:56px;height:42px}
.atl-product-thumb img{width:100%;height:100%;object-fit:cover;display:block}
.atl-product-thumb.is-active{border-color:var(--atl-accent)}
.atl-product-body{padding:20px 22px 24px}
.atl-product-subtitle{margin:0;font-size:12px;text-transform:uppercase;letter-spacing:.08em;opacity:.65}
.atl-product-title{margin:4px 0 6px;font-size:22px}
.atl-product-price{margin:0 0 10px;font-size:20px;font-weight:700;color:var(--atl-accent)}
.atl-product-tags{display:flex;flex-wrap:wrap;gap:6px;margin-bottom:10px}
.atl-product-tag{font-size:12px;padding:4px 10px;border-radius:999px;border:1px solid var(--atl-accent);color:var(--atl-accent)}
.atl-product-description{margin:0 0 10px}
.atl-product-services{list-style:none;padding:0;margin:0 0 14px}
.atl-product-services li{margin:4px 0}
.atl-product-services i{color:var(--atl-accent)}`
