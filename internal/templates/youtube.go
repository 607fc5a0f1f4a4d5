package templates

import (
	"net/url"
	"strconv"
	"time"

	"showroom-popup-builder/internal/markup"
	"showroom-popup-builder/internal/model"
)

// Youtube embeds a single YouTube video through the privacy-enhanced domain.
type Youtube struct{}

const youtubeEmbedBase = "https://www.youtube-nocookie.com/embed/"

func (Youtube) Descriptor() model.TemplateDescriptor {
	return model.TemplateDescriptor{
		ID:          model.TemplateYoutube,
		Name:        "YouTube video",
		Icon:        "fa-play",
		Description: "A YouTube video with playback options.",
	}
}

func (Youtube) DefaultConfig() model.Config {
	return &model.YoutubeConfig{Mute: true}
}

func (Youtube) RenderForm(cfg model.Config) Form {
	c, ok := cfg.(*model.YoutubeConfig)
	if !ok {
		return Form{}
	}

	var hint *markup.Node
	if c.VideoID != "" && model.NormalizeVideoID(c.VideoID) == "" {
		hint = markup.P(markup.Attrs(markup.Class("editor-hint editor-error")),
			markup.Text("Not a valid YouTube link or video id."))
	}

	return Form{Sections: []Section{
		section("video", "Video", []string{"title", "videoId"},
			textField("title", "Title", c.Title, ""),
			textField("videoId", "Video link or id", c.VideoID, "https://youtu.be/..."),
			hint,
		),
		section("playback", "Playback", []string{"autoplay", "mute", "loop", "start"},
			checkbox("autoplay", "Autoplay", c.Autoplay),
			checkbox("mute", "Muted", c.Mute),
			checkbox("loop", "Loop", c.Loop),
			numberField("start", "Start at (s)", c.Start, 0, 86400),
		),
	}}
}

func (Youtube) RenderPreview(cfg model.Config, _ PreviewState) *markup.Node {
	c, ok := cfg.(*model.YoutubeConfig)
	if !ok {
		return RenderFailed(model.TemplateYoutube)
	}
	return preview(model.TemplateYoutube, embedCSS, youtubeCard(c))
}

func (Youtube) GenerateArtifact(objectID string, cfg model.Config, ts time.Time) (model.Artifact, error) {
	c, ok := cfg.(*model.YoutubeConfig)
	if !ok {
		return model.Artifact{}, wrongConfig(model.TemplateYoutube, cfg)
	}
	return artifact(objectID, model.TemplateYoutube, c, embedCSS, youtubeCard(c), ts)
}

func youtubeCard(c *model.YoutubeConfig) *markup.Node {
	id := model.NormalizeVideoID(c.VideoID)
	if id == "" {
		return emptyEmbed("fa-play", "No video configured yet.")
	}
	return embedFrame(c.Title, 16, 9,
		markup.El("iframe", markup.Attrs(
			markup.Src(youtubeEmbedURL(id, c)),
			markup.A("title", c.Title),
			markup.A("allow", "accelerometer; autoplay; encrypted-media; gyroscope; picture-in-picture"),
			markup.Flag("allowfullscreen", true),
		)),
	)
}

func youtubeEmbedURL(id string, c *model.YoutubeConfig) string {
	q := url.Values{}
	if c.Autoplay {
		q.Set("autoplay", "1")
	}
	if c.Mute {
		q.Set("mute", "1")
	}
	if c.Loop {
		// A single video only loops when it is also its own playlist.
		q.Set("loop", "1")
		q.Set("playlist", id)
	}
	if c.Start > 0 {
		q.Set("start", strconv.Itoa(c.Start))
	}
	q.Set("rel", "0")
	return youtubeEmbedBase + id + "?" + q.Encode()
}
