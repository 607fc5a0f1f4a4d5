package templates

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"showroom-popup-builder/internal/markup"
	"showroom-popup-builder/internal/model"
)

// CDN assets a generated popup may reference.
const (
	FontStylesheet = "https://fonts.googleapis.com/css2?family=Inter:wght@400;600;700&display=swap"
	IconStylesheet = "https://cdnjs.cloudflare.com/ajax/libs/font-awesome/6.5.1/css/all.min.css"
)

// PreviewObjectID is the object id used by the editor's live preview.
const PreviewObjectID = "preview"

// baseCSS styles the popup shell shared by every template.
const baseCSS = `.atl-popup{position:relative;box-sizing:border-box;max-width:560px;width:100%;margin:0 auto;font-family:Inter,system-ui,sans-serif;line-height:1.45;color:#1f2430}
.atl-popup *{box-sizing:border-box}
.atl-popup-close{position:absolute;top:10px;right:12px;z-index:2;border:0;background:rgba(0,0,0,.35);color:#fff;width:30px;height:30px;border-radius:50%;cursor:pointer;font-size:18px;line-height:30px}
.atl-empty{display:flex;flex-direction:column;align-items:center;justify-content:center;gap:8px;min-height:220px;border:2px dashed #c5cad3;border-radius:14px;color:#6b7280;background:#f7f8fa;text-align:center;padding:24px}
.atl-empty i{font-size:32px}
.atl-overlay{position:fixed;inset:0;z-index:9999;display:flex;align-items:center;justify-content:center;padding:24px;background:rgba(10,12,20,.55)}
.atl-product-actions,.atl-info-actions{display:flex;gap:10px;flex-wrap:wrap}
.atl-btn{display:inline-block;padding:10px 18px;border-radius:10px;font-weight:600;text-decoration:none}
.atl-btn-primary{background:var(--atl-accent);color:#fff}
.atl-btn-secondary{border:2px solid var(--atl-accent);color:var(--atl-accent)}`

// popupShell wraps a card in the markup shared by the preview and the artifact.
func popupShell(objectID string, t model.TemplateType, card *markup.Node) *markup.Node {
	return markup.Div(markup.Attrs(
		markup.Class("atl-popup atl-popup-"+string(t)),
		markup.Data("object", objectID),
		markup.Data("template", string(t)),
		markup.A("role", "dialog"),
	),
		markup.Button(markup.Attrs(
			markup.A("type", "button"),
			markup.Class("atl-popup-close"),
			markup.Data("popup-close", "true"),
			markup.A("aria-label", "Close"),
		), markup.Text("×")),
		card,
	)
}

// preview renders what the editor shows: the exact popup an end user sees.
func preview(t model.TemplateType, css string, card *markup.Node) *markup.Node {
	return markup.Fragment(
		markup.StyleSheet(baseCSS+"\n"+css),
		popupShell(PreviewObjectID, t, card),
	)
}

// artifact serializes the same card into the persisted popup.
func artifact(objectID string, t model.TemplateType, cfg model.Config, css string, card *markup.Node, ts time.Time) (model.Artifact, error) {
	if strings.TrimSpace(objectID) == "" {
		return model.Artifact{}, fmt.Errorf("object id is required to generate a %s artifact", t)
	}
	body := markup.Render(markup.Fragment(
		markup.Stylesheet(FontStylesheet),
		markup.Stylesheet(IconStylesheet),
		popupShell(objectID, t, card),
	))
	fullCSS := baseCSS + "\n" + css
	js, err := popupScript(objectID, t, cfg, body, fullCSS, ts)
	if err != nil {
		return model.Artifact{}, err
	}
	return model.Artifact{HTML: body, CSS: fullCSS, JS: js}, nil
}

// Document assembles an artifact into a standalone HTML page, used when the
// popup is shown inside an iframe.
func Document(title string, a model.Artifact) string {
	head := markup.Render(markup.Fragment(
		markup.El("meta", markup.Attrs(markup.A("charset", "utf-8"))),
		markup.El("meta", markup.Attrs(markup.A("name", "viewport"), markup.A("content", "width=device-width, initial-scale=1"))),
		markup.El("title", nil, markup.Text(title)),
		markup.StyleSheet(a.CSS),
	))
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html><head>")
	sb.WriteString(head)
	sb.WriteString("</head><body>")
	sb.WriteString(a.HTML)
	sb.WriteString("</body></html>\n")
	return sb.String()
}

// popupScript builds the JS registered under window.atlantisPopups[objectID].
// Every dynamic value is embedded as a JSON literal; encoding/json escapes
// <, > and & so the payload cannot close the surrounding script.
func popupScript(objectID string, t model.TemplateType, cfg model.Config, body, css string, ts time.Time) (string, error) {
	values := map[string]any{
		"id":        objectID,
		"template":  string(t),
		"html":      body,
		"css":       css,
		"config":    cfg,
		"generated": ts.UTC().Format(time.RFC3339),
	}
	literals := make(map[string]string, len(values))
	for k, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to encode popup %s for %s: %w", k, objectID, err)
		}
		literals[k] = string(data)
	}
	return fmt.Sprintf(popupScriptTemplate,
		literals["id"], literals["template"], literals["html"], literals["css"], literals["config"], literals["generated"],
	), nil
}

const popupScriptTemplate = `(function () {
  var id = %s, template = %s, html = %s, css = %s, config = %s, generated = %s;
  var registry = window.atlantisPopups = window.atlantisPopups || {};
  var root = null;
  function onClick(e) {
    if (e.target === root || e.target.closest("[data-popup-close]")) { close(); return; }
    var thumb = e.target.closest("[data-gallery-index]");
    if (thumb) {
      var main = root.querySelector("[data-gallery-main]");
      if (main) { main.src = thumb.getAttribute("data-src"); }
      root.querySelectorAll("[data-gallery-index]").forEach(function (t) { t.classList.toggle("is-active", t === thumb); });
    }
  }
  function show() {
    if (!root) {
      root = document.createElement("div");
      root.className = "atl-overlay";
      root.setAttribute("data-popup-root", id);
      root.innerHTML = "<style>" + css + "</style>" + html;
      root.addEventListener("click", onClick);
    }
    if (!root.parentNode) { document.body.appendChild(root); }
  }
  function close() {
    if (root && root.parentNode) { root.parentNode.removeChild(root); }
  }
  if (registry[id] && registry[id].close) { registry[id].close(); }
  registry[id] = { id: id, template: template, config: config, generated: generated, show: show, close: close };
})();
`
