package templating

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showroom-popup-builder/internal/markup"
	"showroom-popup-builder/internal/model"
)

type panelView struct {
	Open              bool
	Object            model.ObjectTarget
	TemplateType      model.TemplateType
	Templates         []model.TemplateDescriptor
	Form              *markup.Node
	Preview           *markup.Node
	Status            struct{ Level, Message string }
	HasUnsavedChanges bool
	IsSaving          bool
	Generation        uint64
}

func TestPageRendersLayout(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)

	data := map[string]any{
		"CSRFToken": "tok123",
		"ActiveNav": "dashboard",
		"Page": map[string]any{
			"Space":          "atlantis",
			"CatalogEnabled": true,
			"CSRFToken":      "tok123",
			"Entries": []map[string]any{{
				"Target":       model.ObjectTarget{ID: "c1_obj", SpaceSlug: "atlantis"},
				"TemplateType": "contact",
				"UpdatedAt":    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
				"Published":    true,
			}},
			"Templates": []model.TemplateDescriptor{{ID: model.TemplateContact, Name: "Contact", Icon: "fa-address-card"}},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, e.Page(&buf, "dashboard.html", data))
	out := buf.String()
	assert.Contains(t, out, `<meta name="csrf-token" content="tok123">`)
	assert.Contains(t, out, `<title>Dashboard · Popup Builder</title>`)
	assert.Contains(t, out, `<td>c1_obj</td>`)
	assert.Contains(t, out, `id="catalog-rows"`)
	assert.Contains(t, out, `class="active">Dashboard`)

	assert.Error(t, e.Page(&buf, "missing.html", data))
}

func TestEditorPanelHostsMarkup(t *testing.T) {
	e, err := NewEngine()
	require.NoError(t, err)

	v := panelView{
		Open:         true,
		Object:       model.ObjectTarget{ID: "c1_obj", SpaceSlug: "atlantis"},
		TemplateType: model.TemplateInfo,
		Templates: []model.TemplateDescriptor{
			{ID: model.TemplateContact, Name: "Contact", Icon: "fa-address-card"},
			{ID: model.TemplateInfo, Name: "Info", Icon: "fa-circle-info"},
		},
		Form:              markup.Div(markup.Attrs(markup.Class("editor-form")), markup.Text("<b>escaped</b>")),
		Preview:           markup.P(nil, markup.Text("Jean Dupont")),
		HasUnsavedChanges: true,
		Generation:        3,
	}
	v.Status.Level, v.Status.Message = "warning", "Saved, scene not refreshed"

	html, err := e.PartialString("editor-panel", v)
	require.NoError(t, err)
	assert.Contains(t, html, `data-generation="3"`)
	assert.Contains(t, html, `data-dirty="true"`)
	assert.Contains(t, html, `<div class="editor-form">&lt;b&gt;escaped&lt;/b&gt;</div>`)
	assert.Contains(t, html, `<p>Jean Dupont</p>`)
	assert.Contains(t, html, `class="editor-type active"`)
	assert.Contains(t, html, `status-warning`)
	assert.Equal(t, 1, strings.Count(html, "editor-type active"))

	closed, err := e.PartialString("editor-panel", panelView{})
	require.NoError(t, err)
	assert.Contains(t, closed, "No object is being edited")
	assert.NotContains(t, closed, "editor-columns")

	_, err = e.PartialString("nope", nil)
	assert.Error(t, err)
}

func TestStatic(t *testing.T) {
	rec := httptest.NewRecorder()
	Static().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/editor.js", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/admin/editor/field")
}
