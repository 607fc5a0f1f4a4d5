package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContactEntryRefreshHref(t *testing.T) {
	phone := ContactEntry{Type: ContactPhone, Value: "06 12 34 56 78"}
	phone.RefreshHref()
	assert.Equal(t, "tel:0612345678", phone.Href)

	email := ContactEntry{Type: ContactEmail, Value: " a@b.com "}
	email.RefreshHref()
	assert.Equal(t, "mailto:a@b.com", email.Href)

	site := ContactEntry{Type: ContactWebsite, Value: "example.com", Href: "https://example.com/custom"}
	site.RefreshHref()
	assert.Equal(t, "https://example.com/custom", site.Href, "non derived types keep their href")
}

func TestContactEntryIsEnabled(t *testing.T) {
	off := false
	assert.True(t, ContactEntry{}.IsEnabled())
	assert.False(t, ContactEntry{Enabled: &off}.IsEnabled())
}

func TestCloneIsDeep(t *testing.T) {
	on := true
	contact := &ContactConfig{Name: "A", Contacts: []ContactEntry{{Type: ContactPhone, Enabled: &on}}}
	cloned := contact.Clone().(*ContactConfig)
	cloned.Contacts[0].Type = ContactEmail
	*cloned.Contacts[0].Enabled = false
	assert.Equal(t, ContactPhone, contact.Contacts[0].Type)
	assert.True(t, *contact.Contacts[0].Enabled)

	product := &ProductConfig{Images: []string{"a.jpg"}, Tags: []Tag{{Label: "x"}}, Services: []string{}}
	clonedProduct := product.Clone().(*ProductConfig)
	clonedProduct.Images[0] = "b.jpg"
	clonedProduct.Tags[0].Label = "y"
	assert.Equal(t, "a.jpg", product.Images[0])
	assert.Equal(t, "x", product.Tags[0].Label)
	assert.NotNil(t, clonedProduct.Services, "empty lists stay empty, not nil")
}

func TestDecodeConfig(t *testing.T) {
	cfg, err := DecodeConfig(TemplateIframe, `{"title":"Doc","url":"https://example.com","width":640}`)
	require.NoError(t, err)
	iframe, ok := cfg.(*IframeConfig)
	require.True(t, ok)
	assert.Equal(t, "https://example.com", iframe.URL)
	assert.Equal(t, 640, iframe.Width)

	_, err = DecodeConfig(TemplateIframe, `{"title":`)
	assert.Error(t, err)

	_, err = DecodeConfig(TemplateIframe, "")
	assert.Error(t, err)

	_, err = DecodeConfig("poster", `{}`)
	assert.True(t, errors.Is(err, ErrUnknownTemplateType))
}

func TestEncodeDecodeKeepsContactShape(t *testing.T) {
	original := &ContactConfig{
		Name:     "Jeanne",
		Theme:    ContactTheme{Hue: 210, Glow: 40},
		Contacts: []ContactEntry{{Type: ContactEmail, Label: "Mail", Value: "j@x.fr", Href: "mailto:j@x.fr"}},
	}
	raw, err := EncodeConfig(original)
	require.NoError(t, err)
	decoded, err := DecodeConfig(TemplateContact, raw)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestParseTemplateType(t *testing.T) {
	got, err := ParseTemplateType("youtube")
	require.NoError(t, err)
	assert.Equal(t, TemplateYoutube, got)

	_, err = ParseTemplateType("Youtube")
	assert.ErrorIs(t, err, ErrUnknownTemplateType)
}

func TestNormalizeVideoID(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ?t=3", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"not a video", ""},
		{"", ""},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, NormalizeVideoID(tc.in), "input %q", tc.in)
	}
}
