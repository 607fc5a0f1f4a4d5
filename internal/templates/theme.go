package templates

import "fmt"

// hsl formats a CSS color from a hue and saturation/lightness percentages.
func hsl(hue, sat, light int) string {
	return fmt.Sprintf("hsl(%d, %d%%, %d%%)", normalizeHue(hue), sat, light)
}

func hsla(hue, sat, light int, alpha float64) string {
	return fmt.Sprintf("hsla(%d, %d%%, %d%%, %.2f)", normalizeHue(hue), sat, light, alpha)
}

func normalizeHue(h int) int {
	h %= 360
	if h < 0 {
		h += 360
	}
	return h
}

// contactPalette derives every color of the contact card from one hue.
type contactPalette struct {
	GradientFrom string
	GradientTo   string
	Accent       string
	AccentSoft   string
	Glow         string
	Text         string
}

func newContactPalette(hue, glow int) contactPalette {
	glow = clamp(glow, 0, 100)
	return contactPalette{
		GradientFrom: hsl(hue, 72, 46),
		GradientTo:   hsl(hue+40, 68, 32),
		Accent:       hsl(hue, 85, 60),
		AccentSoft:   hsla(hue, 85, 60, 0.18),
		Glow:         fmt.Sprintf("0 0 %dpx %s", glow, hsla(hue, 90, 60, 0.65)),
		Text:         hsl(hue, 30, 97),
	}
}
