package idcard

import "strings"

// Theme carries the palette used for generated (non-image) elements.
type Theme struct {
	Name         string `json:"name"`
	GradientFrom string `json:"gradient_from"`
	GradientTo   string `json:"gradient_to"`
	Placeholder  string `json:"placeholder"`
	Text         string `json:"text"`
	Muted        string `json:"muted"`
}

var (
	// LightTheme is the default palette.
	LightTheme = Theme{
		Name:         "light",
		GradientFrom: "#1e3a8a",
		GradientTo:   "#93c5fd",
		Placeholder:  "#e5e7eb",
		Text:         "#111827",
		Muted:        "#4b5563",
	}
	// DarkTheme is used when the viewer prefers dark mode.
	DarkTheme = Theme{
		Name:         "dark",
		GradientFrom: "#0f172a",
		GradientTo:   "#334155",
		Placeholder:  "#374151",
		Text:         "#f9fafb",
		Muted:        "#9ca3af",
	}
)

// ThemeByName returns the named preset, falling back to LightTheme.
func ThemeByName(name string) Theme {
	if strings.EqualFold(strings.TrimSpace(name), DarkTheme.Name) {
		return DarkTheme
	}
	return LightTheme
}

func (t Theme) orDefault() Theme {
	if t.Name == "" {
		return LightTheme
	}
	return t
}
