package tui

// Palette holds the color roles for one theme.
type Palette struct {
	Header       string
	Footer       string
	Foreground   string
	Dim          string
	Accent       string
	UnreadBadge  string
	Outgoing     string
	Incoming     string
	Provisional  string
	ErrorText    string
	SelectedBack string
}

var themes = map[Theme]Palette{
	ThemeDefault: {
		Header:       "24",
		Footer:       "236",
		Foreground:   "252",
		Dim:          "244",
		Accent:       "39",
		UnreadBadge:  "203",
		Outgoing:     "114",
		Incoming:     "252",
		Provisional:  "244",
		ErrorText:    "203",
		SelectedBack: "238",
	},
	ThemeHighContrast: {
		Header:       "21",
		Footer:       "0",
		Foreground:   "15",
		Dim:          "7",
		Accent:       "51",
		UnreadBadge:  "196",
		Outgoing:     "46",
		Incoming:     "15",
		Provisional:  "8",
		ErrorText:    "196",
		SelectedBack: "240",
	},
}

func paletteFor(theme Theme) Palette {
	if p, ok := themes[theme]; ok {
		return p
	}
	return themes[ThemeDefault]
}
