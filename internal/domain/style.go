package domain

// Style enumerates the closed set of generation styles. Each style maps to a
// dedicated prompt bot configured in the credential snapshot.
type Style string

const (
	StyleCute          Style = "cute"
	StyleSteampunk     Style = "steampunk"
	StyleJapaneseComic Style = "japanese_comic"
	StyleAmericanComic Style = "american_comic"
	StyleProfession    Style = "profession"
	StyleCyberpunk     Style = "cyberpunk"
	StyleGothic        Style = "gothic"
	StyleRealistic     Style = "realistic"
)

var styles = map[Style]struct{}{
	StyleCute:          {},
	StyleSteampunk:     {},
	StyleJapaneseComic: {},
	StyleAmericanComic: {},
	StyleProfession:    {},
	StyleCyberpunk:     {},
	StyleGothic:        {},
	StyleRealistic:     {},
}

// ParseStyle validates a style selector against the closed set.
func ParseStyle(s string) (Style, error) {
	st := Style(s)
	if _, ok := styles[st]; !ok {
		return "", ErrInvalidStyle
	}
	return st, nil
}

// Styles lists the closed set in a stable order.
func Styles() []Style {
	return []Style{
		StyleCute, StyleSteampunk, StyleJapaneseComic, StyleAmericanComic,
		StyleProfession, StyleCyberpunk, StyleGothic, StyleRealistic,
	}
}

// DisplayName returns a human readable label for the style.
func (s Style) DisplayName() string {
	switch s {
	case StyleJapaneseComic:
		return titleCase("japanese comic")
	case StyleAmericanComic:
		return titleCase("american comic")
	default:
		return titleCase(string(s))
	}
}
