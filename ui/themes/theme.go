// Package themes holds the color palettes for the console UI.
package themes

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

type ThemeName string

const (
	ThemeSolarized ThemeName = "solarized"
	ThemeGruvbox   ThemeName = "gruvbox"
	ThemeNord      ThemeName = "nord"
	ThemeMono      ThemeName = "mono"
	ThemeRandom    ThemeName = "random"
)

var themeNames = []ThemeName{ThemeRandom, ThemeSolarized, ThemeGruvbox, ThemeNord, ThemeMono}

// Theme is a tview color palette.
type Theme struct {
	PrimitiveBackgroundColor    tcell.Color
	ContrastBackgroundColor     tcell.Color
	MoreContrastBackgroundColor tcell.Color
	BorderColor                 tcell.Color
	TitleColor                  tcell.Color
	GraphicsColor               tcell.Color
	PrimaryTextColor            tcell.Color
	SecondaryTextColor          tcell.Color
	TertiaryTextColor           tcell.Color
	InverseTextColor            tcell.Color
	ContrastSecondaryTextColor  tcell.Color
}

// ApplyByName applies a named theme to the application's global styles.
func ApplyByName(app *tview.Application, name string) error {
	themeName := ThemeName(name)
	if !slices.Contains(themeNames, themeName) {
		return fmt.Errorf("invalid theme name: %s", name)
	}
	byName(themeName).Apply(app)
	return nil
}

// Apply writes the palette into tview.Styles. Styles are global; the app
// parameter is accepted for API symmetry.
func (t *Theme) Apply(app *tview.Application) {
	tview.Styles.PrimitiveBackgroundColor = t.PrimitiveBackgroundColor
	tview.Styles.ContrastBackgroundColor = t.ContrastBackgroundColor
	tview.Styles.MoreContrastBackgroundColor = t.MoreContrastBackgroundColor
	tview.Styles.BorderColor = t.BorderColor
	tview.Styles.TitleColor = t.TitleColor
	tview.Styles.GraphicsColor = t.GraphicsColor
	tview.Styles.PrimaryTextColor = t.PrimaryTextColor
	tview.Styles.SecondaryTextColor = t.SecondaryTextColor
	tview.Styles.TertiaryTextColor = t.TertiaryTextColor
	tview.Styles.InverseTextColor = t.InverseTextColor
	tview.Styles.ContrastSecondaryTextColor = t.ContrastSecondaryTextColor
}

// NewSolarized returns the Solarized Dark palette.
func NewSolarized() *Theme {
	base03 := tcell.NewRGBColor(0, 43, 54)
	base02 := tcell.NewRGBColor(7, 54, 66)
	base01 := tcell.NewRGBColor(88, 110, 117)
	base0 := tcell.NewRGBColor(131, 148, 150)
	base1 := tcell.NewRGBColor(147, 161, 161)
	base2 := tcell.NewRGBColor(238, 232, 213)
	base3 := tcell.NewRGBColor(253, 246, 227)
	yellow := tcell.NewRGBColor(181, 137, 0)
	cyan := tcell.NewRGBColor(42, 161, 152)

	return &Theme{
		PrimitiveBackgroundColor:    base03,
		ContrastBackgroundColor:     base02,
		MoreContrastBackgroundColor: base01,
		BorderColor:                 base0,
		TitleColor:                  base1,
		GraphicsColor:               base0,
		PrimaryTextColor:            base0,
		SecondaryTextColor:          yellow,
		TertiaryTextColor:           cyan,
		InverseTextColor:            base3,
		ContrastSecondaryTextColor:  base2,
	}
}

// NewGruvbox returns the Gruvbox Dark palette.
func NewGruvbox() *Theme {
	bg0 := tcell.NewRGBColor(40, 40, 40)
	bg1 := tcell.NewRGBColor(60, 56, 54)
	bg2 := tcell.NewRGBColor(80, 73, 69)
	fg0 := tcell.NewRGBColor(235, 219, 178)
	fg1 := tcell.NewRGBColor(251, 241, 199)
	yellow := tcell.NewRGBColor(215, 153, 33)
	aqua := tcell.NewRGBColor(104, 157, 106)
	gray := tcell.NewRGBColor(146, 131, 116)

	return &Theme{
		PrimitiveBackgroundColor:    bg0,
		ContrastBackgroundColor:     bg1,
		MoreContrastBackgroundColor: bg2,
		BorderColor:                 gray,
		TitleColor:                  fg1,
		GraphicsColor:               gray,
		PrimaryTextColor:            fg0,
		SecondaryTextColor:          yellow,
		TertiaryTextColor:           aqua,
		InverseTextColor:            fg1,
		ContrastSecondaryTextColor:  fg0,
	}
}

// NewNord returns the Nord palette.
// Based on: https://www.nordtheme.com
func NewNord() *Theme {
	nord0 := tcell.NewRGBColor(46, 52, 64)
	nord1 := tcell.NewRGBColor(59, 66, 82)
	nord2 := tcell.NewRGBColor(67, 76, 94)
	nord4 := tcell.NewRGBColor(216, 222, 233)
	nord6 := tcell.NewRGBColor(236, 239, 244)
	nord8 := tcell.NewRGBColor(136, 192, 208)
	nord13 := tcell.NewRGBColor(235, 203, 139)
	nord3 := tcell.NewRGBColor(76, 86, 106)

	return &Theme{
		PrimitiveBackgroundColor:    nord0,
		ContrastBackgroundColor:     nord1,
		MoreContrastBackgroundColor: nord2,
		BorderColor:                 nord3,
		TitleColor:                  nord6,
		GraphicsColor:               nord3,
		PrimaryTextColor:            nord4,
		SecondaryTextColor:          nord13,
		TertiaryTextColor:           nord8,
		InverseTextColor:            nord6,
		ContrastSecondaryTextColor:  nord4,
	}
}

// NewMono returns a plain monochrome palette for terminals with poor color
// support.
func NewMono() *Theme {
	black := tcell.ColorBlack
	white := tcell.ColorWhite
	gray := tcell.ColorGray
	silver := tcell.ColorSilver

	return &Theme{
		PrimitiveBackgroundColor:    black,
		ContrastBackgroundColor:     black,
		MoreContrastBackgroundColor: gray,
		BorderColor:                 silver,
		TitleColor:                  white,
		GraphicsColor:               silver,
		PrimaryTextColor:            silver,
		SecondaryTextColor:          white,
		TertiaryTextColor:           gray,
		InverseTextColor:            black,
		ContrastSecondaryTextColor:  silver,
	}
}

// NewRandom picks one of the named palettes at random.
func NewRandom() *Theme {
	name := themeNames[1+rand.IntN(len(themeNames)-1)] // #nosec G404 // cosmetic choice only
	return byName(name)
}

func byName(name ThemeName) *Theme {
	switch name {
	case ThemeRandom:
		return NewRandom()
	case ThemeSolarized:
		return NewSolarized()
	case ThemeGruvbox:
		return NewGruvbox()
	case ThemeNord:
		return NewNord()
	case ThemeMono:
		return NewMono()
	}
	return NewSolarized()
}
