// ABOUTME: Icon set with Nerd Font detection and Unicode fallback
// ABOUTME: REVIEW_INSIGHT_NERD_FONTS forces the choice either way

package icons

import (
	"os"
	"strings"
	"sync"
)

var (
	useNerdFonts bool
	detectOnce   sync.Once
)

var nerdFontTerminals = []string{"iTerm.app", "alacritty", "WezTerm", "kitty", "ghostty"}

func detectNerdFonts() bool {
	if env := os.Getenv("REVIEW_INSIGHT_NERD_FONTS"); env != "" {
		return env == "1" || strings.EqualFold(env, "true")
	}

	term := os.Getenv("TERM")
	termProgram := os.Getenv("TERM_PROGRAM")
	for _, t := range nerdFontTerminals {
		if strings.Contains(termProgram, t) || strings.Contains(term, strings.ToLower(t)) {
			return true
		}
	}
	return os.Getenv("NERD_FONTS") == "1"
}

// HasNerdFonts reports whether Nerd Font glyphs should be used
func HasNerdFonts() bool {
	detectOnce.Do(func() {
		useNerdFonts = detectNerdFonts()
	})
	return useNerdFonts
}

// Icon has a Nerd Font glyph and a plain Unicode fallback
type Icon struct {
	NerdFont string
	Fallback string
}

func (i Icon) String() string {
	if HasNerdFonts() {
		return i.NerdFont
	}
	return i.Fallback
}

var (
	App      = Icon{"󰆉", "◈"} // nf-md-comment_text_multiple
	Store    = Icon{"󰓜", "▣"} // nf-md-storefront
	Review   = Icon{"󰆈", "✎"} // nf-md-comment_text
	Star     = Icon{"󰓎", "★"} // nf-md-star
	Report   = Icon{"󰈙", "▤"} // nf-md-file_document
	Credits  = Icon{"󰆬", "¢"} // nf-md-coin
	Positive = Icon{"󰔓", "▲"} // nf-md-thumb_up
	Negative = Icon{"󰔑", "▼"} // nf-md-thumb_down

	CheckOK  = Icon{"", "✓"} // nf-oct-check_circle
	Warning  = Icon{"", "⚠"} // nf-oct-alert
	Critical = Icon{"", "✗"} // nf-oct-x_circle

	Refresh = Icon{"󰑓", "↻"} // nf-md-refresh
	Wizard  = Icon{"󰂓", "★"} // nf-md-auto_fix
	Logout  = Icon{"󰍃", "⏏"} // nf-md-logout
	Quit    = Icon{"󰗼", "×"} // nf-md-exit_to_app
)
