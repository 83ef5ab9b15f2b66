package orb

import "github.com/teslashibe/go-grace/pkg/voice"

// Palette colors used by the orb.
const (
	Neutral100   = "#FFFFFF"
	Neutral200   = "#F4F2F1"
	Neutral400   = "#B6ACA6"
	Neutral500   = "#978F8A"
	Primary300   = "#DDA28E"
	Secondary300 = "#9196B9"
	Accent300    = "#FDD495"

	// Background is the app background, used by the outer gradient stop.
	Background = Neutral200
)

// ColorProfile is the set of colors the orb uses for one state.
type ColorProfile struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
	Ring      string `json:"ring"`
}

// Colors returns the profile for s. Every state has one; unknown states
// get the inactive profile.
func Colors(s voice.State) ColorProfile {
	switch s.Normalize() {
	case voice.Listening:
		return ColorProfile{Primary: Primary300, Secondary: Primary300, Ring: Neutral100}
	case voice.Speaking:
		return ColorProfile{Primary: Secondary300, Secondary: Secondary300, Ring: Neutral100}
	case voice.Connecting:
		return ColorProfile{Primary: Accent300, Secondary: Accent300, Ring: Neutral400}
	default:
		return ColorProfile{Primary: Neutral500, Secondary: Neutral500, Ring: Neutral400}
	}
}

// Scale returns the pulse scale factor for s at the given pulse value.
func Scale(s voice.State, pulse float64) float64 {
	amount := 0.03
	if s == voice.Listening {
		amount = 0.05
	}
	return 1 + pulse*amount
}
