package assistant

import (
	"github.com/teslashibe/go-grace/pkg/store"
	"github.com/teslashibe/go-grace/pkg/voice"
)

// StatusText is the line shown above the orb for each state.
func StatusText(s voice.State) string {
	switch s {
	case voice.Connecting:
		return "Connecting..."
	case voice.Listening:
		return "Go ahead, I'm listening"
	case voice.Speaking:
		return "Speaking..."
	default:
		return "Tap microphone to start"
	}
}

// MicIcon is the microphone button icon: start when inactive, close otherwise.
func MicIcon(s voice.State) string {
	if s == voice.Inactive {
		return "mic"
	}
	return "close"
}

// Card is a tappable entry on the home screen.
type Card struct {
	Icon        string `json:"icon"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Href        string `json:"href"`
}

// HomeView is the home screen.
type HomeView struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Actions  []Card `json:"actions"`
}

// Home returns the home screen.
func Home() HomeView {
	return HomeView{
		Title:    "Grace",
		Subtitle: "Your voice assistant",
		Actions: []Card{{
			Icon:        "mic",
			Title:       "Talk to Grace",
			Description: "Start a voice conversation with Grace",
			Href:        "/voice",
		}},
	}
}

// VoiceView is the voice screen.
type VoiceView struct {
	Title        string      `json:"title"`
	Status       string      `json:"status"`
	State        voice.State `json:"state"`
	CurrentQuery string      `json:"currentQuery,omitempty"`
	Processing   bool        `json:"processing"`
	MicIcon      string      `json:"micIcon"`
	MicActive    bool        `json:"micActive"`
}

// Voice builds the voice screen from the store.
func Voice(st *store.Store) VoiceView {
	state := st.State()
	return VoiceView{
		Title:        "Speaking to Grace",
		Status:       StatusText(state),
		State:        state,
		CurrentQuery: st.CurrentQuery(),
		Processing:   st.IsProcessing(),
		MicIcon:      MicIcon(state),
		MicActive:    state != voice.Inactive,
	}
}

// NotFoundView is shown for unknown routes.
type NotFoundView struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
	LinkText    string `json:"linkText"`
}

// NotFound returns the not-found screen.
func NotFound() NotFoundView {
	return NotFoundView{
		Title:       "Page Not Found",
		Description: "The page you're looking for doesn't exist.",
		Link:        "/",
		LinkText:    "Go to Home",
	}
}
