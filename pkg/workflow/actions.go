package workflow

import "log/slog"

// Action types understood by the dispatcher.
const (
	ActionNavigate    = "navigate"
	ActionShowMessage = "showMessage"
)

// Action is an instruction returned by the webhook.
type Action struct {
	Type    string         `json:"type"`
	Screen  string         `json:"screen,omitempty"`
	Params  map[string]any `json:"params,omitempty"`
	Message string         `json:"message,omitempty"`
}

// Handler performs actions on the client surface.
type Handler interface {
	Navigate(screen string, params map[string]any)
	ShowMessage(message string)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are skipped.
type HandlerFuncs struct {
	NavigateFunc    func(screen string, params map[string]any)
	ShowMessageFunc func(message string)
}

// Navigate implements Handler.
func (h HandlerFuncs) Navigate(screen string, params map[string]any) {
	if h.NavigateFunc != nil {
		h.NavigateFunc(screen, params)
	}
}

// ShowMessage implements Handler.
func (h HandlerFuncs) ShowMessage(message string) {
	if h.ShowMessageFunc != nil {
		h.ShowMessageFunc(message)
	}
}

// Dispatcher executes webhook actions in order.
type Dispatcher struct {
	handler Handler
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher delivering to h.
func NewDispatcher(h Handler, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{handler: h, logger: logger.With("component", "workflow.dispatcher")}
}

// Dispatch runs every action and returns how many were executed. Unknown
// action types are logged and skipped.
func (d *Dispatcher) Dispatch(actions []Action) int {
	n := 0
	for _, a := range actions {
		switch a.Type {
		case ActionNavigate:
			d.handler.Navigate(a.Screen, a.Params)
		case ActionShowMessage:
			d.handler.ShowMessage(a.Message)
		default:
			d.logger.Info("unknown action type", "type", a.Type)
			continue
		}
		n++
	}
	return n
}
