package detector

// GesturePolicy decides what a guard does with one browser gesture.
type GesturePolicy struct {
	// Report raises the gesture's violation type.
	Report bool `toml:"report"`
	// SuppressDefault cancels the browser's default action.
	SuppressDefault bool `toml:"suppress_default"`
	// StopPropagation hides the gesture from later listeners.
	StopPropagation bool `toml:"stop_propagation"`
}

// Policies holds one GesturePolicy per guarded gesture.
type Policies struct {
	TextSelection GesturePolicy `toml:"text_selection"`
	Copy          GesturePolicy `toml:"copy"`
	Paste         GesturePolicy `toml:"paste"`
	RightClick    GesturePolicy `toml:"right_click"`
}

// DefaultPolicies reports text selection and blocks it, reports copy and paste
// without interfering, and lets right-click through silently while keeping it
// away from page-level handlers.
func DefaultPolicies() Policies {
	return Policies{
		TextSelection: GesturePolicy{Report: true, SuppressDefault: true},
		Copy:          GesturePolicy{Report: true},
		Paste:         GesturePolicy{Report: true},
		RightClick:    GesturePolicy{StopPropagation: true},
	}
}
