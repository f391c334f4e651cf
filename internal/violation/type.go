// Package violation holds the value types shared by every detector, the reporter
// and the collector: the closed set of violation types, the session identity
// that scopes an exam attempt, and the wire payload sent to the collector.
package violation

import (
	"errors"
	"fmt"
)

// Type is one of the violation kinds understood by the collector.
type Type string

const (
	TabSwitch      Type = "tab_switch"
	Inactivity     Type = "inactivity"
	TextSelection  Type = "text_selection"
	Copy           Type = "copy"
	Paste          Type = "paste"
	RightClick     Type = "right_click"
	FaceNotVisible Type = "face_not_visible"
)

// ErrUnknownType is returned when a violation type is outside the closed set.
var ErrUnknownType = errors.New("unknown violation type")

// Types lists every violation type in a stable order.
func Types() []Type {
	return []Type{TabSwitch, Inactivity, TextSelection, Copy, Paste, RightClick, FaceNotVisible}
}

// columns maps each type to the counter column the collector keeps for it.
var columns = map[Type]string{
	TabSwitch:      "tab_switches",
	Inactivity:     "inactivities",
	TextSelection:  "text_selections",
	Copy:           "copies",
	Paste:          "pastes",
	RightClick:     "right_clicks",
	FaceNotVisible: "face_not_visible",
}

// Valid reports whether t belongs to the closed set.
func (t Type) Valid() bool {
	_, ok := columns[t]
	return ok
}

// Column returns the collector counter column for t, or "" if t is invalid.
func (t Type) Column() string {
	return columns[t]
}

func (t Type) String() string {
	return string(t)
}

// ParseType accepts only the canonical wire names.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
	return t, nil
}

// ParseLegacy also accepts the plural column names older clients sent.
func ParseLegacy(s string) (Type, error) {
	if t, err := ParseType(s); err == nil {
		return t, nil
	}
	for t, col := range columns {
		if col == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
}
