package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/saturnino-fabrica-de-software/proctor/internal/detector"
)

// LoadPolicies reads gesture policies from a TOML file. A gesture table in
// the file replaces that gesture's whole policy, so fields it leaves out are
// false. Gestures the file does not mention keep their defaults; an empty
// path or a missing file yields the defaults unchanged.
//
//	[right_click]
//	report = true
//	suppress_default = true
func LoadPolicies(path string) (detector.Policies, error) {
	policies := detector.DefaultPolicies()
	if path == "" {
		return policies, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return policies, nil
		}
		return policies, fmt.Errorf("read policy file: %w", err)
	}

	var file detector.Policies
	md, err := toml.Decode(string(data), &file)
	if err != nil {
		return detector.DefaultPolicies(), fmt.Errorf("decode policy file: %w", err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return detector.DefaultPolicies(), fmt.Errorf("unknown policy keys: %s", strings.Join(keys, ", "))
	}

	gestures := []struct {
		key  string
		dst  *detector.GesturePolicy
		from detector.GesturePolicy
	}{
		{"text_selection", &policies.TextSelection, file.TextSelection},
		{"copy", &policies.Copy, file.Copy},
		{"paste", &policies.Paste, file.Paste},
		{"right_click", &policies.RightClick, file.RightClick},
	}
	for _, g := range gestures {
		if md.IsDefined(g.key) {
			*g.dst = g.from
		}
	}

	return policies, nil
}
