package nsprov

// Setting is an optional named value. An absent setting is distinct
// from one that is present but empty.
type Setting struct {
	value string
	set   bool
}

// SetTo returns a present setting holding v.
func SetTo(v string) Setting {
	return Setting{value: v, set: true}
}

// Unset returns an absent setting.
func Unset() Setting {
	return Setting{}
}

// Get returns the value and whether the setting is present.
func (s Setting) Get() (string, bool) {
	return s.value, s.set
}

// Value returns the value, or "" when absent.
func (s Setting) Value() string { return s.value }

// IsSet reports whether the setting is present.
func (s Setting) IsSet() bool { return s.set }

// NonEmpty reports whether the setting is present with a non-empty value.
func (s Setting) NonEmpty() bool { return s.set && s.value != "" }

func (s Setting) String() string {
	if !s.set {
		return "<unset>"
	}
	return s.value
}
