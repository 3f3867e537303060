package nsprov

// IfNameCapacity is the longest interface name the kernel accepts
// (IFNAMSIZ less the terminating NUL).
const IfNameCapacity = 15

// IfName is an interface name known to fit within IfNameCapacity.
// The zero value is the empty name.
type IfName struct {
	name string
}

// NewIfName validates s against IfNameCapacity. Overlong names are
// rejected with ErrBufferTooSmall, never truncated.
func NewIfName(s string) (IfName, error) {
	if len(s) > IfNameCapacity {
		return IfName{}, ErrBufferTooSmall{Name: s, Capacity: IfNameCapacity}
	}
	return IfName{name: s}, nil
}

func (n IfName) String() string { return n.name }

// IsZero reports whether the name is empty.
func (n IfName) IsZero() bool { return n.name == "" }
