package varmodel

import "strings"

// Group names a variable namespace, e.g. "fsuipc/offset". Groups are
// compared case-insensitively, matching the wire protocol's textual group
// tags.
type Group string

// ID identifies one variable by (group, name). Identity is case-folded:
// "FSUIPC/Offset" and "fsuipc/offset" name the same variable.
type ID struct {
	Group Group
	Name  string
}

// NewID constructs an identifier, rejecting empty components.
func NewID(group Group, name string) (ID, error) {
	if group == "" {
		return ID{}, ErrEmptyGroup
	}
	if name == "" {
		return ID{}, ErrEmptyName
	}
	return ID{Group: group, Name: name}, nil
}

// Key returns a canonical, case-folded string suitable for use as a map
// key or registry index.
func (id ID) Key() string {
	return strings.ToLower(string(id.Group)) + "\x00" + strings.ToLower(id.Name)
}

// Equal reports whether two identifiers name the same variable, ignoring
// case.
func (id ID) Equal(other ID) bool {
	return id.Key() == other.Key()
}

func (id ID) String() string {
	return string(id.Group) + "/" + id.Name
}
