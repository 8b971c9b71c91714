package models

import "fmt"

type Role string

const (
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
	RoleLeadGuide Role = "lead-guide"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleLeadGuide:
		return true
	}
	return false
}

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Allowlist is a fixed set of roles permitted on a route.
type Allowlist struct {
	roles map[Role]struct{}
}

// Allow builds an Allowlist. Invalid roles panic, since allow-lists are
// route-table constants.
func Allow(roles ...Role) Allowlist {
	a := Allowlist{roles: make(map[Role]struct{}, len(roles))}
	for _, r := range roles {
		if !r.Valid() {
			panic(fmt.Sprintf("models: unknown role %q in allow-list", r))
		}
		a.roles[r] = struct{}{}
	}
	return a
}

// Permits reports whether r is in the list. An empty list permits nobody.
func (a Allowlist) Permits(r Role) bool {
	_, ok := a.roles[r]
	return ok
}
