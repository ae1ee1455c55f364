package domain

import "time"

// Member is a participant on the storefront's conversation server. Customers,
// workers, and staff are all members; staff privilege is derived from role
// membership, not a separate record type.
type Member struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	RoleIDs      []string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasAnyRole reports whether the member holds at least one of the given
// server role identifiers.
func (m *Member) HasAnyRole(roleIDs ...string) bool {
	for _, want := range roleIDs {
		if want == "" {
			continue
		}
		for _, have := range m.RoleIDs {
			if have == want {
				return true
			}
		}
	}
	return false
}
