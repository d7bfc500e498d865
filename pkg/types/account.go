package types

import (
	"fmt"
	"strings"
)

// Role is the fixed classification of a registered identity
type Role int

const (
	RolePatient Role = iota + 1
	RolePhysician
	RoleDispenser
)

// Roles lists every valid role
var Roles = []Role{RolePatient, RolePhysician, RoleDispenser}

// String returns the wire name of the role
func (r Role) String() string {
	switch r {
	case RolePatient:
		return "patient"
	case RolePhysician:
		return "physician"
	case RoleDispenser:
		return "dispenser"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Valid reports whether r is one of the fixed roles
func (r Role) Valid() bool {
	switch r {
	case RolePatient, RolePhysician, RoleDispenser:
		return true
	default:
		return false
	}
}

// ParseRole converts a wire name into a Role
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "patient":
		return RolePatient, nil
	case "physician":
		return RolePhysician, nil
	case "dispenser":
		return RoleDispenser, nil
	default:
		return 0, NewError(KindInvalidRole, "invalid role: %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, NewError(KindInvalidRole, "invalid role: %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Account is a registered identity with its role and public encryption key
type Account struct {
	ID            string `json:"id"`
	Role          Role   `json:"role"`
	EncryptionKey string `json:"encryption_key"`
	RegisteredAt  uint64 `json:"registered_at"`
}

// AdminConfig holds the administrative settings of the ledger
type AdminConfig struct {
	Owner             string `json:"owner"`
	PaymentCapability string `json:"payment_capability,omitempty" metadata:",optional"`
}
