package authz

import (
	"encoding/json"
	"fmt"
	"os"
)

// RolePolicy is the default level a role receives for newly discovered
// permissions, with optional per-action exceptions.
type RolePolicy struct {
	Default Level            `json:"default"`
	Actions map[string]Level `json:"actions,omitempty"`
}

// DefaultPolicy maps role names to their auto-assignment defaults. It is
// plain data so deployments can adjust it without code changes.
type DefaultPolicy struct {
	Roles map[string]RolePolicy `json:"roles"`
}

// LevelFor returns the default level for a role and canonical action.
// Unknown roles default to LevelNone.
func (p DefaultPolicy) LevelFor(role, action string) Level {
	rp, ok := p.Roles[role]
	if !ok {
		return LevelNone
	}
	if lvl, ok := rp.Actions[Canonical(action)]; ok {
		return lvl
	}
	return rp.Default
}

// LoadPolicy reads a DefaultPolicy from a JSON file.
func LoadPolicy(path string) (DefaultPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultPolicy{}, fmt.Errorf("authz: read policy file: %w", err)
	}
	var policy DefaultPolicy
	if err := json.Unmarshal(data, &policy); err != nil {
		return DefaultPolicy{}, fmt.Errorf("authz: parse policy file: %w", err)
	}
	for role, rp := range policy.Roles {
		if !rp.Default.Valid() {
			return DefaultPolicy{}, fmt.Errorf("%w: role %s default level out of range", ErrValidation, role)
		}
		for action, lvl := range rp.Actions {
			if !lvl.Valid() {
				return DefaultPolicy{}, fmt.Errorf("%w: role %s action %s level out of range", ErrValidation, role, action)
			}
		}
	}
	return policy, nil
}

// BuiltinPolicy returns the defaults for the six seed roles. Admin takes
// full access on everything it discovers; Checker stays locked down
// except for the voucher gate operations it exists to perform.
func BuiltinPolicy() DefaultPolicy {
	return DefaultPolicy{
		Roles: map[string]RolePolicy{
			"Admin":        {Default: LevelDelete},
			"Manager":      {Default: LevelCreate},
			"Collaborator": {Default: LevelUpdate},
			"Reader":       {Default: LevelRead},
			"Guest":        {Default: LevelNone},
			"Checker": {
				Default: LevelNone,
				Actions: map[string]Level{
					"get":        LevelRead,
					"list":       LevelRead,
					"scan_exit":  LevelUpdate,
					"scan_entry": LevelUpdate,
				},
			},
		},
	}
}
