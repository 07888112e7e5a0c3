// Package authz implements the granular authorization engine: a permission
// catalog kept in sync with the live route set, role templates with
// auto-assigned defaults, and per-user temporal overrides resolved into a
// single effective permission level.
package authz

import (
	"fmt"
	"strings"
	"time"

	"github.com/gatepass-erp/gatepass-erp/internal/platform/httpx"
)

// Sentinel errors for the authorization engine, layered on the shared
// httpx taxonomy so every handler responds through one mapping.
var (
	ErrNotFound   = fmt.Errorf("authz: %w", httpx.ErrNotFound)
	ErrConflict   = fmt.Errorf("authz: %w", httpx.ErrConflict)
	ErrValidation = fmt.Errorf("authz: %w", httpx.ErrValidation)
)

// Level is an ordered permission scalar. Higher levels imply every
// capability of the levels below them; there is no bitmask semantics.
type Level int

const (
	LevelNone Level = iota
	LevelRead
	LevelUpdate
	LevelCreate
	LevelDelete
)

var levelNames = [...]string{"none", "read", "update", "create", "delete"}

var levelDescriptions = [...]string{
	"No access",
	"Read-only access",
	"Read and update access",
	"Read, create and update access",
	"Full access including delete",
}

// Valid reports whether l is within the defined range.
func (l Level) Valid() bool {
	return l >= LevelNone && l <= LevelDelete
}

func (l Level) String() string {
	if !l.Valid() {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// Describe returns a human readable summary of the level's capabilities.
func (l Level) Describe() string {
	if !l.Valid() {
		return ""
	}
	return levelDescriptions[l]
}

// ParseLevel converts a stored integer into a Level.
func ParseLevel(v int) (Level, error) {
	l := Level(v)
	if !l.Valid() {
		return LevelNone, fmt.Errorf("%w: level must be between %d and %d", ErrValidation, int(LevelNone), int(LevelDelete))
	}
	return l, nil
}

// LevelInfo describes one level for the read-only levels endpoint.
type LevelInfo struct {
	Level       int    `json:"level"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Levels returns the full ordered level scale.
func Levels() []LevelInfo {
	infos := make([]LevelInfo, 0, len(levelNames))
	for l := LevelNone; l <= LevelDelete; l++ {
		infos = append(infos, LevelInfo{Level: int(l), Name: l.String(), Description: l.Describe()})
	}
	return infos
}

// Key identifies one controllable operation in canonical form.
type Key struct {
	Entity string
	Action string
}

// NewKey canonicalizes entity and action into a catalog key.
func NewKey(entity, action string) Key {
	return Key{Entity: Canonical(entity), Action: Canonical(action)}
}

func (k Key) String() string {
	return k.Entity + ":" + k.Action
}

// Descriptor identifies one controllable operation and the concrete route
// that defines it. Endpoint and method are informational; authorization
// decisions only use the (entity, action) identity.
type Descriptor struct {
	ID          int64     `json:"id"`
	Entity      string    `json:"entity"`
	Action      string    `json:"action"`
	Endpoint    string    `json:"endpoint"`
	HTTPMethod  string    `json:"http_method"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Key returns the canonical catalog key for the descriptor.
func (d Descriptor) Key() Key {
	return NewKey(d.Entity, d.Action)
}

// Override is a per-user grant that supersedes the role template for a
// single (entity, action) key. Overrides are soft-retired, never deleted.
type Override struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	Entity    string     `json:"entity"`
	Action    string     `json:"action"`
	Level     Level      `json:"level"`
	GrantedAt time.Time  `json:"granted_at"`
	GrantedBy int64      `json:"granted_by"`
	Reason    string     `json:"reason,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	IsActive  bool       `json:"is_active"`
}

// Key returns the canonical catalog key for the override.
func (o Override) Key() Key {
	return NewKey(o.Entity, o.Action)
}

// Temporal reports whether the override carries an expiry.
func (o Override) Temporal() bool {
	return o.ExpiresAt != nil
}

// Expired reports whether a temporal override has passed its expiry.
func (o Override) Expired(now time.Time) bool {
	return o.ExpiresAt != nil && !o.ExpiresAt.After(now)
}

// InEffect reports whether the override currently decides resolution.
func (o Override) InEffect(now time.Time) bool {
	return o.IsActive && !o.Expired(now)
}

// TemplateItem maps one catalog key to the minimum level a role holds.
type TemplateItem struct {
	Role   string `json:"role"`
	Entity string `json:"entity"`
	Action string `json:"action"`
	Level  Level  `json:"level"`
}

// Key returns the canonical catalog key for the template item.
func (t TemplateItem) Key() Key {
	return NewKey(t.Entity, t.Action)
}

// Role is a named permission template.
type Role struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Source names the tier that produced an effective level.
type Source string

const (
	SourceOverride Source = "override"
	SourceTemplate Source = "template"
	SourceDefault  Source = "default"
)

// Decision is the result of an authorization check. On deny it carries
// both the level the caller holds and the level the operation requires.
type Decision struct {
	Allowed  bool   `json:"allowed"`
	Level    Level  `json:"level"`
	Required Level  `json:"required"`
	Source   Source `json:"source"`
}

func (d Decision) String() string {
	verdict := "deny"
	if d.Allowed {
		verdict = "allow"
	}
	return fmt.Sprintf("%s (have %s, need %s, via %s)", verdict, d.Level, d.Required, d.Source)
}

// Route is one live HTTP operation as exposed by the routing layer.
type Route struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

func (r Route) String() string {
	return strings.ToUpper(r.Method) + " " + r.Path
}
