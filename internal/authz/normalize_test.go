package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonical(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"companies", "companies"},
		{"Companies", "companies"},
		{"top-used", "top_used"},
		{"View-Top-Used", "view_top_used"},
		{"scan_exit", "scan_exit"},
		{"  vouchers  ", "vouchers"},
		{"", ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Canonical(tc.in), "input %q", tc.in)
	}
}

func TestNewKeyEquivalence(t *testing.T) {
	want := Key{Entity: "products", Action: "view_top_used"}
	assert.Equal(t, want, NewKey("products", "view_top_used"))
	assert.Equal(t, want, NewKey("Products", "View-Top-Used"))
	assert.Equal(t, want, NewKey("PRODUCTS", "view-top-used"))
}

func TestLevelParsingAndOrder(t *testing.T) {
	for raw := 0; raw <= 4; raw++ {
		lvl, err := ParseLevel(raw)
		assert.NoError(t, err)
		assert.Equal(t, raw, int(lvl))
	}
	_, err := ParseLevel(5)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ParseLevel(-1)
	assert.ErrorIs(t, err, ErrValidation)

	assert.True(t, LevelDelete > LevelCreate)
	assert.True(t, LevelCreate > LevelUpdate)
	assert.True(t, LevelUpdate > LevelRead)
	assert.True(t, LevelRead > LevelNone)
}

func TestLevels(t *testing.T) {
	infos := Levels()
	assert.Len(t, infos, 5)
	assert.Equal(t, "none", infos[0].Name)
	assert.Equal(t, "delete", infos[4].Name)
	for i, info := range infos {
		assert.Equal(t, i, info.Level)
		assert.NotEmpty(t, info.Description)
	}
}
