package authz

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Literal GET suffixes that are actions in their own right rather than
// read-only aggregations.
var verbSuffixes = map[string]struct{}{
	"search":    {},
	"filter":    {},
	"enums":     {},
	"effective": {},
	"levels":    {},
}

// Diff is the result of comparing the live route set against the catalog.
type Diff struct {
	ToAdd        []Descriptor `json:"to_add"`
	Stale        []Descriptor `json:"stale"`
	Unclassified []Route      `json:"unclassified"`
	Existing     int          `json:"existing"`
}

// Scanner derives permission descriptors from the live route set and
// synchronizes them into the catalog.
type Scanner struct {
	catalog      *Catalog
	logger       *slog.Logger
	skipPrefixes []string
	titler       cases.Caser
}

// NewScanner constructs a Scanner. Routes whose path starts with one of
// skipPrefixes are ignored (health checks, login, static assets).
func NewScanner(catalog *Catalog, logger *slog.Logger, skipPrefixes ...string) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		catalog:      catalog,
		logger:       logger,
		skipPrefixes: skipPrefixes,
		titler:       cases.Title(language.Und),
	}
}

// Classify maps one route to a permission descriptor. The second return
// value is false when the route cannot be classified.
func (s *Scanner) Classify(route Route) (Descriptor, bool) {
	segments := pathSegments(route.Path)
	if len(segments) == 0 {
		return Descriptor{}, false
	}

	entity := firstLiteralSegment(segments)
	if entity == "" {
		return Descriptor{}, false
	}

	action, ok := inferAction(strings.ToUpper(route.Method), segments)
	if !ok {
		return Descriptor{}, false
	}

	return Descriptor{
		Entity:      Canonical(entity),
		Action:      Canonical(action),
		Endpoint:    route.Path,
		HTTPMethod:  strings.ToUpper(route.Method),
		Description: s.describe(action, entity),
	}, true
}

// DryRun computes the diff between the live route set and the catalog
// without mutating anything.
func (s *Scanner) DryRun(ctx context.Context, routes []Route) (Diff, error) {
	var diff Diff

	seen := make(map[Key]struct{})
	for _, route := range routes {
		if s.skipped(route.Path) {
			continue
		}
		d, ok := s.Classify(route)
		if !ok {
			diff.Unclassified = append(diff.Unclassified, route)
			s.logger.Warn("unclassified endpoint", slog.String("route", route.String()))
			continue
		}
		key := d.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		existing, err := s.catalog.FindByKey(ctx, d.Entity, d.Action)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				diff.ToAdd = append(diff.ToAdd, d)
				continue
			}
			return Diff{}, err
		}
		_ = existing
		diff.Existing++
	}

	// Catalog entries no longer backed by a live route are reported as
	// remove candidates, never purged: historical grants reference them.
	all, err := s.catalog.ListAll(ctx)
	if err != nil {
		return Diff{}, err
	}
	for _, d := range all {
		if _, ok := seen[d.Key()]; !ok {
			diff.Stale = append(diff.Stale, d)
		}
	}
	return diff, nil
}

// Apply runs the dry-run computation and registers every to-add entry.
// Safe to run repeatedly: with an unchanged route set the second run
// registers nothing.
func (s *Scanner) Apply(ctx context.Context, routes []Route) (Diff, error) {
	diff, err := s.DryRun(ctx, routes)
	if err != nil {
		return Diff{}, err
	}
	for _, d := range diff.ToAdd {
		if _, outcome, err := s.catalog.Register(ctx, d); err != nil {
			return Diff{}, err
		} else if outcome == RegisterCreated {
			s.logger.Info("permission registered",
				slog.String("key", d.Key().String()),
				slog.String("endpoint", d.HTTPMethod+" "+d.Endpoint))
		}
	}
	return diff, nil
}

func (s *Scanner) skipped(path string) bool {
	for _, prefix := range s.skipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (s *Scanner) describe(action, entity string) string {
	words := strings.ReplaceAll(Canonical(action), "_", " ")
	return s.titler.String(words) + " " + Canonical(entity)
}

func pathSegments(path string) []string {
	clean := strings.Trim(path, "/")
	if clean == "" {
		return nil
	}
	return strings.Split(clean, "/")
}

func firstLiteralSegment(segments []string) string {
	for _, seg := range segments {
		if !isParam(seg) {
			return seg
		}
	}
	return ""
}

func isParam(segment string) bool {
	return strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}")
}

// inferAction reproduces the fixed (method, path shape) precedence table.
func inferAction(method string, segments []string) (string, bool) {
	last := segments[len(segments)-1]
	lastIsParam := isParam(last)
	// A collection path is the bare entity root with no trailing literal
	// or parameter segment.
	collection := len(segments) == 1 && !lastIsParam

	switch method {
	case "GET":
		switch {
		case collection:
			return "list", true
		case lastIsParam:
			return "get", true
		default:
			suffix := Canonical(last)
			if _, ok := verbSuffixes[strings.TrimPrefix(suffix, "view_")]; ok {
				return suffix, true
			}
			if strings.HasPrefix(suffix, "by_") {
				return "search", true
			}
			// Remaining literal GET suffixes are read-only aggregations.
			if strings.HasPrefix(suffix, "view_") {
				return suffix, true
			}
			return "view_" + suffix, true
		}
	case "POST":
		switch {
		case collection:
			return "create", true
		case lastIsParam:
			return "create", true
		default:
			suffix := Canonical(last)
			if strings.HasPrefix(suffix, "with_") {
				return "create_" + suffix, true
			}
			return suffix, true
		}
	case "PUT", "PATCH":
		if !lastIsParam && len(segments) > 1 {
			return Canonical(last), true
		}
		return "update", true
	case "DELETE":
		return "delete", true
	default:
		return "", false
	}
}
