// Package filter applies a categorical mode plus a live, case-insensitive
// regular expression to an ordered candidate list.
//
// Filtering is pure: identical (candidates, mode, pattern) always produce the
// identical result. A pattern that fails to compile matches nothing and is
// reported through InvalidPattern rather than returned as an error.
package filter

import (
	"regexp"
)

// Candidate is anything with a display name the pattern is matched against.
type Candidate interface {
	DisplayName() string
}

// Mode is a closed categorical predicate over candidates.
type Mode[T any] interface {
	comparable
	Admits(T) bool
}

// Match returns the candidates admitted by mode whose display name matches
// re, preserving order. A nil re matches every name.
func Match[T Candidate, M Mode[T]](candidates []T, mode M, re *regexp.Regexp) []T {
	out := make([]T, 0, len(candidates))
	for _, c := range candidates {
		if !mode.Admits(c) {
			continue
		}
		if re != nil && !re.MatchString(c.DisplayName()) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// State is the filter state of one list. It is not safe for concurrent use.
type State[T Candidate, M Mode[T]] struct {
	mode    M
	pattern string
	cache   *Cache

	// matcher is compiled from pattern; valid only while compiled is true
	matcher  *regexp.Regexp
	compiled bool
	invalid  bool

	count int
}

// New creates a filter state with an empty pattern. cache may be shared
// between lists; nil gets a private default-sized cache.
func New[T Candidate, M Mode[T]](mode M, cache *Cache) *State[T, M] {
	if cache == nil {
		cache = NewCache(DefaultCacheSize)
	}
	return &State[T, M]{mode: mode, cache: cache}
}

// Mode returns the current mode.
func (s *State[T, M]) Mode() M { return s.mode }

// Pattern returns the raw pattern text.
func (s *State[T, M]) Pattern() string { return s.pattern }

// MatchCount is the length of the last Apply result.
func (s *State[T, M]) MatchCount() int { return s.count }

// InvalidPattern reports whether the current pattern failed to compile.
func (s *State[T, M]) InvalidPattern() bool {
	s.ensureCompiled()
	return s.invalid
}

// Set updates mode and pattern and reports whether either changed.
func (s *State[T, M]) Set(mode M, pattern string) bool {
	changed := s.mode != mode || s.pattern != pattern
	s.mode = mode
	s.SetPattern(pattern)
	return changed
}

// SetMode updates the mode.
func (s *State[T, M]) SetMode(mode M) {
	s.mode = mode
}

// SetPattern updates the pattern and drops the compiled matcher if the text
// changed.
func (s *State[T, M]) SetPattern(pattern string) {
	if pattern == s.pattern {
		return
	}
	s.pattern = pattern
	s.matcher = nil
	s.compiled = false
	s.invalid = false
}

// Apply filters candidates and records the match count.
func (s *State[T, M]) Apply(candidates []T) []T {
	s.ensureCompiled()
	if s.invalid {
		s.count = 0
		return []T{}
	}
	out := Match(candidates, s.mode, s.matcher)
	s.count = len(out)
	return out
}

func (s *State[T, M]) ensureCompiled() {
	if s.compiled {
		return
	}
	re, err := s.cache.Compile(s.pattern)
	s.matcher = re
	s.invalid = err != nil
	s.compiled = true
}
