package filter

import (
	"fmt"
	"regexp"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/leapstack-labs/nsbrowse/pkg/core"
)

// DefaultCacheSize bounds the number of distinct patterns kept compiled.
const DefaultCacheSize = 256

// Cache memoises compiled patterns, including failed compilations, so rapid
// typing never recompiles a pattern it has already seen.
type Cache struct {
	entries      *lru.Cache[string, compiled]
	compilations int
}

type compiled struct {
	re  *regexp.Regexp
	err error
}

// NewCache creates a cache holding up to size patterns.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, compiled](size)
	if err != nil {
		// lru.New only fails for non-positive sizes
		panic(fmt.Sprintf("filter: %v", err))
	}
	return &Cache{entries: entries}
}

// Compile returns the case-insensitive matcher for pattern. The empty pattern
// yields a nil matcher, which matches everything.
func (c *Cache) Compile(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	if hit, ok := c.entries.Get(pattern); ok {
		return hit.re, hit.err
	}

	c.compilations++
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		err = &PatternError{Pattern: pattern, Err: err}
	}
	c.entries.Add(pattern, compiled{re: re, err: err})
	return re, err
}

// Compilations returns how many times a pattern was actually compiled.
func (c *Cache) Compilations() int {
	return c.compilations
}

// PatternError reports a pattern that failed to compile.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q: %v", e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }

// Is makes PatternError match core.ErrInvalidPattern.
func (e *PatternError) Is(target error) bool { return target == core.ErrInvalidPattern }
