package registry

import (
	"fmt"
	"strings"
	"sync"

	"github.com/jmespath/go-jmespath"

	"github.com/saadbelcaidx/connector-os/internal/types"
)

// pathCache holds compiled JMESPath expressions shared by every schema.
var pathCache = struct {
	sync.RWMutex
	m map[string]*jmespath.JMESPath
}{m: make(map[string]*jmespath.JMESPath)}

// compilePath compiles a field path, reusing a cached expression when available.
func compilePath(path string) (*jmespath.JMESPath, error) {
	pathCache.RLock()
	if compiled, ok := pathCache.m[path]; ok {
		pathCache.RUnlock()
		return compiled, nil
	}
	pathCache.RUnlock()

	compiled, err := jmespath.Compile(path)
	if err != nil {
		return nil, fmt.Errorf("invalid field path %q: %w", path, err)
	}

	pathCache.Lock()
	pathCache.m[path] = compiled
	pathCache.Unlock()
	return compiled, nil
}

// Lookup evaluates a field path against a raw record. Malformed paths,
// missing keys and evaluation errors all resolve to (nil, false).
func Lookup(record types.RawRecord, path string) (any, bool) {
	if record == nil || path == "" {
		return nil, false
	}

	// Plain keys (including CSV headers with spaces) are read directly so
	// they never need JMESPath quoting.
	if v, ok := record[path]; ok {
		return v, v != nil
	}
	if !strings.ContainsAny(path, ".[|") {
		return nil, false
	}

	compiled, err := compilePath(path)
	if err != nil {
		return nil, false
	}

	var result any
	func() {
		defer func() {
			if recover() != nil {
				result = nil
			}
		}()
		result, err = compiled.Search(map[string]any(record))
	}()
	if err != nil || result == nil {
		return nil, false
	}
	return result, true
}

// LookupAny tries each alternative path in order and returns the first hit.
func LookupAny(record types.RawRecord, paths ...string) (any, bool) {
	for _, p := range paths {
		if v, ok := Lookup(record, p); ok {
			return v, true
		}
	}
	return nil, false
}

// Plausible reports whether a resolved value carries real content.
func Plausible(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(val) != ""
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	case bool:
		return val
	default:
		return true
	}
}
