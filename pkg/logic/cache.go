package logic

import (
	"encoding/json"
	"sync"
)

// Cache deduplicates compiled expressions by the canonical JSON form of
// their source. Populated entirely during engine construction; Compile is
// safe for unbounded concurrent use thereafter.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*CompiledExpr
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*CompiledExpr)}
}

// Compile compiles expr, or returns the previously compiled evaluator for
// an expression with identical canonical source.
func (c *Cache) Compile(expr interface{}) (*CompiledExpr, error) {
	key, err := canonicalKey(expr)
	if err != nil {
		return nil, &CompileError{Reason: "expression is not serializable: " + err.Error()}
	}

	c.mu.RLock()
	if ce, ok := c.entries[key]; ok {
		c.mu.RUnlock()
		return ce, nil
	}
	c.mu.RUnlock()

	compiled, err := Compile(expr)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[key]; ok {
		return existing, nil
	}
	c.entries[key] = compiled
	return compiled, nil
}

// Len reports the number of distinct compiled expressions held by the
// cache.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// canonicalKey produces a stable string identity for an expression's
// source: encoding/json sorts object keys on marshal, so re-marshaling a
// decoded value yields the same bytes for syntactically identical
// expressions regardless of how the original document ordered its keys.
func canonicalKey(expr interface{}) (string, error) {
	b, err := json.Marshal(expr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
