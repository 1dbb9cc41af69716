package logic

import "strconv"

// EvalContext is the environment an expression evaluates against. root
// holds the message's context view (data/metadata/temp_data). item, when
// present, scopes var lookups to the current element of an enclosing
// array operator (map, filter, reduce, all, some, none) instead of root.
type EvalContext struct {
	root    map[string]interface{}
	item    interface{}
	hasItem bool
}

// NewEvalContext builds a root evaluation context from a message's
// context view. root is typically {"data": ..., "metadata": ..., "temp_data": ...}.
func NewEvalContext(root map[string]interface{}) *EvalContext {
	return &EvalContext{root: root}
}

// withItem returns a child context scoped to item, used by array operators
// to evaluate their per-element logic.
func (c *EvalContext) withItem(item interface{}) *EvalContext {
	return &EvalContext{root: c.root, item: item, hasItem: true}
}

// lookup resolves a dot-separated path. Inside an array-operator scope it
// walks into the current item; an empty path returns the item itself.
// Outside that scope it walks into root.
func (c *EvalContext) lookup(path string) (interface{}, bool) {
	if c.hasItem {
		if path == "" {
			return c.item, true
		}
		return walkPath(c.item, path)
	}
	if path == "" {
		return c.root, true
	}
	return walkPath(c.root, path)
}

// walkPath descends into v following dot-separated segments. A numeric
// segment indexes into an array; any other segment indexes into a
// map[string]interface{}. Returns ok=false if any segment cannot be
// resolved.
func walkPath(v interface{}, path string) (interface{}, bool) {
	cur := v
	for _, seg := range splitPath(path) {
		switch node := cur.(type) {
		case map[string]interface{}:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// splitPath splits a dot-separated path into segments, ignoring an empty
// input (which denotes "the whole value").
func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	segs := make([]string, 0, 4)
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			segs = append(segs, path[start:i])
			start = i + 1
		}
	}
	segs = append(segs, path[start:])
	return segs
}
