package message

import (
	"fmt"
	"strconv"
)

// Get resolves a dot-separated path rooted at "data", "metadata", or
// "temp_data" against the context.
func (c *Context) Get(path string) (interface{}, bool) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return nil, false
	}
	root := c.rootFor(segs[0])
	if root == nil {
		return nil, false
	}
	if len(segs) == 1 {
		return root, true
	}
	return getPath(root, segs[1:])
}

// Set writes value at path, creating intermediate objects and arrays as
// needed, and returns the value previously at that path (nil if absent).
// A path segment consisting entirely of ASCII digits addresses an array
// index; an out-of-range index extends the array with null padding. If
// MaxDepth is non-zero and path nests deeper than it, Set fails without
// mutating the context.
func (c *Context) Set(path string, value interface{}) (interface{}, error) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return nil, fmt.Errorf("empty context path")
	}
	if c.MaxDepth > 0 && len(segs) > c.MaxDepth {
		return nil, fmt.Errorf("path %q nests %d levels deep, exceeding the configured limit of %d", path, len(segs), c.MaxDepth)
	}
	if len(segs) == 1 {
		if _, ok := value.(map[string]interface{}); !ok {
			return nil, fmt.Errorf("context root %q can only be replaced by an object", segs[0])
		}
	}
	old, _ := c.Get(path)
	switch segs[0] {
	case "data":
		c.Data = setRoot(c.Data, segs[1:], value)
	case "metadata":
		c.Metadata = setRoot(c.Metadata, segs[1:], value)
	case "temp_data":
		c.TempData = setRoot(c.TempData, segs[1:], value)
	default:
		return nil, fmt.Errorf("unknown context root %q", segs[0])
	}
	return old, nil
}

func (c *Context) rootFor(key string) interface{} {
	switch key {
	case "data":
		return c.Data
	case "metadata":
		return c.Metadata
	case "temp_data":
		return c.TempData
	default:
		return nil
	}
}

func setRoot(root map[string]interface{}, rest []string, value interface{}) map[string]interface{} {
	if len(rest) == 0 {
		if m, ok := value.(map[string]interface{}); ok {
			return m
		}
		return root
	}
	if root == nil {
		root = map[string]interface{}{}
	}
	root[rest[0]] = setIn(root[rest[0]], rest[1:], value)
	return root
}

// setIn recursively rebuilds the container along segs and returns the new
// container to assign back into the parent (maps/slices may need to be
// replaced wholesale, e.g. when growing a slice or creating a map that
// didn't exist).
func setIn(container interface{}, segs []string, value interface{}) interface{} {
	if len(segs) == 0 {
		return value
	}
	seg := segs[0]
	if idx, ok := asIndex(seg); ok {
		arr, _ := container.([]interface{})
		for len(arr) <= idx {
			arr = append(arr, nil)
		}
		arr[idx] = setIn(arr[idx], segs[1:], value)
		return arr
	}
	m, ok := container.(map[string]interface{})
	if !ok || m == nil {
		m = map[string]interface{}{}
	}
	m[seg] = setIn(m[seg], segs[1:], value)
	return m
}

func getPath(container interface{}, segs []string) (interface{}, bool) {
	cur := container
	for _, seg := range segs {
		switch node := cur.(type) {
		case map[string]interface{}:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []interface{}:
			idx, ok := asIndex(seg)
			if !ok || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

func asIndex(seg string) (int, bool) {
	if seg == "" {
		return 0, false
	}
	for _, r := range seg {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	idx, err := strconv.Atoi(seg)
	if err != nil {
		return 0, false
	}
	return idx, true
}

// LookupPath resolves a dot-separated path against an arbitrary decoded
// JSON value, with the same numeric-segment array addressing rules as
// Context.Get/Set. Used to read from Message.Payload, which is not
// rooted under data/metadata/temp_data.
func LookupPath(container interface{}, path string) (interface{}, bool) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return container, true
	}
	return getPath(container, segs)
}

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
