package handlers

import (
	"sort"
	"strconv"

	"github.com/beevik/etree"
)

// elementToValue converts an etree element into the structured value
// convention used by parse_xml/publish_xml: attributes become map keys
// prefixed with "@"; element text co-present with attributes or children
// is stored under the reserved key "#text"; an element with no attributes
// and no children is a plain string; repeated child tags become an array.
func elementToValue(el *etree.Element) interface{} {
	if len(el.Attr) == 0 && len(el.ChildElements()) == 0 {
		return el.Text()
	}

	result := make(map[string]interface{})
	for _, attr := range el.Attr {
		result["@"+attr.Key] = attr.Value
	}
	if text := el.Text(); text != "" {
		result["#text"] = text
	}

	for _, child := range el.ChildElements() {
		childVal := elementToValue(child)
		if existing, ok := result[child.Tag]; ok {
			switch arr := existing.(type) {
			case []interface{}:
				result[child.Tag] = append(arr, childVal)
			default:
				result[child.Tag] = []interface{}{existing, childVal}
			}
		} else {
			result[child.Tag] = childVal
		}
	}

	return result
}

// valueToElement is the inverse of elementToValue: it builds an etree
// element named tag from a structured value. Attribute keys ("@"-prefixed)
// are emitted first in sorted order, then "#text", then remaining child
// elements in sorted tag order; a []interface{} held under a map key expands
// to repeated sibling elements of that tag. Any other value is rendered as
// text by toXMLText, so a []interface{} passed here directly (or nested in
// another array) yields an element with empty text.
func valueToElement(tag string, value interface{}) *etree.Element {
	el := etree.NewElement(tag)

	switch v := value.(type) {
	case string:
		el.SetText(v)
	case map[string]interface{}:
		populateElement(el, v)
	default:
		el.SetText(toXMLText(v))
	}

	return el
}

func populateElement(el *etree.Element, v map[string]interface{}) {
	var attrKeys, childKeys []string
	for k := range v {
		if k == "#text" {
			continue
		}
		if len(k) > 0 && k[0] == '@' {
			attrKeys = append(attrKeys, k)
		} else {
			childKeys = append(childKeys, k)
		}
	}
	sort.Strings(attrKeys)
	sort.Strings(childKeys)

	for _, k := range attrKeys {
		el.CreateAttr(k[1:], toXMLText(v[k]))
	}
	if text, ok := v["#text"]; ok {
		el.SetText(toXMLText(text))
	}
	for _, k := range childKeys {
		switch arr := v[k].(type) {
		case []interface{}:
			for _, item := range arr {
				el.AddChild(valueToElement(k, item))
			}
		default:
			el.AddChild(valueToElement(k, v[k]))
		}
	}
}

func toXMLText(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}
