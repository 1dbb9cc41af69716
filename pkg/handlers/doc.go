// Package handlers implements the function registry and the six built-in
// function handlers (parse_json, parse_xml, map, validation, publish_json,
// publish_xml) that task function references dispatch to.
package handlers
