// Package logic compiles JSONLogic-style declarative expressions into
// reusable, concurrency-safe evaluators and caches them by canonical source
// so identical expressions compile exactly once.
package logic
