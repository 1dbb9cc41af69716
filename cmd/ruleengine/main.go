// Command ruleengine runs a workflow set against a single message and
// prints the result as JSON.
//
// Usage:
//
//	ruleengine -workflows workflows.json -message message.json [-trace] [-pretty]
//
// Flags:
//
//	-workflows string
//	    Path to a JSON document containing an array of Workflow definitions
//	    in the engine's wire format.
//	-message string
//	    Path to a JSON document seeding the initial Message: {"payload":
//	    ..., "context": {"data": ..., "metadata": ..., "temp_data": ...}}.
//	-trace
//	    Run with the execution trace recorder and print the ExecutionTrace
//	    instead of the bare Message (default false).
//	-pretty
//	    Indent the printed JSON (default true).
//
// Example:
//
//	ruleengine -workflows workflows.json -message message.json -trace
//
// This is a thin outer harness, not part of the core: the engine exposes
// no CLI or network endpoint of its own.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/flowforge/ruleengine/pkg/engine"
	"github.com/flowforge/ruleengine/pkg/message"
	"github.com/flowforge/ruleengine/pkg/wireschema"
)

func main() {
	workflowsPath := flag.String("workflows", "", "path to the workflow set JSON document")
	messagePath := flag.String("message", "", "path to the initial message JSON document")
	withTrace := flag.Bool("trace", false, "print the full execution trace instead of the final message")
	pretty := flag.Bool("pretty", true, "indent the printed JSON")
	flag.Parse()

	if *workflowsPath == "" || *messagePath == "" {
		fmt.Fprintln(os.Stderr, "usage: ruleengine -workflows workflows.json -message message.json [-trace]")
		os.Exit(2)
	}

	if err := run(*workflowsPath, *messagePath, *withTrace, *pretty); err != nil {
		fmt.Fprintf(os.Stderr, "ruleengine: %v\n", err)
		os.Exit(1)
	}
}

func run(workflowsPath, messagePath string, withTrace, pretty bool) error {
	workflowsRaw, err := os.ReadFile(workflowsPath)
	if err != nil {
		return fmt.Errorf("reading workflows: %w", err)
	}
	workflows, err := wireschema.ParseWorkflows(workflowsRaw)
	if err != nil {
		return fmt.Errorf("parsing workflows: %w", err)
	}

	eng, err := engine.New(workflows, nil, nil, nil)
	if err != nil {
		return fmt.Errorf("constructing engine: %w", err)
	}

	messageRaw, err := os.ReadFile(messagePath)
	if err != nil {
		return fmt.Errorf("reading message: %w", err)
	}
	msg, err := message.FromJSON(messageRaw)
	if err != nil {
		return fmt.Errorf("parsing message: %w", err)
	}

	ctx := context.Background()

	if withTrace {
		execTrace, err := eng.ProcessMessageWithTrace(ctx, msg)
		if err != nil {
			return fmt.Errorf("processing message: %w", err)
		}
		return printJSON(execTrace, pretty)
	}

	if err := eng.ProcessMessage(ctx, msg); err != nil {
		return fmt.Errorf("processing message: %w", err)
	}
	return printJSON(msg, pretty)
}

func printJSON(v interface{}, pretty bool) error {
	var out []byte
	var err error
	if pretty {
		out, err = json.MarshalIndent(v, "", "  ")
	} else {
		out, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
