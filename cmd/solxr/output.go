package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

// compileFilter parses and compiles a jq filter. An empty filter yields nil.
func compileFilter(filter string) (*gojq.Code, error) {
	if filter == "" {
		return nil, nil
	}
	query, err := gojq.Parse(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
	}
	return code, nil
}

// writeJSON prints v as indented JSON, passing it through code when set.
// Each jq result is printed on its own; strings are printed raw.
func writeJSON(w io.Writer, v any, code *gojq.Code) error {
	if code == nil {
		return encode(w, v)
	}

	// gojq works on generic values, so round-trip through JSON first.
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	var input any
	if err := json.Unmarshal(raw, &input); err != nil {
		return fmt.Errorf("failed to decode output: %w", err)
	}

	iter := code.Run(input)
	for {
		result, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, ok := result.(error); ok {
			var halt *gojq.HaltError
			if errors.As(err, &halt) && halt.Value() == nil {
				return nil
			}
			return fmt.Errorf("jq: %w", err)
		}
		if s, ok := result.(string); ok {
			fmt.Fprintln(w, s)
			continue
		}
		if err := encode(w, result); err != nil {
			return err
		}
	}
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

// output prints v to the app's writer honoring the global --jq flag.
func output(c *cli.Context, v any) error {
	code, err := compileFilter(c.String("jq"))
	if err != nil {
		return err
	}
	return writeJSON(c.App.Writer, v, code)
}
