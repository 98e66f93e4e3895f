package cli

import (
	"bytes"
	"encoding/json"
)

// parseValue reads a command-line value as JSON when it is valid JSON and
// as a plain string otherwise, so `42`, `true` and `["a"]` keep their type
// while `Ada` needs no quoting.
func parseValue(s string) any {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return s
	}
	return v
}

func parseValues(args []string) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = parseValue(a)
	}
	return out
}
