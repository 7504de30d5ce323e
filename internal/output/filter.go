package output

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
)

// Filter runs a jq program against data. A program yielding exactly one
// value returns that value; several values are returned as a slice.
func Filter(data any, program string) (any, error) {
	query, err := gojq.Parse(program)
	if err != nil {
		return nil, ErrUsageHint(fmt.Sprintf("Invalid --jq expression: %v", err), "See https://jqlang.org/manual/")
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, ErrUsageHint(fmt.Sprintf("Invalid --jq expression: %v", err), "See https://jqlang.org/manual/")
	}

	input, err := toJQInput(data)
	if err != nil {
		return nil, err
	}

	var results []any
	iter := code.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			if haltErr, ok := err.(*gojq.HaltError); ok && haltErr.Value() == nil {
				break
			}
			return nil, ErrUsage(fmt.Sprintf("jq: %v", err))
		}
		results = append(results, v)
	}

	if len(results) == 1 {
		return results[0], nil
	}
	return results, nil
}

// toJQInput converts typed values into the plain map/slice/float64 shapes
// gojq accepts.
func toJQInput(data any) (any, error) {
	var raw []byte
	switch d := data.(type) {
	case json.RawMessage:
		raw = d
	default:
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encoding data for jq: %w", err)
		}
		raw = b
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decoding data for jq: %w", err)
	}
	return v, nil
}
