package resource

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/campusdesk/campus/internal/output"
)

// PageMeta carries list pagination from a results envelope.
type PageMeta struct {
	Count    int    `json:"count"`
	Next     string `json:"next,omitempty"`
	Previous string `json:"previous,omitempty"`
}

type envelope struct {
	Results  json.RawMessage `json:"results"`
	Count    *int            `json:"count"`
	Next     *string         `json:"next"`
	Previous *string         `json:"previous"`
}

// Unwrap decodes a response body. When the body is an object with a
// "results" key, the results are the data and count/next/previous become
// PageMeta; otherwise the whole body is the data.
func Unwrap[T any](raw []byte) (T, *PageMeta, error) {
	var data T

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return data, nil, output.ErrDecode(err)
		}
		if _, ok := fields["results"]; ok {
			var env envelope
			if err := json.Unmarshal(trimmed, &env); err != nil {
				return data, nil, output.ErrDecode(err)
			}
			if err := json.Unmarshal(env.Results, &data); err != nil {
				return data, nil, output.ErrDecode(err)
			}
			return data, env.meta(), nil
		}
	}

	if err := json.Unmarshal(trimmed, &data); err != nil {
		return data, nil, output.ErrDecode(err)
	}
	return data, nil, nil
}

func (e envelope) meta() *PageMeta {
	m := &PageMeta{}
	if e.Count != nil {
		m.Count = *e.Count
	}
	if e.Next != nil {
		m.Next = *e.Next
	}
	if e.Previous != nil {
		m.Previous = *e.Previous
	}
	return m
}

// RawFetcher returns an undecoded response body.
type RawFetcher[P any] func(ctx context.Context, params P) ([]byte, error)

// FromRaw adapts a RawFetcher into a Source that unwraps results envelopes.
func FromRaw[P, T any](fetch RawFetcher[P]) Source[P, T] {
	return func(ctx context.Context, params P) (T, *PageMeta, error) {
		raw, err := fetch(ctx, params)
		if err != nil {
			var zero T
			return zero, nil, err
		}
		return Unwrap[T](raw)
	}
}
