package api

import (
	"context"
	"encoding/json"
	"net/url"
	"sort"

	"github.com/campusdesk/campus/internal/output"
	"github.com/campusdesk/campus/internal/resource"
)

// QueryEncoder is anything that can render itself as URL query values.
type QueryEncoder interface {
	Values() url.Values
}

// Query is a flat set of query parameters. Empty values are omitted.
type Query map[string]string

// Values implements QueryEncoder.
func (q Query) Values() url.Values {
	v := url.Values{}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if q[k] != "" {
			v.Set(k, q[k])
		}
	}
	return v
}

// With returns a copy of q with key set to value.
func (q Query) With(key, value string) Query {
	out := make(Query, len(q)+1)
	for k, v := range q {
		out[k] = v
	}
	out[key] = value
	return out
}

// Raw returns a fetcher that GETs path with the params as the query string.
func (c *Client) Raw(path string) resource.RawFetcher[Query] {
	return func(ctx context.Context, q Query) ([]byte, error) {
		resp, err := c.Get(ctx, path, q)
		if err != nil {
			return nil, err
		}
		return resp.Data, nil
	}
}

// List returns a hook source for a collection endpoint. Paginated envelopes
// are unwrapped to their results with the page metadata attached.
func List[T any](c *Client, path string) resource.Source[Query, []T] {
	return resource.FromRaw[Query, []T](c.Raw(path))
}

// Object returns a hook source for a single-object endpoint.
func Object[T any](c *Client, path string) resource.Source[Query, T] {
	return resource.FromRaw[Query, T](c.Raw(path))
}

// All returns a hook source that walks every page of a collection.
func All[T any](c *Client, path string) resource.Source[Query, []T] {
	return func(ctx context.Context, q Query) ([]T, *resource.PageMeta, error) {
		raw, err := c.GetAll(ctx, path, q)
		if err != nil {
			return nil, nil, err
		}
		items := make([]T, 0, len(raw))
		for _, r := range raw {
			var item T
			if err := json.Unmarshal(r, &item); err != nil {
				return nil, nil, output.ErrDecode(err)
			}
			items = append(items, item)
		}
		return items, &resource.PageMeta{Count: len(items)}, nil
	}
}
