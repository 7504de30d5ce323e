package school

import (
	_ "embed"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/campusdesk/campus/internal/output"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Kind distinguishes collection endpoints from single-object endpoints.
type Kind string

const (
	KindList   Kind = "list"
	KindObject Kind = "object"
)

// Entry describes one API resource.
type Entry struct {
	Name     string   `yaml:"name" json:"name"`
	Aliases  []string `yaml:"aliases" json:"aliases,omitempty"`
	Path     string   `yaml:"path" json:"path"`
	Kind     Kind     `yaml:"kind" json:"kind"`
	Area     string   `yaml:"area" json:"area"`
	Overview bool     `yaml:"overview" json:"overview,omitempty"`
	Columns  []string `yaml:"columns" json:"columns,omitempty"`
}

// ItemPath returns the path of one object in a list resource. The id is
// escaped as a single path segment.
func (e Entry) ItemPath(id string) string {
	return strings.TrimSuffix(e.Path, "/") + "/" + url.PathEscape(id) + "/"
}

type catalog struct {
	once    sync.Once
	entries []Entry
	byName  map[string]Entry
	loadErr error
}

var registry = &catalog{}

func (c *catalog) load() {
	c.once.Do(func() {
		var entries []Entry
		if err := yaml.Unmarshal(catalogYAML, &entries); err != nil {
			c.loadErr = fmt.Errorf("parsing catalog: %w", err)
			return
		}
		c.byName = make(map[string]Entry)
		for _, e := range entries {
			if e.Kind == "" {
				e.Kind = KindList
			}
			c.entries = append(c.entries, e)
			c.byName[e.Name] = e
			for _, a := range e.Aliases {
				c.byName[a] = e
			}
		}
		sort.Slice(c.entries, func(i, j int) bool { return c.entries[i].Name < c.entries[j].Name })
	})
}

// Entries returns every catalog entry sorted by name.
func Entries() []Entry {
	registry.load()
	return append([]Entry(nil), registry.entries...)
}

// Overview returns the entries fetched by the overview command.
func Overview() []Entry {
	var out []Entry
	for _, e := range Entries() {
		if e.Overview {
			out = append(out, e)
		}
	}
	return out
}

// Areas returns the distinct areas in name order.
func Areas() []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range Entries() {
		if !seen[e.Area] {
			seen[e.Area] = true
			out = append(out, e.Area)
		}
	}
	sort.Strings(out)
	return out
}

// Lookup finds an entry by name or alias.
func Lookup(name string) (Entry, error) {
	registry.load()
	if registry.loadErr != nil {
		return Entry{}, registry.loadErr
	}
	if e, ok := registry.byName[strings.ToLower(strings.TrimSpace(name))]; ok {
		return e, nil
	}
	return Entry{}, output.ErrUsageHint(
		fmt.Sprintf("Unknown resource %q", name),
		"Run: campus resources",
	)
}

// MustLookup is Lookup for names known at compile time.
func MustLookup(name string) Entry {
	e, err := Lookup(name)
	if err != nil {
		panic(err)
	}
	return e
}
