// Package catalog provides graph search over a static knowledge graph
// described in YAML. It stands in for a live graph search service when
// running offline and in tests.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/scrypster/disambig/pkg/types"
)

// ErrInvalidCatalog is returned when a catalog document is malformed.
var ErrInvalidCatalog = errors.New("invalid catalog")

// GraphSearch proposes graph nodes for a piece of text. When scope is set,
// only nodes at or below that graph path are returned.
type GraphSearch interface {
	Search(ctx context.Context, query, scope string) ([]types.Candidate, error)
}

// Node is one knowledge graph node.
type Node struct {
	Path        string   `yaml:"path"`
	Label       string   `yaml:"label"`
	Description string   `yaml:"description"`
	Aliases     []string `yaml:"aliases"`
}

type document struct {
	Nodes []Node `yaml:"nodes"`
}

type indexedNode struct {
	Node
	names map[string]bool // normalized label and aliases
	label map[string]bool // tokens of label and aliases
	desc  map[string]bool // tokens of the description
}

// Catalog is an in-memory GraphSearch. It is immutable after construction
// and safe for concurrent use.
type Catalog struct {
	nodes []indexedNode
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a catalog from a YAML document of the form
// nodes: [{path, label, description, aliases}]. Paths must be unique.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return New(doc.Nodes)
}

// New builds a catalog from nodes.
func New(nodes []Node) (*Catalog, error) {
	c := &Catalog{nodes: make([]indexedNode, 0, len(nodes))}
	seen := make(map[string]bool, len(nodes))
	for i, n := range nodes {
		n.Path = strings.Trim(n.Path, "/")
		if n.Path == "" {
			return nil, fmt.Errorf("%w: node %d has no path", ErrInvalidCatalog, i)
		}
		if seen[n.Path] {
			return nil, fmt.Errorf("%w: duplicate path %q", ErrInvalidCatalog, n.Path)
		}
		seen[n.Path] = true
		if n.Label == "" {
			n.Label = n.Path[strings.LastIndex(n.Path, "/")+1:]
		}

		in := indexedNode{
			Node:  n,
			names: make(map[string]bool),
			label: make(map[string]bool),
			desc:  make(map[string]bool),
		}
		for _, name := range append([]string{n.Label}, n.Aliases...) {
			toks := tokenize(name)
			in.names[strings.Join(toks, " ")] = true
			for _, t := range toks {
				in.label[t] = true
			}
		}
		for _, t := range tokenize(n.Description) {
			in.desc[t] = true
		}
		c.nodes = append(c.nodes, in)
	}
	return c, nil
}

// Len returns the number of nodes.
func (c *Catalog) Len() int { return len(c.nodes) }

// Search implements GraphSearch. A query equal to the label or an alias
// scores 5. Otherwise the node scores up to 4 by token overlap: a query token
// found in the label or aliases counts fully and one found only in the
// description counts half. Zero scores are omitted and results are ordered by
// descending score, then path.
func (c *Catalog) Search(ctx context.Context, query, scope string) ([]types.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	toks := tokenize(query)
	if len(toks) == 0 {
		return nil, nil
	}
	whole := strings.Join(toks, " ")
	scope = strings.Trim(scope, "/")

	var out []types.Candidate
	for _, n := range c.nodes {
		if !inScope(n.Path, scope) {
			continue
		}
		score := n.score(whole, toks)
		if score == 0 {
			continue
		}
		out = append(out, types.Candidate{
			Path:        n.Path,
			Label:       n.Label,
			Description: n.Description,
			Score:       score,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}

func (n indexedNode) score(whole string, toks []string) float64 {
	if n.names[whole] {
		return types.MaxScore
	}
	var hits float64
	for _, t := range toks {
		switch {
		case n.label[t]:
			hits++
		case n.desc[t]:
			hits += 0.5
		}
	}
	return partialMaxScore * hits / float64(len(toks))
}

// partialMaxScore caps token overlap below MaxScore so only a full name
// match can be a clear winner.
const partialMaxScore = 4.0

func inScope(path, scope string) bool {
	return scope == "" || path == scope || strings.HasPrefix(path, scope+"/")
}

// tokenize lowercases s, splits it on anything that is not a letter or digit,
// drops stop words and strips a plural "s".
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if stopWords[f] {
			continue
		}
		if len(f) > 3 && strings.HasSuffix(f, "s") && !strings.HasSuffix(f, "ss") {
			f = f[:len(f)-1]
		}
		out = append(out, f)
	}
	return out
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "for": true, "to": true,
	"in": true, "on": true, "by": true, "with": true, "and": true, "or": true,
	"all": true, "me": true, "my": true, "show": true, "get": true, "list": true,
}
