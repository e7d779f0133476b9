package catalog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultScheme is prepended to catalog entries that do not start with "http".
const DefaultScheme = "http://"

// Catalog is an ordered list of unique test URLs. Entries may omit the scheme.
type Catalog struct {
	urls []string
}

// New creates a catalog from the given entries, keeping the first occurrence of each entry
// and dropping blanks.
func New(urls ...string) Catalog {
	seen := make(map[string]struct{}, len(urls))
	result := make([]string, 0, len(urls))

	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}

		seen[u] = struct{}{}
		result = append(result, u)
	}

	return Catalog{urls: result}
}

// URLs returns a copy of the catalog entries in order.
func (c Catalog) URLs() []string {
	result := make([]string, len(c.urls))
	copy(result, c.urls)
	return result
}

func (c Catalog) Len() int {
	return len(c.urls)
}

func (c Catalog) IsEmpty() bool {
	return len(c.urls) == 0
}

// Merge appends entries of other that are not already present.
func (c Catalog) Merge(other Catalog) Catalog {
	return New(append(c.URLs(), other.urls...)...)
}

// WithScheme defaults a missing scheme to plain HTTP.
func WithScheme(url string) string {
	if strings.HasPrefix(url, "http") {
		return url
	}

	return DefaultScheme + url
}

// Normalize strips the query string, so that the same page can be matched across runs
// where query parameters (e.g. timestamps) differ.
func Normalize(raw string) string {
	base, _, _ := strings.Cut(raw, "?")
	return base
}

type listParser struct {
	entries []string
}

func (p *listParser) onLine(line string) error {
	content, _, _ := strings.Cut(line, "#") // <url> # trailing comment
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	if strings.ContainsAny(content, " \t") {
		return fmt.Errorf("unexpected whitespace in catalog entry %q", content)
	}

	p.entries = append(p.entries, content)
	return nil
}

// Parse reads a catalog list: one URL or hostname per line, '#' starts a comment.
func Parse(r io.Reader) (Catalog, error) {
	parser := listParser{}
	scanner := bufio.NewScanner(r)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := parser.onLine(scanner.Text()); err != nil {
			return Catalog{}, fmt.Errorf("failed to parse catalog line %d: %w", lineNo, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return Catalog{}, fmt.Errorf("reading catalog: %w", err)
	}

	return New(parser.entries...), nil
}

// manifest is the serialized form of a catalog.
type manifest struct {
	URLs []string `json:"urls" yaml:"urls"`
}

func (c Catalog) MarshalJSON() ([]byte, error) {
	return json.Marshal(manifest{URLs: c.URLs()})
}

func (c Catalog) MarshalYAML() (any, error) {
	return manifest{URLs: c.URLs()}, nil
}

func (c *Catalog) UnmarshalYAML(value *yaml.Node) error {
	var m manifest
	if err := value.Decode(&m); err != nil {
		return err
	}

	*c = New(m.URLs...)
	return nil
}

// ParseManifest reads a catalog from a yaml document with a top-level "urls" list.
func ParseManifest(r io.Reader) (Catalog, error) {
	var result Catalog
	if err := yaml.NewDecoder(r).Decode(&result); err != nil && !errors.Is(err, io.EOF) {
		return Catalog{}, fmt.Errorf("failed to parse catalog manifest: %w", err)
	}

	return result, nil
}
