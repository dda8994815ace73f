// Package catalog holds the static classification data: subject families with
// their ordered keyword rules, the canonical media buckets those rules resolve
// to, and the course-directory to category lookup.
package catalog

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/p-n-ai/pai-curator/internal/curriculum"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog is immutable once loaded.
type Catalog struct {
	Levels     []string          `yaml:"levels"`
	Categories map[string]string `yaml:"categories"`
	Families   []Family          `yaml:"families"`
	Buckets    map[string]Bucket `yaml:"buckets"`
}

// Family is a subject family, e.g. mathematics or Spanish. A subject label
// belongs to the first family with a match term contained in it.
type Family struct {
	Name  string   `yaml:"name"`
	Match []string `yaml:"match"`
	Rules []Rule   `yaml:"rules"`
}

// Rule maps a topic title to a bucket. All terms in All must appear, and at
// least one term in Any must appear when Any is non-empty.
type Rule struct {
	Bucket string   `yaml:"bucket"`
	All    []string `yaml:"all"`
	Any    []string `yaml:"any"`
}

// Bucket is a curated reference set for one classified topic.
type Bucket struct {
	Key    string                `yaml:"-"`
	Videos []curriculum.MediaRef `yaml:"videos"`
	Images []string              `yaml:"images"`
}

// Default parses the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, err
	}
	slog.Info("catalog loaded", "path", path, "families", len(c.Families), "buckets", len(c.Buckets))
	return c, nil
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	for key, b := range c.Buckets {
		b.Key = key
		c.Buckets[key] = b
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that every rule is well-formed and points at a bucket with media.
func (c *Catalog) Validate() error {
	for key, b := range c.Buckets {
		if len(b.Videos) == 0 {
			return fmt.Errorf("bucket %q has no videos", key)
		}
		for i, v := range b.Videos {
			if v.URL == "" {
				return fmt.Errorf("bucket %q video %d has no url", key, i)
			}
		}
	}
	for _, f := range c.Families {
		if f.Name == "" || len(f.Match) == 0 {
			return fmt.Errorf("family %q needs a name and match terms", f.Name)
		}
		for i, r := range f.Rules {
			if len(r.All) == 0 && len(r.Any) == 0 {
				return fmt.Errorf("family %q rule %d has no terms", f.Name, i)
			}
			if _, ok := c.Buckets[r.Bucket]; !ok {
				return fmt.Errorf("family %q rule %d references unknown bucket %q", f.Name, i, r.Bucket)
			}
		}
	}
	return nil
}

// Bucket returns the bucket for key.
func (c *Catalog) Bucket(key string) (Bucket, bool) {
	b, ok := c.Buckets[key]
	return b, ok
}

// Category maps a course directory name to its content category, or "" when unknown.
func (c *Catalog) Category(courseDir string) string {
	if cat, ok := c.Categories[courseDir]; ok {
		return cat
	}
	return c.Categories[strings.ToLower(courseDir)]
}

// Level reports whether name is a known course level, returning its canonical form.
func (c *Catalog) Level(name string) (string, bool) {
	for _, l := range c.Levels {
		if strings.EqualFold(l, name) {
			return l, true
		}
	}
	return "", false
}
