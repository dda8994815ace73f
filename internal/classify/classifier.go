// Package classify maps a topic title and its subject label to a content bucket.
package classify

import (
	"strings"

	"github.com/p-n-ai/pai-curator/internal/catalog"
	"golang.org/x/text/cases"
)

// Classifier evaluates the catalog's ordered rule table. It is safe for
// concurrent use: all state is built once and only read afterwards.
type Classifier struct {
	families []family
}

type family struct {
	name  string
	match []string
	rules []rule
}

type rule struct {
	bucket string
	all    []string
	any    []string
}

// New folds every term in the catalog once so Classify only folds its inputs.
func New(c *catalog.Catalog) *Classifier {
	cl := &Classifier{families: make([]family, 0, len(c.Families))}
	for _, f := range c.Families {
		fam := family{name: f.Name, match: foldAll(f.Match)}
		for _, r := range f.Rules {
			fam.rules = append(fam.rules, rule{
				bucket: r.Bucket,
				all:    foldAll(r.All),
				any:    foldAll(r.Any),
			})
		}
		cl.families = append(cl.families, fam)
	}
	return cl
}

// Classify returns the bucket key for a topic, or false when no family or rule
// matches. The first matching rule wins; rule order is priority.
func (c *Classifier) Classify(title, subject string) (string, bool) {
	f, ok := c.family(fold(subject))
	if !ok {
		return "", false
	}
	t := fold(title)
	for _, r := range f.rules {
		if r.matches(t) {
			return r.bucket, true
		}
	}
	return "", false
}

// Family returns the name of the subject family a label belongs to.
func (c *Classifier) Family(subject string) (string, bool) {
	f, ok := c.family(fold(subject))
	if !ok {
		return "", false
	}
	return f.name, true
}

func (c *Classifier) family(subject string) (family, bool) {
	if subject == "" {
		return family{}, false
	}
	for _, f := range c.families {
		for _, m := range f.match {
			if strings.Contains(subject, m) {
				return f, true
			}
		}
	}
	return family{}, false
}

func (r rule) matches(title string) bool {
	for _, term := range r.all {
		if !strings.Contains(title, term) {
			return false
		}
	}
	if len(r.any) == 0 {
		return len(r.all) > 0
	}
	for _, term := range r.any {
		if strings.Contains(title, term) {
			return true
		}
	}
	return false
}

// fold applies Unicode case folding; a Caser is not safe for concurrent use,
// so one is made per call.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

func foldAll(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = fold(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
