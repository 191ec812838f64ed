package taxonomy

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"triagekit/internal/parse"
)

// Categories are a yaml sequence so file order survives decoding; that
// order is the classification tie-break.
type Taxonomy struct {
	Categories []Category `yaml:"categories"`
}

type Category struct {
	Label    string   `yaml:"label"`
	Synonyms []string `yaml:"synonyms"`
}

func Default() Taxonomy {
	return Taxonomy{Categories: []Category{
		{Label: "support", Synonyms: []string{"help", "broken", "error", "not working", "crash", "bug"}},
		{Label: "sales", Synonyms: []string{"price", "pricing", "quote", "demo", "upgrade", "purchase"}},
		{Label: "billing", Synonyms: []string{"refund", "charge", "charged", "invoice", "payment", "subscription"}},
	}}
}

func Load(path string) (Taxonomy, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Taxonomy{}, err
	}
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Taxonomy{}, err
	}
	if err := t.validate(); err != nil {
		return Taxonomy{}, err
	}
	return t, nil
}

func (t Taxonomy) validate() error {
	if len(t.Categories) == 0 {
		return errors.New("taxonomy has no categories")
	}
	seen := map[string]bool{}
	for _, c := range t.Categories {
		label := strings.ToLower(strings.TrimSpace(c.Label))
		if label == "" {
			return errors.New("taxonomy category with empty label")
		}
		if seen[label] {
			return fmt.Errorf("duplicate taxonomy category %q", label)
		}
		seen[label] = true
	}
	return nil
}

func (t Taxonomy) Classifier() *parse.Classifier {
	categories := make([]parse.Category, 0, len(t.Categories))
	for _, c := range t.Categories {
		categories = append(categories, parse.Category{Label: c.Label, Synonyms: c.Synonyms})
	}
	return parse.NewClassifier(categories)
}

func (t Taxonomy) Labels() []string {
	labels := make([]string, 0, len(t.Categories))
	for _, c := range t.Categories {
		labels = append(labels, strings.ToLower(strings.TrimSpace(c.Label)))
	}
	return labels
}
