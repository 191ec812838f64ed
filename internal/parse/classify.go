package parse

import (
	"fmt"
	"strings"
)

// Category pairs a canonical label with the related terms that resolve to
// it. Declaration order is the tie-break everywhere: when raw text could
// match more than one entry, the first declared one wins.
type Category struct {
	Label    string
	Synonyms []string
}

type NoMatchError struct {
	Raw string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no category match for %q", e.Raw)
}

type Classifier struct {
	categories []Category
}

func NewClassifier(categories []Category) *Classifier {
	folded := make([]Category, 0, len(categories))
	for _, c := range categories {
		fc := Category{Label: strings.ToLower(strings.TrimSpace(c.Label))}
		for _, s := range c.Synonyms {
			s = strings.ToLower(strings.TrimSpace(s))
			if s != "" {
				fc.Synonyms = append(fc.Synonyms, s)
			}
		}
		if fc.Label != "" {
			folded = append(folded, fc)
		}
	}
	return &Classifier{categories: folded}
}

func (c *Classifier) Labels() []string {
	labels := make([]string, 0, len(c.categories))
	for _, cat := range c.categories {
		labels = append(labels, cat.Label)
	}
	return labels
}

// Classify resolves raw model output to a canonical label. Stages run in
// strict order so a canonical label in the text always beats another
// category's synonym: exact match, then label substring, then synonym
// substring.
func (c *Classifier) Classify(raw string) (string, error) {
	text := strings.ToLower(strings.TrimSpace(raw))
	if text == "" {
		return "", &NoMatchError{Raw: raw}
	}
	for _, cat := range c.categories {
		if text == cat.Label {
			return cat.Label, nil
		}
	}
	for _, cat := range c.categories {
		if strings.Contains(text, cat.Label) {
			return cat.Label, nil
		}
	}
	for _, cat := range c.categories {
		for _, syn := range cat.Synonyms {
			if strings.Contains(text, syn) {
				return cat.Label, nil
			}
		}
	}
	return "", &NoMatchError{Raw: raw}
}
