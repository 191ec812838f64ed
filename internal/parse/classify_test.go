package parse

import (
	"errors"
	"testing"
)

func testClassifier() *Classifier {
	return NewClassifier([]Category{
		{Label: "support", Synonyms: []string{"help", "broken", "error", "not working"}},
		{Label: "sales", Synonyms: []string{"price", "quote", "demo", "upgrade"}},
		{Label: "billing", Synonyms: []string{"refund", "charge", "invoice", "payment"}},
	})
}

func TestClassifyExactLabel(t *testing.T) {
	got, err := testClassifier().Classify("Support")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if got != "support" {
		t.Fatalf("expected support, got %q", got)
	}
}

func TestClassifySynonym(t *testing.T) {
	got, err := testClassifier().Classify("I'd like a refund, my card was charged twice")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if got != "billing" {
		t.Fatalf("expected billing, got %q", got)
	}
}

func TestClassifyNoMatch(t *testing.T) {
	_, err := testClassifier().Classify("banana")
	var nm *NoMatchError
	if !errors.As(err, &nm) {
		t.Fatalf("expected NoMatchError, got %v", err)
	}
	if nm.Raw != "banana" {
		t.Fatalf("expected raw text preserved, got %q", nm.Raw)
	}
}

func TestClassifyLabelBeatsOtherCategorySynonym(t *testing.T) {
	// "sales" is a canonical label, "charge" a billing synonym; the label
	// substring stage runs before any synonym lookup.
	got, err := testClassifier().Classify("the sales rep said the charge was wrong")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if got != "sales" {
		t.Fatalf("expected sales, got %q", got)
	}
}

func TestClassifyDeclarationOrderBreaksSynonymTies(t *testing.T) {
	// "price" (sales) is declared before "charge" (billing); sales is
	// declared first, so it wins when both synonyms appear.
	got, err := testClassifier().Classify("the price of that charge seems off")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if got != "sales" {
		t.Fatalf("expected sales by declaration order, got %q", got)
	}
}

func TestClassifyOutputAlwaysCanonical(t *testing.T) {
	c := testClassifier()
	labels := map[string]bool{}
	for _, l := range c.Labels() {
		labels[l] = true
	}
	inputs := []string{"Support", "BILLING", "need a quote asap", "banana", "", "  Sales.  ", "help me"}
	for _, in := range inputs {
		got, err := c.Classify(in)
		if err != nil {
			var nm *NoMatchError
			if !errors.As(err, &nm) {
				t.Fatalf("%q: unexpected error type %v", in, err)
			}
			continue
		}
		if !labels[got] {
			t.Fatalf("%q: classified to non-canonical %q", in, got)
		}
	}
}

func TestClassifyEmptyInput(t *testing.T) {
	if _, err := testClassifier().Classify("   "); err == nil {
		t.Fatalf("expected error for blank input")
	}
}
