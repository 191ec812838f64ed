package taxonomy

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPreservesOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	data := `categories:
  - label: billing
    synonyms: [refund]
  - label: support
    synonyms: [help]
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	tax, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	labels := tax.Labels()
	if len(labels) != 2 || labels[0] != "billing" || labels[1] != "support" {
		t.Fatalf("file order not preserved: %v", labels)
	}
}

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	tax, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	labels := tax.Labels()
	if len(labels) != 3 || labels[0] != "support" || labels[1] != "sales" || labels[2] != "billing" {
		t.Fatalf("unexpected default taxonomy: %v", labels)
	}
}

func TestLoadRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	data := `categories:
  - label: support
  - label: Support
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected duplicate label error")
	}
}

func TestClassifierFromTaxonomy(t *testing.T) {
	c := Default().Classifier()
	got, err := c.Classify("I was charged twice")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if got != "billing" {
		t.Fatalf("expected billing, got %q", got)
	}
}
