package voice

import "testing"

func TestLookup(t *testing.T) {
	p, ok := Lookup("Neutral Narrator")
	if !ok {
		t.Fatal("expected preset to exist")
	}
	if p.Category != "neutral_professional" {
		t.Fatalf("unexpected category %q", p.Category)
	}
	if _, ok := Lookup("No Such Voice"); ok {
		t.Fatal("expected miss for unknown name")
	}
}

func TestDescribe(t *testing.T) {
	if got := Describe("Wise Elder Male"); got == "Wise Elder Male" {
		t.Fatal("preset name should resolve to its description")
	}
	literal := "A robotic monotone voice."
	if got := Describe(literal); got != literal {
		t.Fatalf("literal prompt must pass through, got %q", got)
	}
}

func TestCatalogShape(t *testing.T) {
	all := Presets()
	if len(all) == 0 {
		t.Fatal("catalog is empty")
	}
	seen := make(map[string]bool)
	for _, p := range all {
		if p.Name == "" || p.Description == "" || p.Category == "" {
			t.Fatalf("incomplete preset: %+v", p)
		}
		if seen[p.Name] {
			t.Fatalf("duplicate preset name %q", p.Name)
		}
		seen[p.Name] = true
	}
	for _, c := range Categories() {
		if len(ByCategory(c)) == 0 {
			t.Fatalf("category %q has no presets", c)
		}
	}
}
