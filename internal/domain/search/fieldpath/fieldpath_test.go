package fieldpath

import "testing"

func TestMeta(t *testing.T) {
	tests := []struct {
		key     string
		variant Variant
		want    Path
		wantErr bool
	}{
		{"color", Raw, "meta.color.raw", false},
		{"price", Long, "meta.price.long", false},
		{"price", Double, "meta.price.double", false},
		{"event", Datetime, "meta.event.datetime", false},
		{"", Raw, "", true},
		{"color", Variant("keyword"), "", true},
	}
	for _, tt := range tests {
		t.Run(string(tt.want)+string(tt.variant), func(t *testing.T) {
			got, err := Meta(tt.key, tt.variant)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTaxonomy(t *testing.T) {
	tests := []struct {
		field TermField
		want  Path
	}{
		{TermID, "terms.category.term_id"},
		{Slug, "terms.category.slug"},
		{Name, "terms.category.name.raw"},
		{TermTaxonomyID, "terms.category.term_taxonomy_id"},
	}
	for _, tt := range tests {
		got, err := Taxonomy("category", tt.field)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.field, got, tt.want)
		}
	}
}

func TestTaxonomy_Invalid(t *testing.T) {
	if _, err := Taxonomy("", TermID); err == nil {
		t.Error("expected error for empty taxonomy")
	}
	if _, err := Taxonomy("category", TermField("parent")); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestParseTermField(t *testing.T) {
	f, err := ParseTermField("")
	if err != nil || f != TermID {
		t.Errorf("empty: got %q, %v", f, err)
	}
	f, err = ParseTermField("SLUG")
	if err != nil || f != Slug {
		t.Errorf("SLUG: got %q, %v", f, err)
	}
	if _, err := ParseTermField("id"); err == nil {
		t.Error("expected error for id")
	}
}

func TestParseVariant(t *testing.T) {
	if v, err := ParseVariant(" Long "); err != nil || v != Long {
		t.Errorf("got %q, %v", v, err)
	}
	if _, err := ParseVariant("value.raw"); err == nil {
		t.Error("expected error")
	}
}
