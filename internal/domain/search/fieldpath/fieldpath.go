// Package fieldpath builds index field paths for posts, metadata and taxonomies.
package fieldpath

import (
	"fmt"
	"strings"
)

// Path is a dotted index field path.
type Path string

func (p Path) String() string { return string(p) }

// Post-level fields.
const (
	ID                    Path = "_id"
	Score                 Path = "_score"
	PostID                Path = "post_id"
	PostParent            Path = "post_parent"
	PostName              Path = "post_name.raw"
	PostType              Path = "post_type.raw"
	PostStatus            Path = "post_status"
	PostMimeType          Path = "post_mime_type"
	PostAuthorID          Path = "post_author.id"
	PostAuthorDisplayName Path = "post_author.display_name"
	PostAuthorLogin       Path = "post_author.login"
	PostDate              Path = "post_date"
	PostDateGMT           Path = "post_date_gmt"
	PostModified          Path = "post_modified"
	PostModifiedGMT       Path = "post_modified_gmt"
	PostTitleSortable     Path = "post_title.sortable"
	PostEmbedding         Path = "post_embedding"
)

// DateTerm returns the path of a broken-down date component, e.g. date_terms.year.
func DateTerm(unit string) Path {
	return Path("date_terms." + unit)
}

// Variant is a typed sub-field of a metadata key.
type Variant string

// Metadata sub-fields present in the index mapping.
const (
	Raw      Variant = "raw"
	Value    Variant = "value"
	Long     Variant = "long"
	Double   Variant = "double"
	Boolean  Variant = "boolean"
	Date     Variant = "date"
	Datetime Variant = "datetime"
	Time     Variant = "time"
)

var variants = map[Variant]struct{}{
	Raw: {}, Value: {}, Long: {}, Double: {}, Boolean: {}, Date: {}, Datetime: {}, Time: {},
}

// ParseVariant validates a variant name.
func ParseVariant(s string) (Variant, error) {
	v := Variant(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := variants[v]; !ok {
		return "", fmt.Errorf("unknown meta variant %q", s)
	}
	return v, nil
}

// MetaRoot returns meta.<key>, the path used for existence checks.
func MetaRoot(key string) (Path, error) {
	if key == "" {
		return "", fmt.Errorf("meta key is required")
	}
	return Path("meta." + key), nil
}

// Meta returns meta.<key>.<variant>.
func Meta(key string, v Variant) (Path, error) {
	root, err := MetaRoot(key)
	if err != nil {
		return "", err
	}
	if _, ok := variants[v]; !ok {
		return "", fmt.Errorf("unknown meta variant %q", v)
	}
	return root + "." + Path(v), nil
}

// TermField is an attribute of an indexed taxonomy term.
type TermField string

const (
	TermID         TermField = "term_id"
	Slug           TermField = "slug"
	Name           TermField = "name"
	TermTaxonomyID TermField = "term_taxonomy_id"
)

// ParseTermField validates a term field name. Empty input yields TermID.
func ParseTermField(s string) (TermField, error) {
	switch f := TermField(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return TermID, nil
	case TermID, Slug, Name, TermTaxonomyID:
		return f, nil
	default:
		return "", fmt.Errorf("unknown term field %q", s)
	}
}

// TaxonomyRoot returns terms.<taxonomy>, the path used for existence checks.
func TaxonomyRoot(taxonomy string) (Path, error) {
	if taxonomy == "" {
		return "", fmt.Errorf("taxonomy is required")
	}
	return Path("terms." + taxonomy), nil
}

// Taxonomy returns terms.<taxonomy>.<field>. Names are matched on their
// keyword sub-field.
func Taxonomy(taxonomy string, f TermField) (Path, error) {
	root, err := TaxonomyRoot(taxonomy)
	if err != nil {
		return "", err
	}
	switch f {
	case TermID, Slug, TermTaxonomyID:
		return root + "." + Path(f), nil
	case Name:
		return root + ".name.raw", nil
	default:
		return "", fmt.Errorf("unknown term field %q", f)
	}
}

// TaxonomyName returns terms.<taxonomy>.name, the analyzed field used for search.
func TaxonomyName(taxonomy string) Path {
	return Path("terms." + taxonomy + ".name")
}
