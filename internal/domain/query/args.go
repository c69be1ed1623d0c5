// Package query holds the abstract content query that gets compiled into a
// search document.
package query

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/alaa-alshamy/ElasticPress/internal/domain"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/predicate"
)

// Field projections for Args.Fields.
const (
	FieldsIDs      = "ids"
	FieldsIDParent = "id=>parent"
)

// AnyValue disables the default restriction of post_type, post_status and post_parent.
const AnyValue = "any"

// AllResults as posts_per_page asks for the whole result window.
const AllResults = -1

// Special orderby keys.
const (
	RandomOrderKey  = "rand"
	RandomOrderAlt  = "random"
	RelevanceKey    = "relevance"
	MetaValueKey    = "meta_value"
	MetaValueNumKey = "meta_value_num"
)

// Principal describes who the query runs for.
type Principal struct {
	// Admin widens default statuses with protected ones.
	Admin bool
	// Authenticated additionally allows private content for admins.
	Authenticated bool
}

// Args is a content query. Zero values mean "not specified".
type Args struct {
	PostsPerPage *int   `json:"posts_per_page,omitempty"`
	Paged        int    `json:"paged,omitempty"`
	Offset       *int   `json:"offset,omitempty"`
	Order        string `json:"order,omitempty"`
	OrderBy      Sort   `json:"orderby,omitempty"`

	PostType     StringList `json:"post_type,omitempty"`
	PostStatus   StringList `json:"post_status,omitempty"`
	PostMimeType *MimeType  `json:"post_mime_type,omitempty"`

	Author      *Scalar `json:"author,omitempty"`
	AuthorName  string  `json:"author_name,omitempty"`
	AuthorIn    IDList  `json:"author__in,omitempty"`
	AuthorNotIn IDList  `json:"author__not_in,omitempty"`

	PostIn     IDList     `json:"post__in,omitempty"`
	PostNotIn  IDList     `json:"post__not_in,omitempty"`
	PostNameIn StringList `json:"post_name__in,omitempty"`
	PostParent *Scalar    `json:"post_parent,omitempty"`

	CategoryIn    IDList     `json:"category__in,omitempty"`
	CategoryNotIn IDList     `json:"category__not_in,omitempty"`
	CategoryAnd   IDList     `json:"category__and,omitempty"`
	TagIn         IDList     `json:"tag__in,omitempty"`
	TagNotIn      IDList     `json:"tag__not_in,omitempty"`
	TagAnd        IDList     `json:"tag__and,omitempty"`
	TagSlugIn     StringList `json:"tag_slug__in,omitempty"`
	TagSlugAnd    StringList `json:"tag_slug__and,omitempty"`

	TaxQuery *predicate.TaxQuery `json:"tax_query,omitempty"`

	MetaKey      string               `json:"meta_key,omitempty"`
	MetaValue    *Scalar              `json:"meta_value,omitempty"`
	MetaValueNum *Scalar              `json:"meta_value_num,omitempty"`
	MetaCompare  string               `json:"meta_compare,omitempty"`
	MetaType     string               `json:"meta_type,omitempty"`
	MetaQuery    *predicate.MetaQuery `json:"meta_query,omitempty"`

	Year      int        `json:"year,omitempty"`
	MonthNum  int        `json:"monthnum,omitempty"`
	Week      int        `json:"w,omitempty"`
	Day       int        `json:"day,omitempty"`
	Hour      int        `json:"hour,omitempty"`
	Minute    int        `json:"minute,omitempty"`
	Second    int        `json:"second,omitempty"`
	M         string     `json:"m,omitempty"`
	DateQuery *DateQuery `json:"date_query,omitempty"`

	Search          string        `json:"s,omitempty"`
	SearchFields    *SearchFields `json:"search_fields,omitempty"`
	SearchAlgorithm string        `json:"search_algorithm,omitempty"`
	MatchAll        bool          `json:"ep_match_all,omitempty"`
	Integrate       bool          `json:"ep_integrate,omitempty"`

	Fields string  `json:"fields,omitempty"`
	Aggs   AggList `json:"aggs,omitempty"`

	IsHome            bool `json:"is_home,omitempty"`
	IgnoreStickyPosts bool `json:"ignore_sticky_posts,omitempty"`
	Facetable         bool `json:"ep_facet,omitempty"`

	Principal Principal `json:"-"`
	// AggFilterExcludeMeta lists meta keys whose top-level leaves are left out
	// of the filter that scopes aggregations.
	AggFilterExcludeMeta []string `json:"-"`
}

// Decode parses a JSON query.
func Decode(data []byte) (*Args, error) {
	var a Args
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidArgs, err)
	}
	return &a, nil
}

// HasSearch reports whether free text was given.
func (a *Args) HasSearch() bool { return a.Search != "" }

// Clone returns a deep copy.
func (a *Args) Clone() *Args {
	out := *a
	out.PostsPerPage = clonePtr(a.PostsPerPage)
	out.Offset = clonePtr(a.Offset)
	out.Author = clonePtr(a.Author)
	out.PostParent = clonePtr(a.PostParent)
	out.MetaValue = clonePtr(a.MetaValue)
	out.MetaValueNum = clonePtr(a.MetaValueNum)

	out.OrderBy = slices.Clone(a.OrderBy)
	out.PostType = slices.Clone(a.PostType)
	out.PostStatus = slices.Clone(a.PostStatus)
	out.AuthorIn = slices.Clone(a.AuthorIn)
	out.AuthorNotIn = slices.Clone(a.AuthorNotIn)
	out.PostIn = slices.Clone(a.PostIn)
	out.PostNotIn = slices.Clone(a.PostNotIn)
	out.PostNameIn = slices.Clone(a.PostNameIn)
	out.CategoryIn = slices.Clone(a.CategoryIn)
	out.CategoryNotIn = slices.Clone(a.CategoryNotIn)
	out.CategoryAnd = slices.Clone(a.CategoryAnd)
	out.TagIn = slices.Clone(a.TagIn)
	out.TagNotIn = slices.Clone(a.TagNotIn)
	out.TagAnd = slices.Clone(a.TagAnd)
	out.TagSlugIn = slices.Clone(a.TagSlugIn)
	out.TagSlugAnd = slices.Clone(a.TagSlugAnd)
	out.AggFilterExcludeMeta = slices.Clone(a.AggFilterExcludeMeta)
	out.Aggs = a.Aggs.clone()

	if a.PostMimeType != nil {
		m := MimeType{Types: slices.Clone(a.PostMimeType.Types), Prefix: a.PostMimeType.Prefix}
		out.PostMimeType = &m
	}
	if a.TaxQuery != nil {
		t := a.TaxQuery.Clone()
		out.TaxQuery = &t
	}
	if a.MetaQuery != nil {
		m := a.MetaQuery.Clone()
		out.MetaQuery = &m
	}
	if a.DateQuery != nil {
		d := *a.DateQuery
		d.Clauses = slices.Clone(a.DateQuery.Clauses)
		out.DateQuery = &d
	}
	if a.SearchFields != nil {
		f := SearchFields{
			Fields:     slices.Clone(a.SearchFields.Fields),
			Taxonomies: slices.Clone(a.SearchFields.Taxonomies),
			Meta:       slices.Clone(a.SearchFields.Meta),
		}
		out.SearchFields = &f
	}
	return &out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
