package compiler

import (
	"regexp"
	"strings"

	"github.com/alaa-alshamy/ElasticPress/internal/domain/query"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/dsl"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/fieldpath"
)

var fullMimeType = regexp.MustCompile(`(?i)^[-._a-z0-9]+/[-._a-z0-9]+$`)

// buildFilter assembles the filter tree from every restriction in a.
// excludeMeta drops top-level meta leaves by key.
func (c *Compiler) buildFilter(a *query.Args, excludeMeta []string) dsl.Bool {
	var f dsl.Bool
	add := func(cl dsl.Clause) {
		if cl != nil {
			f.Must = append(f.Must, cl)
		}
	}

	if root, ok := taxTree(a); ok {
		add(compileTax(root, root.Relation))
	}

	if a.PostParent.IsSet() && a.PostParent.String() != "" && !strings.EqualFold(a.PostParent.String(), query.AnyValue) {
		add(dsl.Term(fieldpath.PostParent.String(), a.PostParent.Value()))
	}
	if len(a.PostIn) > 0 {
		add(dsl.Terms(fieldpath.PostID.String(), a.PostIn.Any()))
	}
	if len(a.PostNameIn) > 0 {
		add(dsl.Terms(fieldpath.PostName.String(), stringsToAny(a.PostNameIn)))
	}
	if len(a.PostNotIn) > 0 {
		add(dsl.Not(dsl.Terms(fieldpath.PostID.String(), a.PostNotIn.Any())))
	}
	if len(a.CategoryNotIn) > 0 {
		add(dsl.Not(dsl.Terms(mustTaxPath("category"), a.CategoryNotIn.Any())))
	}
	if len(a.TagNotIn) > 0 {
		add(dsl.Not(dsl.Terms(mustTaxPath("post_tag"), a.TagNotIn.Any())))
	}

	add(authorFilter(a))
	add(c.mimeFilter(a.PostMimeType))
	add(simpleDateFilter(a))
	add(dateQueryFilter(a.DateQuery))

	if root, ok := metaTree(a, excludeMeta); ok {
		add(compileMeta(root, root.Relation))
	}

	add(c.typeFilter(a))
	add(c.statusFilter(a))
	return f
}

func mustTaxPath(taxonomy string) string {
	p, _ := fieldpath.Taxonomy(taxonomy, fieldpath.TermID)
	return p.String()
}

// authorFilter applies the first of author, author_name, author__in and
// author__not_in that is set.
func authorFilter(a *query.Args) dsl.Clause {
	switch {
	case a.Author.IsSet() && a.Author.String() != "" && a.Author.String() != "0":
		return dsl.Term(fieldpath.PostAuthorID.String(), a.Author.Value())
	case a.AuthorName != "":
		return dsl.Term(fieldpath.PostAuthorDisplayName.String(), a.AuthorName)
	case len(a.AuthorIn) > 0:
		return dsl.Terms(fieldpath.PostAuthorID.String(), a.AuthorIn.Any())
	case len(a.AuthorNotIn) > 0:
		return dsl.Not(dsl.Terms(fieldpath.PostAuthorID.String(), a.AuthorNotIn.Any()))
	}
	return nil
}

// mimeFilter matches a prefix for a single type and exact types for a list.
// Bare top-level types in a list expand to every known subtype.
func (c *Compiler) mimeFilter(m *query.MimeType) dsl.Clause {
	if m.IsEmpty() {
		return nil
	}
	if m.Types == nil {
		return dsl.Regexp(fieldpath.PostMimeType.String(), m.Prefix+".*")
	}
	var types []any
	for _, t := range m.Types {
		if t == "" || fullMimeType.MatchString(t) {
			types = append(types, t)
			continue
		}
		for _, known := range c.cfg.MimeTypes {
			if strings.HasPrefix(known, t+"/") {
				types = append(types, known)
			}
		}
	}
	return dsl.Terms(fieldpath.PostMimeType.String(), types)
}

// typeFilter restricts post types. Without an explicit type, non-search
// queries default to the primary type.
func (c *Compiler) typeFilter(a *query.Args) dsl.Clause {
	if len(a.PostType) > 0 {
		if a.PostType.Contains(query.AnyValue) {
			return nil
		}
		return dsl.Terms(fieldpath.PostType.String(), stringsToAny(a.PostType))
	}
	if a.HasSearch() {
		return nil
	}
	return dsl.Term(fieldpath.PostType.String(), c.cfg.PrimaryType)
}

// statusFilter restricts post statuses. Without an explicit status, public
// statuses apply, widened for admins and again for signed-in admins.
func (c *Compiler) statusFilter(a *query.Args) dsl.Clause {
	if len(a.PostStatus) > 0 {
		if a.PostStatus.Contains(query.AnyValue) {
			return nil
		}
		if len(a.PostStatus) == 1 {
			return dsl.Term(fieldpath.PostStatus.String(), a.PostStatus[0])
		}
		return dsl.Terms(fieldpath.PostStatus.String(), stringsToAny(a.PostStatus))
	}

	statuses := append([]string{}, c.cfg.PublicStatuses...)
	if a.Principal.Admin {
		statuses = append(statuses, c.cfg.ProtectedStatuses...)
		if a.Principal.Authenticated {
			statuses = append(statuses, c.cfg.PrivateStatuses...)
		}
	}
	return dsl.Terms(fieldpath.PostStatus.String(), stringsToAny(statuses))
}
