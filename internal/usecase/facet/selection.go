package facet

import (
	"net/url"
	"slices"
	"strings"
)

// Selection maps a meta field to the values the visitor picked.
type Selection map[string][]string

// ParseSelection reads selections from URL parameters of the form
// <prefix><field>=v1,v2. Empty values and fields are dropped.
func ParseSelection(q url.Values, prefix string) Selection {
	if prefix == "" {
		prefix = DefaultFilterPrefix
	}
	sel := Selection{}
	for param, raw := range q {
		field, ok := strings.CutPrefix(param, prefix)
		if !ok || field == "" {
			continue
		}
		for _, r := range raw {
			for _, v := range strings.Split(r, ",") {
				v = strings.TrimSpace(v)
				if v != "" && !slices.Contains(sel[field], v) {
					sel[field] = append(sel[field], v)
				}
			}
		}
	}
	return sel
}

// Fields returns the fields with at least one value, sorted.
func (s Selection) Fields() []string {
	out := make([]string, 0, len(s))
	for f, vals := range s {
		if f != "" && len(vals) > 0 {
			out = append(out, f)
		}
	}
	slices.Sort(out)
	return out
}

// IsEmpty reports whether nothing is selected.
func (s Selection) IsEmpty() bool { return len(s.Fields()) == 0 }

// Query renders s back into URL parameters.
func (s Selection) Query(prefix string) url.Values {
	if prefix == "" {
		prefix = DefaultFilterPrefix
	}
	q := url.Values{}
	for _, f := range s.Fields() {
		q.Set(prefix+f, strings.Join(s[f], ","))
	}
	return q
}
