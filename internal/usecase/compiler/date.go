package compiler

import (
	"strconv"
	"strings"
	"time"

	"github.com/alaa-alshamy/ElasticPress/internal/domain/query"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/dsl"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/fieldpath"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/predicate"
)

const dateLayout = "2006-01-02 15:04:05"

var dateInputLayouts = []string{
	dateLayout,
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-01",
	"2006",
}

var dateColumns = map[string]fieldpath.Path{
	"post_date":         fieldpath.PostDate,
	"post_date_gmt":     fieldpath.PostDateGMT,
	"post_modified":     fieldpath.PostModified,
	"post_modified_gmt": fieldpath.PostModifiedGMT,
}

// simpleDateFilter compiles year, monthnum, w, day, hour, minute, second and m.
// Zero values are ignored.
func simpleDateFilter(a *query.Args) dsl.Clause {
	year, month, week, day := a.Year, a.MonthNum, a.Week, a.Day
	hour, minute, second := a.Hour, a.Minute, a.Second
	if m := strings.TrimSpace(a.M); m != "" {
		part := func(from, to int) int {
			if len(m) < to {
				return 0
			}
			n, _ := strconv.Atoi(m[from:to])
			return n
		}
		year, month, day = part(0, 4), part(4, 6), part(6, 8)
		hour, minute, second = part(8, 10), part(10, 12), part(12, 14)
	}

	var terms []dsl.Clause
	for _, u := range []struct {
		unit  string
		value int
	}{
		{"year", year}, {"month", month}, {"week", week}, {"day", day},
		{"hour", hour}, {"minute", minute}, {"second", second},
	} {
		if u.value != 0 {
			terms = append(terms, dsl.Term(fieldpath.DateTerm(u.unit).String(), u.value))
		}
	}
	if len(terms) == 0 {
		return nil
	}
	return dsl.AllOf(terms...)
}

// dateQueryFilter compiles a date_query. Clauses that yield no condition are dropped.
func dateQueryFilter(q *query.DateQuery) dsl.Clause {
	if q == nil {
		return nil
	}
	var b branch
	for _, c := range q.Clauses {
		if cl := dateClause(c, q.Column); cl != nil {
			b.filter = append(b.filter, cl)
		}
	}
	return b.clause(predicate.ParseRelation(q.Relation))
}

func dateClause(c query.DateClause, defaultColumn string) dsl.Clause {
	column := c.Column
	if column == "" {
		column = defaultColumn
	}
	path, ok := dateColumns[column]
	if !ok {
		path = fieldpath.PostDate
	}

	var conds []dsl.Clause
	bounds := map[string]any{}
	if c.After != nil {
		if t, ok := resolveBound(*c.After, !c.Inclusive); ok {
			bounds[pick(c.Inclusive, "gte", "gt")] = t.Format(dateLayout)
		}
	}
	if c.Before != nil {
		if t, ok := resolveBound(*c.Before, c.Inclusive); ok {
			bounds[pick(c.Inclusive, "lte", "lt")] = t.Format(dateLayout)
		}
	}
	if len(bounds) > 0 {
		conds = append(conds, dsl.Range(path.String(), bounds))
	}

	for _, u := range []struct {
		unit  string
		value int
	}{
		{"year", c.Year}, {"month", c.Month}, {"week", c.Week}, {"day", c.Day},
		{"dayofweek", c.DayOfWeek}, {"dayofyear", c.DayOfYear},
		{"hour", c.Hour}, {"minute", c.Minute}, {"second", c.Second},
	} {
		if u.value != 0 {
			conds = append(conds, dsl.Term(fieldpath.DateTerm(u.unit).String(), u.value))
		}
	}

	switch len(conds) {
	case 0:
		return nil
	case 1:
		return conds[0]
	default:
		return dsl.AllOf(conds...)
	}
}

func pick(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}

// resolveBound turns a bound into an instant. Missing parts are filled with
// the start of the period, or its last second when end is set.
func resolveBound(b query.DateBound, end bool) (time.Time, bool) {
	if b.Text != "" {
		for _, layout := range dateInputLayouts {
			t, err := time.Parse(layout, strings.TrimSpace(b.Text))
			if err != nil {
				continue
			}
			if end && !strings.Contains(layout, "15") {
				t = endOfPeriod(t, layout)
			}
			return t, true
		}
		return time.Time{}, false
	}
	if b.Year == 0 {
		return time.Time{}, false
	}

	month, day := b.Month, b.Day
	hour, minute, second := b.Hour, b.Minute, b.Second
	if end {
		if month == 0 {
			month = 12
		}
		if day == 0 {
			day = daysIn(b.Year, month)
		}
		if b.Hour == 0 && b.Minute == 0 && b.Second == 0 {
			hour, minute, second = 23, 59, 59
		}
	} else {
		if month == 0 {
			month = 1
		}
		if day == 0 {
			day = 1
		}
	}
	return time.Date(b.Year, time.Month(month), day, hour, minute, second, 0, time.UTC), true
}

func endOfPeriod(t time.Time, layout string) time.Time {
	switch layout {
	case "2006":
		return t.AddDate(1, 0, 0).Add(-time.Second)
	case "2006-01":
		return t.AddDate(0, 1, 0).Add(-time.Second)
	default:
		return t.AddDate(0, 0, 1).Add(-time.Second)
	}
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
