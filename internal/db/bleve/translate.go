package bleve

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/alaa-alshamy/ElasticPress/internal/domain"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/dsl"
)

// dateLayouts are tried, in order, for string range bounds.
var dateLayouts = []string{time.DateTime, time.DateOnly, time.RFC3339}

func searchRequest(doc dsl.Document) (*bleve.SearchRequest, error) {
	q, err := translate(doc.Query)
	if err != nil {
		return nil, err
	}
	if doc.PostFilter != nil {
		f, err := translate(doc.PostFilter)
		if err != nil {
			return nil, err
		}
		q = bleve.NewConjunctionQuery(q, f)
	}

	req := bleve.NewSearchRequestOptions(q, doc.Size, doc.From, false)
	req.Fields = []string{"*"}
	if doc.Source != nil {
		req.Fields = doc.Source.Includes
	}
	if order := sortOrder(doc.Sort); len(order) > 0 {
		req.SortBy(order)
	}
	return req, nil
}

// translate maps a clause onto a bleve query. A nil clause matches all
// documents. Scoring functions are dropped; only their inner query is kept.
func translate(c dsl.Clause) (blevequery.Query, error) {
	if len(c) == 0 {
		return bleve.NewMatchAllQuery(), nil
	}
	if len(c) != 1 {
		return nil, fmt.Errorf("%w: clause with %d kinds", domain.ErrNotSupported, len(c))
	}
	for kind, raw := range c {
		body, _ := asClause(raw)
		switch kind {
		case "match_all":
			return bleve.NewMatchAllQuery(), nil
		case "match_none":
			return bleve.NewMatchNoneQuery(), nil
		case "term":
			field, value, err := single(body)
			if err != nil {
				return nil, err
			}
			if m, ok := asClause(value); ok {
				value = m["value"]
			}
			return termQuery(field, value), nil
		case "terms":
			field, value, err := single(body)
			if err != nil {
				return nil, err
			}
			values, _ := value.([]any)
			return termsQuery(field, values), nil
		case "ids":
			values, _ := body["values"].([]any)
			return termsQuery("_id", values), nil
		case "bool":
			return boolQuery(body)
		case "match":
			return matchQuery(body)
		case "multi_match":
			return multiMatchQuery(body)
		case "range":
			return rangeQuery(body)
		case "regexp":
			field, value, err := single(body)
			if err != nil {
				return nil, err
			}
			if m, ok := asClause(value); ok {
				value = m["value"]
			}
			q := bleve.NewRegexpQuery(fmt.Sprint(value))
			q.SetField(field)
			return q, nil
		case "function_score", "script_score":
			inner, _ := asClause(body["query"])
			return translate(inner)
		default:
			return nil, fmt.Errorf("%w: %s clause", domain.ErrNotSupported, kind)
		}
	}
	return nil, nil
}

func boolQuery(body map[string]any) (blevequery.Query, error) {
	must, err := clauses(body["must"])
	if err != nil {
		return nil, err
	}
	filter, err := clauses(body["filter"])
	if err != nil {
		return nil, err
	}
	should, err := clauses(body["should"])
	if err != nil {
		return nil, err
	}
	mustNot, err := clauses(body["must_not"])
	if err != nil {
		return nil, err
	}
	must = append(must, filter...)

	if len(must) == 0 && len(should) == 0 && len(mustNot) == 0 {
		return bleve.NewMatchAllQuery(), nil
	}
	q := bleve.NewBooleanQuery()
	q.AddMust(must...)
	q.AddShould(should...)
	q.AddMustNot(mustNot...)
	if len(should) > 0 && len(must) == 0 {
		q.SetMinShould(1)
	}
	return q, nil
}

func clauses(raw any) ([]blevequery.Query, error) {
	var list []dsl.Clause
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []dsl.Clause:
		list = v
	case []any:
		for _, item := range v {
			c, ok := asClause(item)
			if !ok {
				return nil, fmt.Errorf("%w: bool child %T", domain.ErrNotSupported, item)
			}
			list = append(list, c)
		}
	default:
		c, ok := asClause(v)
		if !ok {
			return nil, fmt.Errorf("%w: bool child %T", domain.ErrNotSupported, v)
		}
		list = []dsl.Clause{c}
	}

	out := make([]blevequery.Query, 0, len(list))
	for _, c := range list {
		q, err := translate(c)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

func termQuery(field string, value any) blevequery.Query {
	if field == "_id" {
		return bleve.NewDocIDQuery([]string{fmt.Sprint(value)})
	}
	switch v := value.(type) {
	case string:
		q := bleve.NewTermQuery(v)
		q.SetField(field)
		return q
	case bool:
		q := bleve.NewBoolFieldQuery(v)
		q.SetField(field)
		return q
	}
	if f, ok := toFloat(value); ok {
		incl := true
		q := bleve.NewNumericRangeInclusiveQuery(&f, &f, &incl, &incl)
		q.SetField(field)
		return q
	}
	q := bleve.NewTermQuery(fmt.Sprint(value))
	q.SetField(field)
	return q
}

// termsQuery matches any of values; an empty list matches nothing.
func termsQuery(field string, values []any) blevequery.Query {
	if len(values) == 0 {
		return bleve.NewMatchNoneQuery()
	}
	if field == "_id" {
		ids := make([]string, len(values))
		for i, v := range values {
			ids[i] = fmt.Sprint(v)
		}
		return bleve.NewDocIDQuery(ids)
	}
	qs := make([]blevequery.Query, len(values))
	for i, v := range values {
		qs[i] = termQuery(field, v)
	}
	return bleve.NewDisjunctionQuery(qs...)
}

func matchQuery(body map[string]any) (blevequery.Query, error) {
	field, value, err := single(body)
	if err != nil {
		return nil, err
	}
	operator := ""
	if m, ok := asClause(value); ok {
		value = m["query"]
		operator, _ = m["operator"].(string)
	}
	q := bleve.NewMatchQuery(fmt.Sprint(value))
	q.SetField(field)
	if strings.EqualFold(operator, "and") {
		q.SetOperator(blevequery.MatchQueryOperatorAnd)
	}
	return q, nil
}

// multiMatchQuery matches text against any of the fields. Field boosts of the
// form name^n are honored; match types and fuzziness are not.
func multiMatchQuery(body map[string]any) (blevequery.Query, error) {
	text, _ := body["query"].(string)
	var fields []string
	switch v := body["fields"].(type) {
	case []string:
		fields = v
	case []any:
		for _, f := range v {
			fields = append(fields, fmt.Sprint(f))
		}
	}
	if len(fields) == 0 {
		return bleve.NewMatchQuery(text), nil
	}

	qs := make([]blevequery.Query, 0, len(fields))
	for _, f := range fields {
		name, boost, _ := strings.Cut(f, "^")
		q := bleve.NewMatchQuery(text)
		q.SetField(name)
		if b, err := strconv.ParseFloat(boost, 64); err == nil {
			q.SetBoost(b)
		}
		qs = append(qs, q)
	}
	return bleve.NewDisjunctionQuery(qs...), nil
}

func rangeQuery(body map[string]any) (blevequery.Query, error) {
	field, value, err := single(body)
	if err != nil {
		return nil, err
	}
	bounds, ok := asClause(value)
	if !ok {
		return nil, fmt.Errorf("%w: range bounds %T", domain.ErrNotSupported, value)
	}

	lower, lowerIncl := bound(bounds, "gte", "gt")
	upper, upperIncl := bound(bounds, "lte", "lt")

	if isNumeric(lower) && isNumeric(upper) {
		var lo, hi *float64
		if f, ok := toFloat(lower); ok {
			lo = &f
		}
		if f, ok := toFloat(upper); ok {
			hi = &f
		}
		q := bleve.NewNumericRangeInclusiveQuery(lo, hi, &lowerIncl, &upperIncl)
		q.SetField(field)
		return q, nil
	}

	loStr, hiStr := stringOrEmpty(lower), stringOrEmpty(upper)
	loTime, loOK := parseDate(loStr)
	hiTime, hiOK := parseDate(hiStr)
	if (loOK || loStr == "") && (hiOK || hiStr == "") {
		q := bleve.NewDateRangeInclusiveQuery(loTime, hiTime, &lowerIncl, &upperIncl)
		q.SetField(field)
		return q, nil
	}
	q := bleve.NewTermRangeInclusiveQuery(loStr, hiStr, &lowerIncl, &upperIncl)
	q.SetField(field)
	return q, nil
}

// bound returns the inclusive bound when present, otherwise the exclusive one.
func bound(bounds map[string]any, inclusive, exclusive string) (any, bool) {
	if v, ok := bounds[inclusive]; ok {
		return v, true
	}
	return bounds[exclusive], false
}

func sortOrder(sorts []dsl.Clause) []string {
	var out []string
	for _, s := range sorts {
		for field, spec := range s {
			desc := false
			switch v := spec.(type) {
			case string:
				desc = v == string(dsl.Desc)
			case map[string]any:
				desc = v["order"] == string(dsl.Desc)
			}
			if desc {
				field = "-" + field
			}
			out = append(out, field)
		}
	}
	return out
}

func single(body map[string]any) (string, any, error) {
	if len(body) != 1 {
		return "", nil, fmt.Errorf("%w: expected one field, got %d", domain.ErrNotSupported, len(body))
	}
	for k, v := range body {
		return k, v, nil
	}
	return "", nil, nil
}

func asClause(v any) (dsl.Clause, bool) {
	switch m := v.(type) {
	case dsl.Clause:
		return m, true
	case map[string]any:
		return m, true
	}
	return nil, false
}

func isNumeric(v any) bool {
	if v == nil {
		return true
	}
	_, ok := toFloat(v)
	return ok
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func stringOrEmpty(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
