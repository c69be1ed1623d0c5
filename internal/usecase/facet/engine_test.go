package facet

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/alaa-alshamy/ElasticPress/internal/domain"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/event"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/query"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/fieldpath"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/predicate"
	"github.com/alaa-alshamy/ElasticPress/internal/metrics"
	"github.com/alaa-alshamy/ElasticPress/internal/usecase/compiler"
)

func newEngine(s Settings, blocks []string) (*Engine, *mockValueSource, *memCache) {
	vs := &mockValueSource{values: map[string][]string{}}
	c := newMemCache()
	return New(s, &mockFieldSource{fields: blocks}, vs, c, nil), vs, c
}

func TestSettings_Defaults(t *testing.T) {
	e, _, _ := newEngine(Settings{}, nil)
	s := e.Settings()
	if s.MatchType != MatchAll || s.AggregationName != "terms" || s.FilterPrefix != "ep_meta_filter_" ||
		s.BucketSize != 10000 || s.MaxValueLength != 100 || s.DistinctSize != 100 || s.ContentType != "post" {
		t.Fatalf("unexpected defaults: %+v", s)
	}
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name    string
		s       Settings
		wantErr bool
	}{
		{"zero", Settings{}, false},
		{"any", Settings{MatchType: MatchAny}, false},
		{"bad match type", Settings{MatchType: "some"}, true},
		{"bad variant", Settings{Overrides: map[string]FieldOverride{"color": {Variant: "nope"}}}, true},
		{"analyzed variant", Settings{Overrides: map[string]FieldOverride{"color": {Variant: fieldpath.Value}}}, true},
		{"long variant", Settings{Overrides: map[string]FieldOverride{"year": {Variant: fieldpath.Long}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.s.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFields_MergesAndDeduplicates(t *testing.T) {
	e, _, _ := newEngine(Settings{Fields: []string{"color", "size"}}, []string{"size", "brand", ""})
	got := e.Fields(context.Background())
	if !slices.Equal(got, []string{"color", "size", "brand"}) {
		t.Fatalf("fields = %v", got)
	}
}

func TestFields_SourceErrorKeepsConfigured(t *testing.T) {
	e := New(Settings{Fields: []string{"color"}}, &mockFieldSource{err: errors.New("bad yaml")}, nil, newMemCache(), nil)
	if got := e.Fields(context.Background()); !slices.Equal(got, []string{"color"}) {
		t.Fatalf("fields = %v", got)
	}
}

func TestDefinitions(t *testing.T) {
	e, _, _ := newEngine(Settings{
		Fields: []string{"color", "year"},
		Overrides: map[string]FieldOverride{
			"year": {Variant: fieldpath.Long, BucketSize: 50, Label: "Year"},
		},
	}, nil)
	defs := e.Definitions(context.Background())
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}
	want := Definition{
		Field: "color", Name: "ep_meta_filter_color", Type: "meta", Label: "color",
		Path: "meta.color.raw", BucketSize: 10000, MaxValueLength: 100,
	}
	if defs[0] != want {
		t.Errorf("color = %+v", defs[0])
	}
	if defs[1].Path != "meta.year.long" || defs[1].BucketSize != 50 || defs[1].Label != "Year" {
		t.Errorf("year = %+v", defs[1])
	}
}

func TestRegisterAggregations(t *testing.T) {
	e, _, _ := newEngine(Settings{Fields: []string{"color"}}, nil)
	args := &query.Args{Facetable: true}

	got := e.RegisterAggregations(context.Background(), args)

	if len(args.Aggs) != 0 {
		t.Fatal("input args must not be modified")
	}
	if len(got.Aggs) != 1 {
		t.Fatalf("expected one aggregation, got %d", len(got.Aggs))
	}
	agg := got.Aggs[0]
	if agg.Name != "terms" || !agg.UseFilter {
		t.Fatalf("unexpected aggregation: %+v", agg)
	}
	sub, ok := agg.Aggs["ep_meta_filter_color"].(map[string]any)
	if !ok {
		t.Fatalf("missing sub-aggregation: %v", agg.Aggs)
	}
	terms := sub["terms"].(map[string]any)
	if terms["field"] != "meta.color.raw" || terms["size"] != 10000 {
		t.Fatalf("unexpected terms: %v", terms)
	}
}

func TestRegisterAggregations_MergesExisting(t *testing.T) {
	e, _, _ := newEngine(Settings{Fields: []string{"color"}}, nil)
	args := &query.Args{Aggs: query.AggList{
		{Name: "terms", Aggs: map[string]any{"category": map[string]any{"terms": map[string]any{"field": "terms.category.slug"}}}},
		{Name: "other", Aggs: map[string]any{"x": map[string]any{}}},
	}}

	got := e.RegisterAggregations(context.Background(), args)

	if len(got.Aggs) != 2 {
		t.Fatalf("expected aggregations to be merged, got %d", len(got.Aggs))
	}
	if _, ok := got.Aggs[0].Aggs["category"]; !ok {
		t.Error("existing sub-aggregation dropped")
	}
	if _, ok := got.Aggs[0].Aggs["ep_meta_filter_color"]; !ok {
		t.Error("facet sub-aggregation missing")
	}
	if !got.Aggs[0].UseFilter {
		t.Error("merged aggregation must be scoped")
	}
	if _, ok := args.Aggs[0].Aggs["ep_meta_filter_color"]; ok {
		t.Error("input aggregation modified")
	}
}

func TestRegisterAggregations_NoFields(t *testing.T) {
	e, _, _ := newEngine(Settings{}, nil)
	got := e.RegisterAggregations(context.Background(), &query.Args{})
	if len(got.Aggs) != 0 {
		t.Fatalf("expected no aggregations, got %v", got.Aggs)
	}
}

func TestApplySelection(t *testing.T) {
	tests := []struct {
		name     string
		match    MatchType
		wantRel  predicate.Relation
		wantOper predicate.Relation
	}{
		{"all", MatchAll, predicate.And, predicate.And},
		{"any", MatchAny, predicate.Or, predicate.Or},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, _ := newEngine(Settings{MatchType: tt.match, Fields: []string{"color", "size"}}, nil)
			args := &query.Args{Facetable: true}
			sel := Selection{"size": {"L"}, "color": {"red", "blue"}}

			got := e.ApplySelection(context.Background(), args, sel)

			if args.MetaQuery != nil {
				t.Fatal("input args must not be modified")
			}
			mq := got.MetaQuery
			if mq == nil || len(mq.Children) != 2 {
				t.Fatalf("unexpected meta query: %+v", mq)
			}
			if mq.Relation != tt.wantRel {
				t.Errorf("relation = %s, want %s", mq.Relation, tt.wantRel)
			}
			first := mq.Children[0].Leaf
			if first.Key != "color" || first.Compare != predicate.InList || first.Operator != tt.wantOper || !first.HasValue {
				t.Errorf("unexpected leaf: %+v", first)
			}
			if len(first.Value) != 2 || first.Value[0] != "red" {
				t.Errorf("values = %v", first.Value)
			}
		})
	}
}

func TestApplySelection_KeepsExistingMetaQuery(t *testing.T) {
	e, _, _ := newEngine(Settings{MatchType: MatchAll}, nil)
	existing := predicate.Leaf(predicate.MetaLeaf{Key: "featured", Value: predicate.Values{"1"}, HasValue: true})
	args := &query.Args{Facetable: true, MetaQuery: &existing}

	got := e.ApplySelection(context.Background(), args, Selection{"color": {"red"}})

	if len(got.MetaQuery.Children) != 2 {
		t.Fatalf("expected existing leaf plus selection, got %+v", got.MetaQuery)
	}
	if got.MetaQuery.Children[0].Leaf.Key != "featured" || got.MetaQuery.Children[1].Leaf.Key != "color" {
		t.Fatalf("unexpected order: %+v", got.MetaQuery.Children)
	}
	if !args.MetaQuery.IsLeaf() {
		t.Fatal("input meta query modified")
	}
}

func TestApplySelection_NotFacetable(t *testing.T) {
	e, _, _ := newEngine(Settings{}, nil)
	got := e.ApplySelection(context.Background(), &query.Args{}, Selection{"color": {"red"}})
	if got.MetaQuery != nil {
		t.Fatalf("non-facetable query changed: %+v", got.MetaQuery)
	}
}

func TestExcludeSelected(t *testing.T) {
	mq := predicate.Group(predicate.Or, predicate.Leaf(predicate.MetaLeaf{Key: "color"}))
	tests := []struct {
		name  string
		match MatchType
		args  *query.Args
		want  []string
	}{
		{"any", MatchAny, &query.Args{Facetable: true, MetaQuery: &mq}, []string{"color", "size"}},
		{"all", MatchAll, &query.Args{Facetable: true, MetaQuery: &mq}, nil},
		{"not facetable", MatchAny, &query.Args{MetaQuery: &mq}, nil},
		{"no meta query", MatchAny, &query.Args{Facetable: true}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, _ := newEngine(Settings{MatchType: tt.match, Fields: []string{"color", "size"}}, nil)
			got := e.ExcludeSelected(context.Background(), tt.args)
			if !slices.Equal(got.AggFilterExcludeMeta, tt.want) {
				t.Fatalf("excluded = %v, want %v", got.AggFilterExcludeMeta, tt.want)
			}
		})
	}
}

func TestPrepare_States(t *testing.T) {
	sel := Selection{"color": {"red"}}
	tests := []struct {
		name  string
		match MatchType
		args  *query.Args
		want  State
	}{
		{"idle", MatchAny, &query.Args{}, Idle},
		{"all", MatchAll, &query.Args{Facetable: true}, SelectionsApplied},
		{"any", MatchAny, &query.Args{Facetable: true}, FieldsExcluded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, _ := newEngine(Settings{MatchType: tt.match, Fields: []string{"color"}}, nil)
			p := e.Prepare(context.Background(), tt.args, sel)
			if p.State != tt.want {
				t.Fatalf("state = %s, want %s", p.State, tt.want)
			}
		})
	}
}

func TestPrepare_NilArgs(t *testing.T) {
	e, _, _ := newEngine(Settings{}, nil)
	if p := e.Prepare(context.Background(), nil, nil); p.State != Idle || p.Args == nil {
		t.Fatalf("unexpected result: %+v", p)
	}
}

// aggFilter compiles the prepared args and returns the aggregation scope
// filter and the post filter as JSON.
func aggFilter(t *testing.T, args *query.Args) (agg, post string) {
	t.Helper()
	doc, err := compiler.New(compiler.Config{}, nil).Compile(context.Background(), args)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	scoped, ok := doc.Aggs["terms"].(map[string]any)
	if !ok {
		t.Fatalf("missing facet aggregation: %v", doc.Aggs)
	}
	a, err := json.Marshal(scoped["filter"])
	if err != nil {
		t.Fatal(err)
	}
	p, err := json.Marshal(doc.PostFilter)
	if err != nil {
		t.Fatal(err)
	}
	return string(a), string(p)
}

func TestPrepare_AggregationScoping(t *testing.T) {
	sel := Selection{"color": {"red", "blue"}}

	t.Run("all keeps selection in aggregation filter", func(t *testing.T) {
		e, _, _ := newEngine(Settings{MatchType: MatchAll, Fields: []string{"color"}}, nil)
		p := e.Prepare(context.Background(), &query.Args{Facetable: true}, sel)
		agg, post := aggFilter(t, p.Args)
		if !strings.Contains(post, "meta.color.raw") {
			t.Fatalf("post filter misses selection: %s", post)
		}
		if !strings.Contains(agg, "meta.color.raw") {
			t.Fatalf("aggregation filter misses selection: %s", agg)
		}
	})

	t.Run("any drops selection from aggregation filter", func(t *testing.T) {
		e, _, _ := newEngine(Settings{MatchType: MatchAny, Fields: []string{"color"}}, nil)
		p := e.Prepare(context.Background(), &query.Args{Facetable: true}, sel)
		agg, post := aggFilter(t, p.Args)
		if !strings.Contains(post, "meta.color.raw") {
			t.Fatalf("post filter misses selection: %s", post)
		}
		if strings.Contains(agg, "meta.color.raw") {
			t.Fatalf("aggregation filter still scoped by selection: %s", agg)
		}
		if !strings.Contains(agg, "post_type.raw") {
			t.Fatalf("aggregation filter lost the type restriction: %s", agg)
		}
	})
}

func TestValues_FetchesAndCaches(t *testing.T) {
	e, vs, c := newEngine(Settings{Index: "posts", MaxValueLength: 3}, nil)
	vs.values["meta.color.raw"] = []string{"red", "purple", "ünïcode"}

	got, err := e.Values(context.Background(), "color")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(got, []string{"red", "pur", "ünï"}) {
		t.Fatalf("values = %v", got)
	}
	if vs.lastArgs.index != "posts" || vs.lastArgs.field != "meta.color.raw" || vs.lastArgs.size != 100 {
		t.Fatalf("unexpected backend call: %+v", vs.lastArgs)
	}
	if !c.has("color") {
		t.Fatal("values not cached")
	}

	if _, err := e.Values(context.Background(), "color"); err != nil {
		t.Fatal(err)
	}
	if n := vs.calls.Load(); n != 1 {
		t.Fatalf("expected 1 backend call, got %d", n)
	}
}

func TestValues_OverrideLength(t *testing.T) {
	e, vs, _ := newEngine(Settings{Overrides: map[string]FieldOverride{"color": {MaxValueLength: 2}}}, nil)
	vs.values["meta.color.raw"] = []string{"red"}
	got, _ := e.Values(context.Background(), "color")
	if !slices.Equal(got, []string{"re"}) {
		t.Fatalf("values = %v", got)
	}
}

func TestValues_EmptyCacheEntryRefetches(t *testing.T) {
	e, vs, c := newEngine(Settings{}, nil)
	c.entries["color"] = []string{}
	vs.values["meta.color.raw"] = []string{"red"}

	got, err := e.Values(context.Background(), "color")
	if err != nil || !slices.Equal(got, []string{"red"}) {
		t.Fatalf("got %v, %v", got, err)
	}
	if vs.calls.Load() != 1 {
		t.Fatal("empty entry should be refetched")
	}
}

func TestValues_BackendError(t *testing.T) {
	e, vs, c := newEngine(Settings{}, nil)
	vs.err = errBackend

	got, err := e.Values(context.Background(), "color")
	if !errors.Is(err, domain.ErrBackendUnavailable) || !errors.Is(err, errBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
	if c.has("color") {
		t.Fatal("failure must not be cached")
	}
}

func TestValues_CacheWriteErrorStillReturns(t *testing.T) {
	e, vs, c := newEngine(Settings{}, nil)
	c.err = errors.New("READONLY")
	vs.values["meta.color.raw"] = []string{"red"}

	got, err := e.Values(context.Background(), "color")
	if err != nil || !slices.Equal(got, []string{"red"}) {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestValues_EmptyField(t *testing.T) {
	e, vs, _ := newEngine(Settings{}, nil)
	if _, err := e.Values(context.Background(), ""); !errors.Is(err, domain.ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
	if vs.calls.Load() != 0 {
		t.Fatal("backend must not be called")
	}
}

func TestValues_ConcurrentMissesShareOneFetch(t *testing.T) {
	e, vs, _ := newEngine(Settings{}, nil)
	vs.values["meta.color.raw"] = []string{"red"}
	vs.gate = make(chan struct{})

	const n = 8
	var wg sync.WaitGroup
	results := make([][]string, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = e.Values(context.Background(), "color")
		}()
	}
	deadline := time.Now().Add(time.Second)
	for vs.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(vs.gate)
	wg.Wait()

	if c := vs.calls.Load(); c != 1 {
		t.Fatalf("expected a single backend call, got %d", c)
	}
	for i, r := range results {
		if !slices.Equal(r, []string{"red"}) {
			t.Fatalf("result %d = %v", i, r)
		}
	}
}

func TestInvalidate_NextReadMisses(t *testing.T) {
	e, vs, c := newEngine(Settings{Fields: []string{"color", "size"}}, nil)
	vs.values["meta.color.raw"] = []string{"red"}
	vs.values["meta.size.raw"] = []string{"L"}
	ctx := context.Background()

	for _, f := range []string{"color", "size"} {
		if _, err := e.Values(ctx, f); err != nil {
			t.Fatal(err)
		}
	}
	e.InvalidateAll(ctx)
	if c.has("color") || c.has("size") {
		t.Fatal("entries survived invalidation")
	}
	if _, err := e.Values(ctx, "color"); err != nil {
		t.Fatal(err)
	}
	if n := vs.calls.Load(); n != 3 {
		t.Fatalf("expected a fresh fetch after invalidation, got %d calls", n)
	}
}

func TestInvalidate_SingleField(t *testing.T) {
	e, _, c := newEngine(Settings{}, nil)
	c.entries["color"] = []string{"red"}
	c.entries["size"] = []string{"L"}

	e.Invalidate(context.Background(), "color")

	if c.has("color") || !c.has("size") {
		t.Fatalf("unexpected entries: %v", c.entries)
	}
}

func TestInvalidate_ErrorsSwallowed(t *testing.T) {
	e, _, c := newEngine(Settings{Fields: []string{"color"}}, nil)
	c.err = errors.New("unreachable")
	e.InvalidateAll(context.Background())
	e.Purge(context.Background())
	if c.deletes != 1 || c.purges != 1 {
		t.Fatalf("deletes=%d purges=%d", c.deletes, c.purges)
	}
}

func TestPurge(t *testing.T) {
	e, _, c := newEngine(Settings{}, nil)
	c.entries["stale"] = []string{"x"}
	e.Purge(context.Background())
	if c.has("stale") {
		t.Fatal("purge left entries behind")
	}
}

func TestHandleEvent(t *testing.T) {
	tests := []struct {
		name        string
		ev          event.Event
		invalidated bool
	}{
		{"deleted", event.New(event.KindDeleted, "page", 1), true},
		{"indexed", event.New(event.KindIndexed, "post", 1), true},
		{"bulk post", event.New(event.KindBulkIndexed, "post", 1, 2), true},
		{"bulk other type", event.New(event.KindBulkIndexed, "user", 1), false},
		{"unknown", event.Event{Kind: "content.moved"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, c := newEngine(Settings{}, []string{"color"})
			c.entries["color"] = []string{"red"}
			before := testutil.ToFloat64(metrics.FacetInvalidationsTotal.WithLabelValues(string(tt.ev.Kind)))

			if err := e.HandleEvent(context.Background(), tt.ev); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := !c.has("color"); got != tt.invalidated {
				t.Fatalf("invalidated = %v, want %v", got, tt.invalidated)
			}
			after := testutil.ToFloat64(metrics.FacetInvalidationsTotal.WithLabelValues(string(tt.ev.Kind)))
			if tt.invalidated && after != before+1 {
				t.Fatalf("invalidation counter %v -> %v", before, after)
			}
		})
	}
}

func TestHandleEvent_CacheFailureIsNotReturned(t *testing.T) {
	e, _, c := newEngine(Settings{}, []string{"color"})
	c.err = errors.New("unreachable")
	if err := e.HandleEvent(context.Background(), event.New(event.KindIndexed, "post", 1)); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exact", 5, "exact"},
		{"longer", 4, "long"},
		{"日本語テキスト", 3, "日本語"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
