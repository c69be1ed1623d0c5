package facet

import (
	"net/url"
	"slices"
	"testing"
)

func TestParseSelection(t *testing.T) {
	q := url.Values{
		"ep_meta_filter_color": {"red,blue", "red"},
		"ep_meta_filter_size":  {" L , "},
		"ep_meta_filter_":      {"x"},
		"ep_meta_filter_empty": {""},
		"s":                    {"shoes"},
	}
	sel := ParseSelection(q, "")

	if got := sel["color"]; !slices.Equal(got, []string{"red", "blue"}) {
		t.Errorf("color = %v", got)
	}
	if got := sel["size"]; !slices.Equal(got, []string{"L"}) {
		t.Errorf("size = %v", got)
	}
	if got := sel.Fields(); !slices.Equal(got, []string{"color", "size"}) {
		t.Errorf("fields = %v", got)
	}
}

func TestParseSelection_CustomPrefix(t *testing.T) {
	sel := ParseSelection(url.Values{"f_color": {"red"}, "ep_meta_filter_size": {"L"}}, "f_")
	if got := sel.Fields(); !slices.Equal(got, []string{"color"}) {
		t.Fatalf("fields = %v", got)
	}
}

func TestSelection_IsEmpty(t *testing.T) {
	if !(Selection{}).IsEmpty() {
		t.Error("empty selection should be empty")
	}
	if !(Selection{"color": nil}).IsEmpty() {
		t.Error("selection without values should be empty")
	}
	if (Selection{"color": {"red"}}).IsEmpty() {
		t.Error("selection with a value should not be empty")
	}
}

func TestSelection_Query(t *testing.T) {
	q := Selection{"color": {"red", "blue"}}.Query("")
	if got := q.Get("ep_meta_filter_color"); got != "red,blue" {
		t.Fatalf("query = %q", got)
	}
	back := ParseSelection(q, "")
	if !slices.Equal(back["color"], []string{"red", "blue"}) {
		t.Fatalf("round trip = %v", back)
	}
}
