package worker

import (
	"net/http"
	"testing"

	"github.com/jonwraymond/shellcache/fetch"
)

func TestClassify_DefaultRules(t *testing.T) {
	rules := DefaultRules(DefaultConfig("/app/", "v1"))

	tests := []struct {
		name string
		req  *fetch.Request
		want Strategy
	}{
		{"navigation", navigate("/app/gallery"), StrategyNavigation},
		{"navigation wins over asset prefix", navigate("/app/assets/page"), StrategyNavigation},
		{"asset", get("/app/assets/main.js"), StrategyAsset},
		{"media", get("/app/uploads/photo.png"), StrategyMedia},
		{"other", get("/app/api/events"), StrategyOther},
		{"outside base", get("/favicon.ico"), StrategyOther},
		{"cors asset", fetch.MustRequest(http.MethodGet, "/app/assets/font.woff2", fetch.ModeCORS), StrategyAsset},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(rules, tc.req).Strategy; got != tc.want {
				t.Errorf("Classify() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestClassify_NoMatch(t *testing.T) {
	rule := Classify(nil, get("/x"))
	if rule.Strategy != StrategyOther || rule.Name != "default" {
		t.Fatalf("Classify(nil) = %+v", rule)
	}
}

func TestClassify_CustomOrder(t *testing.T) {
	rules := []Rule{
		{Name: "media-first", Match: PathPrefix("/app/"), Strategy: StrategyMedia},
		{Name: "navigation", Match: (*fetch.Request).IsNavigation, Strategy: StrategyNavigation},
	}
	if got := Classify(rules, navigate("/app/")); got.Name != "media-first" {
		t.Fatalf("first matching rule must win, got %q", got.Name)
	}
}

func TestPathPrefix_Empty(t *testing.T) {
	if PathPrefix("")(get("/anything")) {
		t.Fatal("empty prefix must not match")
	}
}

func TestStrategyString(t *testing.T) {
	for s, want := range map[Strategy]string{
		StrategyNavigation: "navigation",
		StrategyAsset:      "asset",
		StrategyMedia:      "media",
		StrategyOther:      "other",
	} {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}
