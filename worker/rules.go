package worker

import (
	"strings"

	"github.com/jonwraymond/shellcache/fetch"
)

// Strategy is the fetch handling policy for a class of requests.
type Strategy int

const (
	// StrategyOther is cache first with write-through and an offline
	// document fallback.
	StrategyOther Strategy = iota
	// StrategyNavigation is network first under the root document key.
	StrategyNavigation
	// StrategyAsset is cache first with write-through.
	StrategyAsset
	// StrategyMedia is network first without write, with placeholder fallback.
	StrategyMedia
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyNavigation:
		return "navigation"
	case StrategyAsset:
		return "asset"
	case StrategyMedia:
		return "media"
	default:
		return "other"
	}
}

// Rule maps matching requests to a strategy.
type Rule struct {
	Name     string
	Match    func(req *fetch.Request) bool
	Strategy Strategy
}

// DefaultRules returns the ordered classification for cfg: navigation,
// asset prefix, upload prefix, then a catch-all.
func DefaultRules(cfg Config) []Rule {
	return []Rule{
		{Name: "navigation", Match: (*fetch.Request).IsNavigation, Strategy: StrategyNavigation},
		{Name: "asset", Match: PathPrefix(cfg.AssetPrefix), Strategy: StrategyAsset},
		{Name: "media", Match: PathPrefix(cfg.UploadPrefix), Strategy: StrategyMedia},
		{Name: "other", Match: Any, Strategy: StrategyOther},
	}
}

// PathPrefix matches requests whose path starts with prefix. An empty
// prefix matches nothing.
func PathPrefix(prefix string) func(*fetch.Request) bool {
	return func(req *fetch.Request) bool {
		return prefix != "" && strings.HasPrefix(req.Path(), prefix)
	}
}

// Any matches every request.
func Any(*fetch.Request) bool { return true }

// Classify returns the first rule matching req. Without a match it returns
// a synthetic catch-all rule for StrategyOther.
func Classify(rules []Rule, req *fetch.Request) Rule {
	for _, r := range rules {
		if r.Match != nil && r.Match(req) {
			return r
		}
	}
	return Rule{Name: "default", Match: Any, Strategy: StrategyOther}
}
