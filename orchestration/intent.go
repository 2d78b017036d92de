// Query intent classification.
//
// Information Hiding:
// - Keyword sets and tie-break order hidden behind Classify
// - Matching is substring containment on the lower-cased query

package orchestration

import (
	"fmt"
	"strings"
)

// Intent is the routing decision for a query.
type Intent int

const (
	// IntentAnalysis sends the query through retrieval and then analytics.
	IntentAnalysis Intent = iota
	// IntentRetrieval stops after the retrieval agent.
	IntentRetrieval
)

// String returns "analysis" or "retrieval".
func (i Intent) String() string {
	switch i {
	case IntentRetrieval:
		return "retrieval"
	case IntentAnalysis:
		return "analysis"
	default:
		return fmt.Sprintf("Intent(%d)", int(i))
	}
}

// ParseIntent parses an intent name, case-insensitively.
func ParseIntent(s string) (Intent, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "retrieval":
		return IntentRetrieval, nil
	case "analysis", "analytics":
		return IntentAnalysis, nil
	default:
		return IntentAnalysis, fmt.Errorf("unknown intent %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (i Intent) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *Intent) UnmarshalText(text []byte) error {
	parsed, err := ParseIntent(string(text))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Classifier maps queries to intents by keyword containment.
type Classifier struct {
	analysis  []string
	retrieval []string
	context   []string
}

// DefaultClassifier returns the classifier with the standard keyword sets.
func DefaultClassifier() Classifier {
	return Classifier{
		analysis: []string{
			"analyze", "analysis", "trend", "pattern", "insight", "visualize",
			"chart", "graph", "plot", "compare", "correlation", "statistic",
			"average", "identify", "relationship", "predict", "forecast",
		},
		retrieval: []string{
			"list", "show", "get", "fetch", "retrieve", "data", "tables",
			"schema", "metadata", "records", "rows", "columns", "structure",
			"describe",
		},
		context: []string{"data", "table", "database", "sales", "customer"},
	}
}

// Classify decides the intent of query:
//
//	analysis and retrieval keywords  -> analysis
//	analysis keywords only           -> analysis
//	retrieval keywords only          -> retrieval
//	neither, data-context word found -> retrieval
//	otherwise                        -> analysis
func (c Classifier) Classify(query string) Intent {
	q := strings.ToLower(query)
	analysis := containsAny(q, c.analysis)
	retrieval := containsAny(q, c.retrieval)

	switch {
	case analysis:
		return IntentAnalysis
	case retrieval:
		return IntentRetrieval
	case containsAny(q, c.context):
		return IntentRetrieval
	default:
		return IntentAnalysis
	}
}

// Classify uses the default classifier.
func Classify(query string) Intent {
	return DefaultClassifier().Classify(query)
}

var chartKeywords = []string{
	"chart", "graph", "plot", "visualize", "bar", "line", "pie", "scatter", "histogram",
}

// NeedsChart reports whether the query asks for a visualization.
func NeedsChart(query string) bool {
	return containsAny(strings.ToLower(query), chartKeywords)
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
