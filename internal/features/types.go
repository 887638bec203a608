package features

import (
	"fmt"
	"sort"
	"strings"
)

// #region catalog

// Feature names. The order of Catalog is the canonical column order used by
// the regression predictors.
const (
	WordCount            = "wordCount"
	SentenceCount        = "sentenceCount"
	AverageWordLength    = "averageWordLength"
	LexicalDiversity     = "lexicalDiversity"
	PunctuationRatio     = "punctuationRatio"
	SemanticClarity      = "semanticClarity"
	ContextRelevance     = "contextRelevance"
	Specificity          = "specificity"
	Ambiguity            = "ambiguity"
	HasContext           = "hasContext"
	HasConstraints       = "hasConstraints"
	HasExamples          = "hasExamples"
	StructuralComplexity = "structuralComplexity"
	HasVerbs             = "hasVerbs"
	HasNouns             = "hasNouns"
	HasAdjectives        = "hasAdjectives"
	CompletenessScore    = "completenessScore"
)

// Catalog lists every feature produced by Extract, in canonical order.
var Catalog = []string{
	WordCount, SentenceCount, AverageWordLength, LexicalDiversity, PunctuationRatio,
	SemanticClarity, ContextRelevance, Specificity, Ambiguity,
	HasContext, HasConstraints, HasExamples, StructuralComplexity,
	HasVerbs, HasNouns, HasAdjectives, CompletenessScore,
}

var catalogIndex = func() map[string]int {
	m := make(map[string]int, len(Catalog))
	for i, name := range Catalog {
		m[name] = i
	}
	return m
}()

// #endregion catalog

// #region vector

// Vector maps feature names to values. Extract always fills every catalog key.
type Vector map[string]float64

// Get returns the value for name, or 0 when absent.
func (v Vector) Get(name string) float64 {
	return v[name]
}

// Keys returns the vector's keys: catalog names first in catalog order, then
// any extra keys sorted.
func (v Vector) Keys() []string {
	keys := make([]string, 0, len(v))
	for _, name := range Catalog {
		if _, ok := v[name]; ok {
			keys = append(keys, name)
		}
	}
	var extra []string
	for k := range v {
		if _, ok := catalogIndex[k]; !ok {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}

// Clone returns an independent copy.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	for k, x := range v {
		out[k] = x
	}
	return out
}

// #endregion vector

// #region goals

// Goal is an optimization goal tag carried on a refinement request.
type Goal string

const (
	GoalClarity      Goal = "CLARITY"
	GoalRelevance    Goal = "RELEVANCE"
	GoalCompleteness Goal = "COMPLETENESS"
	GoalSpecificity  Goal = "SPECIFICITY"
)

// KnownGoals lists the goals that produce a recommendation line.
var KnownGoals = []Goal{GoalClarity, GoalRelevance, GoalCompleteness, GoalSpecificity}

// ParseGoal normalizes a goal tag. Unknown tags are an error.
func ParseGoal(s string) (Goal, error) {
	g := Goal(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range KnownGoals {
		if g == known {
			return g, nil
		}
	}
	return "", fmt.Errorf("unknown optimization goal %q", s)
}

// #endregion goals
