package features

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultWeight applies to any feature missing from a weight table.
const DefaultWeight = 0.05

// #region score

// Score computes the weighted quality of v: Σ(value·weight) / Σ(weight) over
// every feature present in v. The result is clamped to [0, 1] because count
// features (wordCount, sentenceCount, averageWordLength) are unbounded.
func Score(v Vector, weights map[string]float64) float64 {
	var sum, total float64
	for _, name := range v.Keys() {
		w := weightOf(weights, name)
		sum += v[name] * w
		total += w
	}
	if total <= 0 {
		return 0
	}
	return clamp(sum / total)
}

func weightOf(weights map[string]float64, name string) float64 {
	if w, ok := weights[name]; ok {
		return w
	}
	return DefaultWeight
}

// #endregion score

// #region feedback

var recommendations = map[Goal]string{
	GoalClarity:      "Improve clarity by using more specific action words and reducing ambiguous terms",
	GoalRelevance:    "Add relevant context about the domain or use case",
	GoalCompleteness: "Ensure the prompt includes all necessary grammatical elements",
	GoalSpecificity:  "Include specific details, examples, or constraints",
}

// Weakest returns up to n feature names ranked ascending by value·weight.
// Ties keep catalog order.
func Weakest(v Vector, weights map[string]float64, n int) []string {
	keys := v.Keys()
	sort.SliceStable(keys, func(i, j int) bool {
		return v[keys[i]]*weightOf(weights, keys[i]) < v[keys[j]]*weightOf(weights, keys[j])
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

// Feedback renders the human-readable analysis handed to the text generator.
func Feedback(v Vector, weights map[string]float64, goals []Goal) string {
	var b strings.Builder
	b.WriteString("ANALYSIS: \n")
	b.WriteString("\nAreas for improvement:\n")
	for _, name := range Weakest(v, weights, 3) {
		fmt.Fprintf(&b, "- %s (score: %.2f)\n", name, v[name])
	}

	if len(goals) > 0 {
		b.WriteString("\nRecommendations:\n")
		for _, g := range goals {
			if line, ok := recommendations[g]; ok {
				fmt.Fprintf(&b, "- %s\n", line)
			}
		}
	}
	return b.String()
}

// #endregion feedback
