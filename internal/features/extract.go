package features

import (
	"regexp"
	"strings"
	"unicode"
)

// #region lexicons

var (
	sentenceSplit = regexp.MustCompile(`[.!?]+`)
	nonLetters    = regexp.MustCompile(`[^a-zA-Z]`)
	verbPattern   = regexp.MustCompile(`\b(is|are|was|were|be|been|being|have|has|had|do|does|did|write|create|make|generate|explain|describe)\b`)
	domainPattern = regexp.MustCompile(`\b(technical|scientific|business|creative|academic)\b`)

	actionWords       = []string{"explain", "describe", "analyze", "create", "write", "generate", "summarize", "compare", "list", "provide"}
	vagueWords        = []string{"thing", "stuff", "something", "somehow", "maybe"}
	relevanceMarkers  = []string{"in the context of", "regarding", "about", "for", "related to", "concerning", "with respect to"}
	contextMarkers    = []string{"in", "for", "about", "regarding", "related to", "in the context", "background", "scenario"}
	constraintMarkers = []string{"must", "should", "need to", "required", "limit", "within", "between", "maximum", "minimum", "at least"}
	exampleMarkers    = []string{"for example", "such as", "like", "e.g.", "for instance", "including", "namely"}
	clauseMarkers     = []string{",", ";", ":", "and", "but", "or", "because", "when", "if"}
	adjectives        = []string{"good", "bad", "great", "small", "large", "new", "old", "important", "specific", "detailed", "comprehensive"}
)

// #endregion lexicons

// #region extract

// Extract computes the full feature vector for prompt. It never fails; the
// empty string yields degenerate values.
func Extract(prompt string) Vector {
	lower := strings.ToLower(prompt)
	toks := tokens(prompt)

	clarity := semanticClarity(lower)
	verbs := boolFloat(verbPattern.MatchString(lower))
	nouns := boolFloat(len(toks) > 2)
	adj := boolFloat(containsAny(lower, adjectives))
	ctx := boolFloat(containsAny(lower, contextMarkers))
	sentences := sentenceCount(prompt)

	return Vector{
		WordCount:         float64(len(tokens(strings.TrimSpace(prompt)))),
		SentenceCount:     float64(sentences),
		AverageWordLength: averageWordLength(toks),
		LexicalDiversity:  lexicalDiversity(prompt, toks),
		PunctuationRatio:  punctuationRatio(prompt),

		SemanticClarity:  clarity,
		ContextRelevance: contextRelevance(lower),
		Specificity:      clarity,
		Ambiguity:        clarity,

		HasContext:           ctx,
		HasConstraints:       boolFloat(containsAny(lower, constraintMarkers)),
		HasExamples:          boolFloat(containsAny(lower, exampleMarkers)),
		StructuralComplexity: structuralComplexity(lower, sentences),

		HasVerbs:          verbs,
		HasNouns:          nouns,
		HasAdjectives:     adj,
		CompletenessScore: 0.25 * (verbs + nouns + adj + ctx),
	}
}

// #endregion extract

// #region linguistic

// tokens splits text on whitespace. Text without any token yields a single
// empty token so counts never divide by zero.
func tokens(text string) []string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return []string{""}
	}
	return fields
}

func sentenceCount(text string) int {
	parts := sentenceSplit.Split(text, -1)
	for len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return max(1, len(parts))
}

func averageWordLength(toks []string) float64 {
	var total int
	for _, t := range toks {
		total += len(nonLetters.ReplaceAllString(t, ""))
	}
	return float64(total) / float64(len(toks))
}

func lexicalDiversity(text string, toks []string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	unique := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		unique[strings.ToLower(t)] = struct{}{}
	}
	return float64(len(unique)) / float64(len(toks))
}

func punctuationRatio(text string) float64 {
	runes := []rune(text)
	if len(runes) == 0 {
		return 0
	}
	var n int
	for _, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			n++
		}
	}
	return float64(n) / float64(len(runes))
}

// #endregion linguistic

// #region semantic

// semanticClarity rewards action words and penalizes vague ones.
func semanticClarity(lower string) float64 {
	score := 0.5
	score += 0.1 * float64(countPresent(lower, actionWords))
	score -= 0.1 * float64(countPresent(lower, vagueWords))
	return clamp(score)
}

func contextRelevance(lower string) float64 {
	score := 0.3 + 0.15*float64(countPresent(lower, relevanceMarkers))
	if domainPattern.MatchString(lower) {
		score += 0.1
	}
	return clamp(score)
}

// #endregion semantic

// #region structural

func structuralComplexity(lower string, sentences int) float64 {
	score := min(0.3, 0.1*float64(sentences))
	score += 0.05 * float64(countPresent(lower, clauseMarkers))
	return min(1.0, score)
}

// #endregion structural

// #region helpers

func countPresent(text string, markers []string) int {
	var n int
	for _, m := range markers {
		if strings.Contains(text, m) {
			n++
		}
	}
	return n
}

func containsAny(text string, markers []string) bool {
	return countPresent(text, markers) > 0
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// clamp restricts v to [0, 1].
func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
