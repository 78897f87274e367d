package models

// Jaccard computes the Jaccard similarity of two token bags: the ratio of
// shared tokens to total distinct tokens. Returns 0 when either bag is empty.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	setA := make(map[string]bool, len(a))
	for _, tok := range a {
		setA[tok] = true
	}
	setB := make(map[string]bool, len(b))
	for _, tok := range b {
		setB[tok] = true
	}

	shared := 0
	for tok := range setA {
		if setB[tok] {
			shared++
		}
	}
	union := len(setA) + len(setB) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

// ContextSimilarity scores how alike two context maps are, combining exact
// signature equality (1.0) with token-bag overlap for partial matches.
func ContextSimilarity(a, b map[string]any) float64 {
	if ContextSignature(a) == ContextSignature(b) {
		return 1.0
	}
	return Jaccard(ContextTokens(a), ContextTokens(b))
}
