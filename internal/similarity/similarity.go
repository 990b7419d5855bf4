package similarity

// Similarity returns the Jaccard similarity of the token sets of a and b.
// Two texts with no tokens are identical (1); one empty side gives 0.
func Similarity(a, b string) float64 {
	return SetSimilarity(NewTokenSet(a), NewTokenSet(b))
}

// SetSimilarity computes |a ∩ b| / |a ∪ b| on precomputed token sets
func SetSimilarity(a, b TokenSet) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}

	inter := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// Compare returns the similarity of two tokenized texts
func Compare(a, b Tokenized) float64 {
	return SetSimilarity(a.Tokens, b.Tokens)
}
