package linking

import "math"

// cosine returns the cosine similarity of a and b, or 0 if either is
// empty or their dimensions disagree.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// candidatePair is an unordered pair of claims above the similarity
// threshold, keyed for deduplication by sorted ID order.
type candidatePair struct {
	AID, BID     string
	AText, BText string
	Similarity   float64
}

// buildCandidatePairs compares every input claim against every library
// claim (asymmetric: at least one side drawn from input), keeping pairs
// at or above threshold and deduplicating by the unordered ID pair.
func buildCandidatePairs(input, library []claimWithEmbedding, threshold float64) []candidatePair {
	seen := make(map[[2]string]struct{})
	var pairs []candidatePair

	for _, in := range input {
		for _, lib := range library {
			if in.ID == lib.ID {
				continue
			}
			sim := cosine(in.Embedding, lib.Embedding)
			if sim < threshold {
				continue
			}
			key := sortedPairKey(in.ID, lib.ID)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			pairs = append(pairs, candidatePair{
				AID:        in.ID,
				AText:      in.Text,
				BID:        lib.ID,
				BText:      lib.Text,
				Similarity: sim,
			})
		}
	}
	return pairs
}

func sortedPairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

// claimWithEmbedding is the minimal shape Phase B/C operate over.
type claimWithEmbedding struct {
	ID        string
	PaperID   string
	Text      string
	Embedding []float32
}
