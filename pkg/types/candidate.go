package types

// Candidate is a raw graph node proposed by graph search.
type Candidate struct {
	Path        string  `json:"path"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

// RankedCandidate is a candidate scored by the reranker on the 0..MaxScore scale.
type RankedCandidate struct {
	Path        string  `json:"path"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

// ClampScore bounds s to 0..MaxScore.
func ClampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > MaxScore {
		return MaxScore
	}
	return s
}
