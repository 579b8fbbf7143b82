package recommendation

// Aggregate merges collector output into one entry per candidate, in
// first-seen order. Scores are summed, reasons concatenated in emission
// order, and a reunion contribution makes the merged category reunion.
// Inputs are not modified.
func Aggregate(scores []CandidateScore) []CandidateScore {
	index := make(map[string]int, len(scores))
	out := make([]CandidateScore, 0, len(scores))

	for _, s := range scores {
		i, seen := index[s.CandidateUserID]
		if !seen {
			index[s.CandidateUserID] = len(out)
			out = append(out, s.clone())
			continue
		}

		merged := &out[i]
		merged.Score += s.Score
		merged.Reasons = append(merged.Reasons, s.Reasons...)
		if s.Category == CategoryReunion {
			merged.Category = CategoryReunion
		}
	}

	return out
}
