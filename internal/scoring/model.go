package scoring

import "sort"

// Verdict is the oracle's relevance label, or Error for a failed candidate.
type Verdict string

const (
	VerdictRelevant    Verdict = "Relevant"
	VerdictNotRelevant Verdict = "Not Relevant"
	VerdictError       Verdict = "Error"
)

// Prediction is one oracle answer.
type Prediction struct {
	Verdict    Verdict
	Confidence float64
}

// Candidate is a CV ready for scoring.
type Candidate struct {
	ID       string
	FileName string
	Text     string
}

// Result is one entry of a ranking batch.
type Result struct {
	CandidateID string  `json:"cvId,omitempty"`
	FileName    string  `json:"filename"`
	Verdict     Verdict `json:"prediction"`
	Confidence  float64 `json:"confidence"`
	Error       string  `json:"error,omitempty"`
}

// ErrorResult marks a candidate that could not be scored.
func ErrorResult(id, fileName, msg string) Result {
	return Result{CandidateID: id, FileName: fileName, Verdict: VerdictError, Confidence: 0, Error: msg}
}

func verdictRank(v Verdict) int {
	switch v {
	case VerdictRelevant:
		return 0
	case VerdictNotRelevant:
		return 1
	default:
		return 2
	}
}

// SortResults orders Relevant before Not Relevant before Error, then by
// descending confidence. Remaining ties keep input order.
func SortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		ri, rj := verdictRank(results[i].Verdict), verdictRank(results[j].Verdict)
		if ri != rj {
			return ri < rj
		}
		return results[i].Confidence > results[j].Confidence
	})
}
