package emotion

// DefaultThreshold is the minimum confidence accepted as a classification.
const DefaultThreshold float32 = 0.5

type Decision struct {
	Label      Label
	Index      int
	Confidence float32
}

// Decide picks the label for a confidence vector. The scan keeps the first
// strictly greater value starting from zero, so ties go to the lower index and
// an all-zero vector yields index 0 with confidence 0. A maximum below
// threshold produces None. Entries past the known classes are ignored.
func Decide(confidences []float32, threshold float32) Decision {
	maxPos := 0
	var maxConfidence float32
	for i, c := range confidences {
		if i >= len(Classes) {
			break
		}
		if c > maxConfidence {
			maxConfidence = c
			maxPos = i
		}
	}

	if maxConfidence < threshold {
		return Decision{Label: None, Index: maxPos, Confidence: maxConfidence}
	}
	return Decision{Label: Classes[maxPos], Index: maxPos, Confidence: maxConfidence}
}

// Scores keys each class by name with its confidence.
func Scores(confidences []float32) map[string]float32 {
	scores := make(map[string]float32, len(Classes))
	for i, c := range confidences {
		if i >= len(Classes) {
			break
		}
		scores[Classes[i].String()] = c
	}
	return scores
}
