package emotion

import "fmt"

// Label is one of the seven emotion classes the model predicts, or one of the
// two fallback outcomes (None, Error) produced outside the model.
type Label int

const (
	Anger Label = iota
	Disgust
	Fear
	Happiness
	Sadness
	Surprise
	Neutral
	None
	Error
)

var labelNames = [...]string{
	Anger:     "anger",
	Disgust:   "disgust",
	Fear:      "fear",
	Happiness: "happiness",
	Sadness:   "sadness",
	Surprise:  "surprise",
	Neutral:   "neutral",
	None:      "none",
	Error:     "error",
}

// Classes lists the model output order. Index i of a confidence vector
// belongs to Classes[i].
var Classes = []Label{Anger, Disgust, Fear, Happiness, Sadness, Surprise, Neutral}

// All lists every outcome, classes first.
var All = []Label{Anger, Disgust, Fear, Happiness, Sadness, Surprise, Neutral, None, Error}

func (l Label) String() string {
	if l < 0 || int(l) >= len(labelNames) {
		return fmt.Sprintf("label(%d)", int(l))
	}
	return labelNames[l]
}

// IsClass reports whether l is a model class rather than a fallback outcome.
func (l Label) IsClass() bool {
	return l >= Anger && l <= Neutral
}

func (l Label) MarshalText() ([]byte, error) {
	if l < 0 || int(l) >= len(labelNames) {
		return nil, fmt.Errorf("invalid label %d", int(l))
	}
	return []byte(labelNames[l]), nil
}

func (l *Label) UnmarshalText(text []byte) error {
	parsed, err := ParseLabel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLabel maps a key such as "happiness" or "none" back to its Label.
func ParseLabel(s string) (Label, error) {
	for i, name := range labelNames {
		if name == s {
			return Label(i), nil
		}
	}
	return 0, fmt.Errorf("unknown label %q", s)
}
