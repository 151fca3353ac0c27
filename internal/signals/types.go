package signals

// #region dimensions

// Dimension is one of the five fixed lexical signal categories.
type Dimension string

const (
	Drift     Dimension = "drift"
	Avoidance Dimension = "avoidance"
	Drive     Dimension = "drive"
	Loop      Dimension = "loop"
	Fracture  Dimension = "fracture"
)

// Dimensions returns the fixed dimension set in declaration order.
func Dimensions() []Dimension {
	return []Dimension{Drift, Avoidance, Drive, Loop, Fracture}
}

// Valid reports whether d is one of the five dimensions.
func (d Dimension) Valid() bool {
	switch d {
	case Drift, Avoidance, Drive, Loop, Fracture:
		return true
	}
	return false
}

// #endregion dimensions

// #region signals

// Counts holds the structural counts taken from one input.
type Counts struct {
	Tokens             int  `json:"tokens"`
	Sentences          int  `json:"sentences"`
	QuestionMarks      int  `json:"question_marks"`
	Bullets            int  `json:"bullets"`
	Profanity          bool `json:"profanity"`
	ContradictionPairs int  `json:"contradiction_pairs"`
}

// Signals is the per-request extraction result. Markers and Scores always
// carry all five dimensions; scores are never negative.
type Signals struct {
	Markers map[Dimension][]string `json:"markers"`
	Counts  Counts                 `json:"counts"`
	Scores  map[Dimension]int      `json:"scores"`
}

// Score returns the score of d, zero when absent.
func (s Signals) Score(d Dimension) int {
	return s.Scores[d]
}

// AllZero reports whether no dimension scored.
func (s Signals) AllZero() bool {
	for _, d := range Dimensions() {
		if s.Scores[d] != 0 {
			return false
		}
	}
	return true
}

// #endregion signals
