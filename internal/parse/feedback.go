package parse

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

type Score struct {
	Label         string `json:"label"`
	Score         int    `json:"score"`
	Max           int    `json:"max"`
	Justification string `json:"justification"`
}

type Feedback struct {
	Items  []string
	Scores []Score
	Raw    string
}

// Rules is caller policy for whether an empty extraction fails. Some
// scenarios legitimately produce no itemized feedback.
type Rules struct {
	RequireFeedback bool
	RequireScores   bool
}

type EmptyFieldError struct {
	Field string
}

func (e *EmptyFieldError) Error() string {
	return fmt.Sprintf("no %s found in model output", e.Field)
}

var (
	// "1. text", "2) text", "#3: text"
	ordinalLine = regexp.MustCompile(`^\s*(?:\d+[.)]|#\d+:?)\s+(.+)$`)
	// "Grammar: 80/100 - clear but minor errors"
	scoreLine = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z0-9 _/-]*?)\s*:\s*(\d+)\s*/\s*(\d+)\s*(?:[-:]\s*(.*))?$`)
)

// ParseFeedback turns raw model output into a Feedback document. Output
// that looks like JSON must decode and satisfy the feedback schema;
// anything else goes through line extraction.
func ParseFeedback(raw string, rules Rules) (Feedback, error) {
	var fb Feedback
	var err error
	if strings.HasPrefix(strings.TrimSpace(raw), "{") {
		fb, err = decodeFeedbackJSON(raw)
	} else {
		fb = extractFeedbackLines(raw)
	}
	if err != nil {
		return Feedback{}, err
	}
	if rules.RequireFeedback && len(fb.Items) == 0 {
		return Feedback{}, &EmptyFieldError{Field: "feedback items"}
	}
	if rules.RequireScores && len(fb.Scores) == 0 {
		return Feedback{}, &EmptyFieldError{Field: "scores"}
	}
	return fb, nil
}

func extractFeedbackLines(raw string) Feedback {
	fb := Feedback{Raw: raw}
	for _, line := range strings.Split(raw, "\n") {
		if m := scoreLine.FindStringSubmatch(line); m != nil {
			score, err1 := strconv.Atoi(m[2])
			max, err2 := strconv.Atoi(m[3])
			if err1 == nil && err2 == nil {
				fb.Scores = append(fb.Scores, Score{
					Label:         strings.TrimSpace(m[1]),
					Score:         score,
					Max:           max,
					Justification: strings.TrimSpace(m[4]),
				})
			}
			continue
		}
		if m := ordinalLine.FindStringSubmatch(line); m != nil {
			item := strings.TrimSpace(m[1])
			if item != "" {
				fb.Items = append(fb.Items, item)
			}
		}
	}
	return fb
}

const feedbackSchema = `{
  "type": "object",
  "properties": {
    "feedback": {
      "type": "array",
      "items": {"type": "string"}
    },
    "scores": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "label": {"type": "string", "minLength": 1},
          "score": {"type": "integer", "minimum": 0},
          "max": {"type": "integer", "minimum": 1},
          "justification": {"type": "string"}
        },
        "required": ["label", "score", "max"]
      }
    }
  },
  "required": ["feedback", "scores"]
}`

var compiledFeedbackSchema = jsonschema.MustCompileString("feedback.json", feedbackSchema)

func decodeFeedbackJSON(raw string) (Feedback, error) {
	var generic any
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return Feedback{}, fmt.Errorf("invalid feedback json: %w", err)
	}
	if err := compiledFeedbackSchema.Validate(generic); err != nil {
		return Feedback{}, fmt.Errorf("feedback json rejected by schema: %w", err)
	}
	var doc struct {
		Feedback []string `json:"feedback"`
		Scores   []Score  `json:"scores"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return Feedback{}, fmt.Errorf("decode feedback json: %w", err)
	}
	return Feedback{Items: doc.Feedback, Scores: doc.Scores, Raw: raw}, nil
}
