package exam

import "fmt"

// Difficulty levels accepted in a GenerationRequest.
const (
	DifficultyLow    = "하"
	DifficultyMedium = "중"
	DifficultyHigh   = "상"
)

// Item is one selectable curriculum entry (a unit, sub-unit or question
// type) as the frontend sends it.
type Item struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// GenerationRequest describes the worksheet to generate. It is built from
// client input, validated once, and then read-only.
type GenerationRequest struct {
	Subject             string `json:"subject"`
	Difficulty          string `json:"difficulty"`
	Units               []Item `json:"units"`
	SubUnits            []Item `json:"subUnits"`
	QuestionTypes       []Item `json:"questionTypes"`
	MultipleChoiceCount int    `json:"multipleChoiceCount"`
	SubjectiveCount     int    `json:"subjectiveCount"`
}

// Validate rejects caller-input errors before any upstream call is made.
func (r *GenerationRequest) Validate() error {
	if r.Subject == "" {
		return fmt.Errorf("subject is required")
	}
	switch r.Difficulty {
	case DifficultyLow, DifficultyMedium, DifficultyHigh:
	case "":
		return fmt.Errorf("difficulty is required")
	default:
		return fmt.Errorf("unknown difficulty %q", r.Difficulty)
	}
	if r.MultipleChoiceCount < 0 || r.SubjectiveCount < 0 {
		return fmt.Errorf("question counts must not be negative")
	}
	if r.MultipleChoiceCount+r.SubjectiveCount == 0 {
		return fmt.Errorf("at least one question is required")
	}
	return nil
}

// TotalQuestions returns the number of questions the worksheet should hold.
func (r *GenerationRequest) TotalQuestions() int {
	return r.MultipleChoiceCount + r.SubjectiveCount
}
