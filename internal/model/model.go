package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultTotalPoints is the score denominator given to a new evaluation.
	DefaultTotalPoints = 20
	// DefaultQuestionPoints is the point value given to a new question.
	DefaultQuestionPoints = 2
)

// Category groups evaluations by subject.
type Category struct {
	ID    string `json:"id" db:"id"`
	Name  string `json:"name" db:"name" validate:"required"`
	Color string `json:"color" db:"color" validate:"required,hexcolor"`
}

// DefaultCategories are seeded into an empty store.
func DefaultCategories() []Category {
	return []Category{
		{ID: "1", Name: "Français", Color: "#3b82f6"},
		{ID: "2", Name: "Mathématiques", Color: "#10b981"},
		{ID: "3", Name: "Histoire-Géo", Color: "#f59e0b"},
	}
}

// Points is a question's point value. Decoding is lenient: null, strings
// that are not numbers and negative numbers become 0; fractions truncate.
type Points int

func (p *Points) UnmarshalJSON(data []byte) error {
	*p = 0
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		raw = strings.TrimSpace(s)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || f <= 0 {
		return nil
	}
	if f > math.MaxInt32 {
		f = math.MaxInt32
	}
	*p = Points(int(f))
	return nil
}

// Int returns the value with negative values clamped to zero.
func (p Points) Int() int {
	if p < 0 {
		return 0
	}
	return int(p)
}

// Question is a single prompt within an evaluation.
type Question struct {
	ID           string `json:"id" db:"id"`
	SectionTitle string `json:"sectionTitle" db:"section_title"`
	Points       Points `json:"points" db:"points" validate:"min=0"`
	Content      string `json:"content" db:"content"`
	Answer       string `json:"answer" db:"answer"`
	// StudentTemplate replaces the blank answer lines in student mode when it
	// has displayable content.
	StudentTemplate string `json:"studentTemplate,omitempty" db:"student_template"`
}

// Evaluation is a titled assessment document.
//
// TotalPoints is the user-entered score denominator. It is not derived from
// the questions and may differ from the sum of their points.
type Evaluation struct {
	ID          string     `json:"id" db:"id"`
	Title       string     `json:"title" db:"title" validate:"required"`
	CategoryID  string     `json:"categoryId" db:"category_id"`
	CreatedAt   int64      `json:"createdAt" db:"created_at"`
	Questions   []Question `json:"questions" validate:"dive"`
	Comment     string     `json:"comment,omitempty" db:"comment"`
	TotalPoints int        `json:"totalPoints" db:"total_points"`
}

// NewEvaluation returns an empty evaluation ready for editing.
func NewEvaluation(categoryID string) Evaluation {
	return Evaluation{
		ID:          uuid.NewString(),
		CategoryID:  categoryID,
		CreatedAt:   time.Now().UnixMilli(),
		Questions:   []Question{},
		TotalPoints: DefaultTotalPoints,
	}
}

// AddQuestion appends a blank question that continues the last question's section.
func (e *Evaluation) AddQuestion() *Question {
	section := ""
	if n := len(e.Questions); n > 0 {
		section = e.Questions[n-1].SectionTitle
	}
	e.Questions = append(e.Questions, Question{
		ID:           uuid.NewString(),
		SectionTitle: section,
		Points:       DefaultQuestionPoints,
	})
	return &e.Questions[len(e.Questions)-1]
}

// RemoveQuestion deletes the question with the given id, keeping the order of the rest.
func (e *Evaluation) RemoveQuestion(id string) bool {
	for i, q := range e.Questions {
		if q.ID == id {
			e.Questions = append(e.Questions[:i], e.Questions[i+1:]...)
			return true
		}
	}
	return false
}

// QuestionPoints sums the points of all questions.
func (e Evaluation) QuestionPoints() int {
	total := 0
	for _, q := range e.Questions {
		total += q.Points.Int()
	}
	return total
}

// Created returns CreatedAt as a time.
func (e Evaluation) Created() time.Time {
	return time.UnixMilli(e.CreatedAt)
}

// FindCategory returns the category with the given id, or nil.
func FindCategory(categories []Category, id string) *Category {
	for i := range categories {
		if categories[i].ID == id {
			return &categories[i]
		}
	}
	return nil
}

// NewCategory returns a category with a fresh id.
func NewCategory(name, color string) Category {
	return Category{ID: uuid.NewString(), Name: name, Color: color}
}

// ExportFilename builds a download name from a title: whitespace runs become
// single underscores and ext is appended.
func ExportFilename(title, ext string) string {
	name := strings.Join(strings.Fields(title), "_")
	if name == "" {
		name = "evaluation"
	}
	return name + ext
}
