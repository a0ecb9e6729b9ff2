package render

import (
	"strings"

	"github.com/evalgen/evalgen/internal/model"
)

// Item is a question placed in a section, numbered by its position in the
// evaluation rather than in the section.
type Item struct {
	Number   int
	Question model.Question
}

// Section is a run of questions sharing a section title.
type Section struct {
	Title  string
	Items  []Item
	Points int
}

// Group partitions questions by section title. Sections appear in the order
// their title first occurs; questions keep their relative order. Blank
// titles fall under untitled.
func Group(questions []model.Question, untitled string) []Section {
	var sections []Section
	index := make(map[string]int)
	for i, q := range questions {
		title := q.SectionTitle
		if strings.TrimSpace(title) == "" {
			title = untitled
		}
		pos, ok := index[title]
		if !ok {
			pos = len(sections)
			index[title] = pos
			sections = append(sections, Section{Title: title})
		}
		s := &sections[pos]
		s.Items = append(s.Items, Item{Number: i + 1, Question: q})
		s.Points += q.Points.Int()
	}
	return sections
}
