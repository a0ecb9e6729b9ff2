// Package render turns an evaluation into a Sheet: the grouped, mode-resolved
// view every output format is drawn from.
package render

import (
	"strings"

	"github.com/evalgen/evalgen/internal/model"
)

// Labels are the fixed strings printed on a sheet.
type Labels struct {
	Untitled        string // section without a title
	General         string // evaluation without a known category
	Date            string
	DatePlaceholder string
	Comment         string
	EmptyComment    string
	Points          string // unit suffix, as in "(3 pts)"
	Page            string
	Brand           string
	AnswerPrefix    string // prefix of plain-text answers
	Bullet          string
}

// DefaultLabels are the French document labels.
func DefaultLabels() Labels {
	return Labels{
		Untitled:        "Sans Titre",
		General:         "Général",
		Date:            "Date",
		DatePlaceholder: ".... / .... / ....",
		Comment:         "Commentaire",
		EmptyComment:    "...",
		Points:          "pts",
		Page:            "Page",
		Brand:           "EvalGen Local",
		AnswerPrefix:    "R:",
		Bullet:          "◦",
	}
}

// SheetItem is a numbered question with its answer space resolved.
type SheetItem struct {
	Number int
	Points int
	// Content is the prompt payload.
	Content string
	Answer  Answer
	// Scaffold is the raw student template, kept for writers that handle it themselves.
	Scaffold string
}

// SheetSection is a titled group of items with its point total.
type SheetSection struct {
	Title  string
	Points int
	Items  []SheetItem
}

// Sheet is a disposable render tree. Building one never changes the evaluation.
type Sheet struct {
	Title        string
	CategoryName string
	Banner       Banner
	Comment      string
	TotalPoints  int
	Mode         Mode
	Sections     []SheetSection
	Labels       Labels
}

// Build groups the evaluation's questions and resolves every answer for mode.
// Missing categories, empty comments and empty question lists fall back to
// labels instead of failing.
func Build(e model.Evaluation, categories []model.Category, mode Mode, labels Labels) Sheet {
	cat := model.FindCategory(categories, e.CategoryID)
	name := labels.General
	if cat != nil && strings.TrimSpace(cat.Name) != "" {
		name = cat.Name
	}

	groups := Group(e.Questions, labels.Untitled)
	sections := make([]SheetSection, 0, len(groups))
	for _, g := range groups {
		s := SheetSection{Title: g.Title, Points: g.Points, Items: make([]SheetItem, 0, len(g.Items))}
		for _, it := range g.Items {
			s.Items = append(s.Items, SheetItem{
				Number:   it.Number,
				Points:   it.Question.Points.Int(),
				Content:  it.Question.Content,
				Answer:   ResolveAnswer(it.Question, mode.ShowAnswers()),
				Scaffold: it.Question.StudentTemplate,
			})
		}
		sections = append(sections, s)
	}

	return Sheet{
		Title:        e.Title,
		CategoryName: name,
		Banner:       BannerFor(cat),
		Comment:      e.Comment,
		TotalPoints:  e.TotalPoints,
		Mode:         mode,
		Sections:     sections,
		Labels:       labels,
	}
}

// CommentText returns the comment, or the placeholder when it is blank.
func (s Sheet) CommentText() string {
	if strings.TrimSpace(s.Comment) == "" {
		return s.Labels.EmptyComment
	}
	return s.Comment
}
