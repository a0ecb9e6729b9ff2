package render

import (
	"github.com/evalgen/evalgen/internal/model"
	"github.com/evalgen/evalgen/internal/richtext"
)

// BlankLines is the number of answer lines left for the student.
const BlankLines = 3

// Mode selects what a rendered document shows in answer space.
type Mode int

const (
	// Student shows prompts with blank lines or the scaffold.
	Student Mode = iota
	// Corrected shows prompts with model answers.
	Corrected
)

// ModeFor maps the showAnswers flag to a Mode.
func ModeFor(showAnswers bool) Mode {
	if showAnswers {
		return Corrected
	}
	return Student
}

// ShowAnswers reports whether model answers are displayed.
func (m Mode) ShowAnswers() bool { return m == Corrected }

func (m Mode) String() string {
	if m == Corrected {
		return "corrected"
	}
	return "student"
}

// AnswerKind tells a renderer how to fill the answer space.
type AnswerKind int

const (
	AnswerLines AnswerKind = iota
	AnswerScaffold
	AnswerRich
)

// Answer is the resolved answer space of one question.
type Answer struct {
	Kind AnswerKind
	// HTML is the rich payload for AnswerRich and AnswerScaffold.
	HTML string
	// Lines is the number of blank lines for AnswerLines.
	Lines int
}

// ResolveAnswer decides the answer space for a question. Corrected mode shows
// the model answer as is; student mode shows the scaffold when it has content
// and blank lines otherwise.
func ResolveAnswer(q model.Question, showAnswers bool) Answer {
	if showAnswers {
		return Answer{Kind: AnswerRich, HTML: q.Answer}
	}
	if richtext.HasContent(q.StudentTemplate) {
		return Answer{Kind: AnswerScaffold, HTML: q.StudentTemplate}
	}
	return Answer{Kind: AnswerLines, Lines: BlankLines}
}
