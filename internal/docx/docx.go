// Package docx writes a render.Sheet as a WordprocessingML (.docx) package.
//
// Only plain text reaches the document: prompts and answers are stripped of
// markup, and images are dropped. Student mode leaves three ruled paragraphs
// per question unless Options.HonorScaffold is set.
package docx

import (
	"archive/zip"
	"fmt"
	"io"
	"strings"

	"github.com/evalgen/evalgen/internal/render"
	"github.com/evalgen/evalgen/internal/richtext"
)

const (
	sectionColor = "C00000"
	numberColor  = "0070C0"
	answerColor  = "555555"
	ruleColor    = "DDDDDD"
	footerColor  = "999999"
	scoreBlank   = "__________"
)

// Options tunes the DOCX writer.
type Options struct {
	// HonorScaffold prints the student template as plain text in place of
	// the blank lines when it has content.
	HonorScaffold bool
}

// Write emits the .docx package for the sheet.
func Write(w io.Writer, s render.Sheet, opts Options) error {
	zw := zip.NewWriter(w)
	parts := []struct {
		name string
		body string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", rootRelsXML},
		{"word/_rels/document.xml.rels", documentRelsXML},
		{"word/styles.xml", stylesXML},
		{"word/document.xml", documentXML(s, opts)},
		{"word/footer1.xml", footerXML(s)},
	}
	for _, p := range parts {
		f, err := zw.Create(p.name)
		if err != nil {
			return fmt.Errorf("docx %s: %w", p.name, err)
		}
		if _, err := io.WriteString(f, p.body); err != nil {
			return fmt.Errorf("docx %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("docx close: %w", err)
	}
	return nil
}

func documentXML(s render.Sheet, opts Options) string {
	var b builder
	b.raw(xmlHeader)
	b.raw(`<w:document xmlns:w="` + nsW + `" xmlns:r="` + nsR + `"><w:body>`)

	headerTable(&b, s)
	b.para(paraProps{}, nil)
	scoreTable(&b, s)
	b.para(paraProps{}, nil)

	units := s.Labels.Points
	for _, sec := range s.Sections {
		b.para(paraProps{spacingBefore: 240, spacingAfter: 120}, []run{{
			text: fmt.Sprintf("%s (%d %s)", strings.ToUpper(sec.Title), sec.Points, units),
			bold: true, underline: true, color: sectionColor, size: 24,
		}})
		for _, it := range sec.Items {
			question(&b, it, s, opts)
		}
	}

	b.raw(`<w:sectPr><w:footerReference w:type="default" r:id="rIdFooter1"/>`)
	b.raw(`<w:pgSz w:w="11906" w:h="16838"/>`)
	b.raw(`<w:pgMar w:top="1134" w:right="1134" w:bottom="1134" w:left="1134" w:header="567" w:footer="567" w:gutter="0"/>`)
	b.raw(`</w:sectPr></w:body></w:document>`)
	return b.String()
}

func headerTable(b *builder, s render.Sheet) {
	b.tableStart([]int{25, 75})
	b.raw(`<w:tr>`)

	b.cellStart(25, "", "center")
	b.para(paraProps{align: "center"}, []run{{text: s.Labels.Date, bold: true, underline: true, size: 20}})
	b.para(paraProps{align: "center"}, []run{{text: s.Labels.DatePlaceholder, size: 18}})
	b.raw(`</w:tc>`)

	b.cellStart(75, hexColor(s.Banner.Background), "center")
	b.para(paraProps{align: "center", spacingBefore: 120, spacingAfter: 120}, []run{{
		text: strings.ToUpper(s.Title), bold: true, size: 32, color: hexColor(s.Banner.Text),
	}})
	b.raw(`</w:tc>`)

	b.raw(`</w:tr></w:tbl>`)
}

func scoreTable(b *builder, s render.Sheet) {
	b.tableStart([]int{75, 25})
	b.raw(`<w:tr>`)

	b.cellStart(75, "", "top")
	b.para(paraProps{}, []run{{text: s.Labels.Comment, italic: true, underline: true, size: 20}})
	for _, line := range lines(s.CommentText()) {
		b.para(paraProps{}, []run{{text: line, italic: true, size: 20}})
	}
	b.raw(`</w:tc>`)

	b.cellStart(25, "", "center")
	b.para(paraProps{align: "center"}, []run{{text: scoreBlank}})
	b.para(paraProps{align: "center"}, []run{{text: fmt.Sprintf("/ %d", s.TotalPoints), bold: true, size: 36}})
	b.raw(`</w:tc>`)

	b.raw(`</w:tr></w:tbl>`)
}

func question(b *builder, it render.SheetItem, s render.Sheet, opts Options) {
	b.para(paraProps{spacingBefore: 120}, []run{{
		text: fmt.Sprintf("%d. (%d %s)", it.Number, it.Points, s.Labels.Points),
		bold: true, color: numberColor,
	}})

	prompt := lines(richtext.PlainText(it.Content))
	if len(prompt) == 0 {
		prompt = []string{""}
	}
	runs := []run{{text: s.Labels.Bullet + " " + prompt[0]}}
	for _, line := range prompt[1:] {
		runs = append(runs, run{text: line, breakBefore: true})
	}
	b.para(paraProps{indent: 284}, runs)

	// An empty model answer leaves the ruled lines, as in student mode.
	if s.Mode.ShowAnswers() && richtext.HasContent(it.Answer.HTML) {
		answer := lines(richtext.PlainText(it.Answer.HTML))
		if len(answer) == 0 {
			answer = []string{""}
		}
		runs := []run{{text: s.Labels.AnswerPrefix + " " + answer[0], italic: true, color: answerColor}}
		for _, line := range answer[1:] {
			runs = append(runs, run{text: line, italic: true, color: answerColor, breakBefore: true})
		}
		b.para(paraProps{indent: 567, spacingBefore: 60}, runs)
		return
	}

	if opts.HonorScaffold && it.Answer.Kind == render.AnswerScaffold {
		for _, line := range lines(richtext.PlainText(it.Answer.HTML)) {
			b.para(paraProps{indent: 567}, []run{{text: line}})
		}
		return
	}
	for i := 0; i < render.BlankLines; i++ {
		b.para(paraProps{indent: 567, spacingBefore: 240, bottomRule: true}, nil)
	}
}

func footerXML(s render.Sheet) string {
	var b builder
	b.raw(xmlHeader)
	b.raw(`<w:ftr xmlns:w="` + nsW + `" xmlns:r="` + nsR + `">`)
	b.raw(`<w:p><w:pPr><w:tabs><w:tab w:val="right" w:pos="9638"/></w:tabs></w:pPr>`)
	b.run(run{text: strings.ToUpper(s.Title) + " | " + s.CategoryName, color: footerColor, size: 18})
	b.run(run{text: s.Labels.Page + " ", tabBefore: true, color: footerColor, size: 18})
	b.raw(`<w:fldSimple w:instr=" PAGE ">`)
	b.run(run{text: "1", color: footerColor, size: 18})
	b.raw(`</w:fldSimple></w:p></w:ftr>`)
	return b.String()
}

// lines splits plain text into non-empty lines.
func lines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func hexColor(c render.RGB) string {
	return strings.ToUpper(strings.TrimPrefix(c.Hex(), "#"))
}
