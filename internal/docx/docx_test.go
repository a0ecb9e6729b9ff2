package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strings"
	"testing"

	"github.com/evalgen/evalgen/internal/model"
	"github.com/evalgen/evalgen/internal/render"
)

func testSheet(mode render.Mode) render.Sheet {
	e := model.Evaluation{
		Title:       "Bilan de géométrie",
		CategoryID:  "1",
		Comment:     "Très bien, à revoir",
		TotalPoints: 20,
		Questions: []model.Question{
			{SectionTitle: "Lecture", Points: 2, Content: "<p>Lis le <b>texte</b></p>", Answer: "<p>Le chat &amp; le chien</p>"},
			{SectionTitle: "Écriture", Points: 4, Content: "Écris une phrase", Answer: "", StudentTemplate: "<p>Je ______</p>"},
			{SectionTitle: "Lecture", Points: 1, Content: "Qui ?", Answer: "<ul><li>un</li><li>deux</li></ul>"},
		},
	}
	return render.Build(e, model.DefaultCategories(), mode, render.DefaultLabels())
}

// unpack writes the sheet and returns every part of the package by name.
func unpack(t *testing.T, s render.Sheet, opts Options) map[string]string {
	t.Helper()
	var buf bytes.Buffer
	if err := Write(&buf, s, opts); err != nil {
		t.Fatalf("Write: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	parts := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		parts[f.Name] = string(data)
	}
	return parts
}

func TestPackageParts(t *testing.T) {
	parts := unpack(t, testSheet(render.Student), Options{})
	for _, name := range []string{
		"[Content_Types].xml", "_rels/.rels", "word/document.xml",
		"word/_rels/document.xml.rels", "word/styles.xml", "word/footer1.xml",
	} {
		body, ok := parts[name]
		if !ok {
			t.Errorf("missing part %s", name)
			continue
		}
		// Every part must be well-formed XML.
		dec := xml.NewDecoder(strings.NewReader(body))
		for {
			_, err := dec.Token()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Errorf("%s is not well-formed: %v", name, err)
				break
			}
		}
	}
}

func TestStudentDocument(t *testing.T) {
	doc := unpack(t, testSheet(render.Student), Options{})["word/document.xml"]

	if !strings.Contains(doc, `w:fill="3B82F6"`) {
		t.Error("title cell should be shaded with the category color")
	}
	if !strings.Contains(doc, `<w:color w:val="FFFFFF"/><w:sz w:val="32"/>`) {
		t.Error("title on a dark banner should be white")
	}
	if !strings.Contains(doc, "BILAN DE GÉOMÉTRIE") {
		t.Error("title should be uppercased, accents included")
	}
	if !strings.Contains(doc, "Très bien, à revoir") {
		t.Error("comment should be written as UTF-8 text")
	}
	lecture := strings.Index(doc, "LECTURE (3 pts)")
	ecriture := strings.Index(doc, "ÉCRITURE (4 pts)")
	if lecture < 0 || ecriture < 0 || lecture > ecriture {
		t.Fatalf("section headings missing or out of order")
	}
	if q3 := strings.Index(doc, "3. (1 pts)"); q3 < lecture || q3 > ecriture {
		t.Error("question 3 belongs to the first section")
	}
	if !strings.Contains(doc, "◦ Lis le texte") || !strings.Contains(doc, "◦ Écris une phrase") {
		t.Error("prompt should be plain text after the bullet")
	}
	if n := strings.Count(doc, `<w:pBdr>`); n != 9 {
		t.Errorf("ruled paragraphs = %d, want 9", n)
	}
	if strings.Contains(doc, "Je ______") {
		t.Error("scaffold must be ignored by default")
	}
	if strings.Contains(doc, "R: ") {
		t.Error("answers must not appear in student mode")
	}
	if !strings.Contains(doc, "/ 20") || !strings.Contains(doc, scoreBlank) {
		t.Error("score cell missing")
	}
}

func TestHonorScaffold(t *testing.T) {
	doc := unpack(t, testSheet(render.Student), Options{HonorScaffold: true})["word/document.xml"]
	if !strings.Contains(doc, "Je ______") {
		t.Error("scaffold should be printed")
	}
	if n := strings.Count(doc, `<w:pBdr>`); n != 6 {
		t.Errorf("ruled paragraphs = %d, want 6", n)
	}
}

func TestCorrectedDocument(t *testing.T) {
	doc := unpack(t, testSheet(render.Corrected), Options{})["word/document.xml"]

	if !strings.Contains(doc, "R: Le chat &amp; le chien") {
		t.Error("answer should be plain text behind the prefix")
	}
	if !strings.Contains(doc, `<w:i/><w:color w:val="555555"/>`) {
		t.Error("answers should be italic grey")
	}
	if !strings.Contains(doc, "R: un") || !strings.Contains(doc, "<w:br/>") {
		t.Error("list answers should keep one line per item")
	}
	// Question 2 has no model answer and keeps its ruled lines.
	if n := strings.Count(doc, "<w:pBdr>"); n != render.BlankLines {
		t.Errorf("ruled paragraphs = %d, want %d", n, render.BlankLines)
	}
	if strings.Count(doc, "R: ") != 2 {
		t.Error("only questions with an answer get the answer prefix")
	}
}

func TestFooter(t *testing.T) {
	footer := unpack(t, testSheet(render.Student), Options{})["word/footer1.xml"]
	if !strings.Contains(footer, "BILAN DE GÉOMÉTRIE | Français") {
		t.Errorf("footer should carry title and category: %s", footer)
	}
	if !strings.Contains(footer, `<w:fldSimple w:instr=" PAGE ">`) {
		t.Error("footer should carry a page field")
	}
}

func TestFallbacks(t *testing.T) {
	s := render.Build(model.Evaluation{Title: "X", CategoryID: "gone"}, nil, render.Student, render.DefaultLabels())
	parts := unpack(t, s, Options{})
	if !strings.Contains(parts["word/document.xml"], `w:fill="9DE4C1"`) {
		t.Error("unknown category should use the fallback color")
	}
	if !strings.Contains(parts["word/footer1.xml"], "X | Général") {
		t.Error("unknown category should use the fallback name")
	}
}

// childOrder returns, for every element named parent, the local names of
// its direct children in document order.
func childOrder(t *testing.T, doc, parent string) [][]string {
	t.Helper()
	var (
		out   [][]string
		depth int
		open  = -1
	)
	dec := xml.NewDecoder(strings.NewReader(doc))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			depth++
			if open >= 0 && depth == open+1 {
				out[len(out)-1] = append(out[len(out)-1], el.Name.Local)
			}
			if el.Name.Local == parent && open < 0 {
				open = depth
				out = append(out, nil)
			}
		case xml.EndElement:
			if depth == open {
				open = -1
			}
			depth--
		}
	}
}

func TestPropertyOrder(t *testing.T) {
	tests := []struct {
		parent string
		order  []string
	}{
		{"rPr", []string{"rFonts", "b", "i", "color", "sz", "szCs", "u"}},
		{"tblPr", []string{"tblW", "tblBorders", "tblLayout", "tblCellMar"}},
		{"pPr", []string{"pBdr", "tabs", "spacing", "ind", "jc"}},
		{"tcPr", []string{"tcW", "shd", "vAlign"}},
	}
	for _, mode := range []render.Mode{render.Student, render.Corrected} {
		parts := unpack(t, testSheet(mode), Options{})
		for _, tt := range tests {
			rank := make(map[string]int)
			for i, name := range tt.order {
				rank[name] = i
			}
			for _, part := range []string{"word/document.xml", "word/footer1.xml", "word/styles.xml"} {
				for _, children := range childOrder(t, parts[part], tt.parent) {
					last := -1
					for _, c := range children {
						r, ok := rank[c]
						if !ok {
							t.Errorf("%s %s: unexpected child %s", part, tt.parent, c)
							continue
						}
						if r < last {
							t.Errorf("%s %s: children out of order: %v", part, tt.parent, children)
							break
						}
						last = r
					}
				}
			}
		}
	}
}
