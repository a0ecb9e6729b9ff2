package layout

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/evalgen/evalgen/internal/render"
	"github.com/evalgen/evalgen/internal/richtext"
)

const (
	fontFamily = "Helvetica"
	margin     = 15.0
	lineHeight = 5.5
	pxToMM     = 25.4 / 96
)

var (
	sectionRGB = render.RGB{R: 0xc0}
	numberRGB  = render.RGB{G: 0x70, B: 0xc0}
	mutedRGB   = render.RGB{R: 0x6b, G: 0x72, B: 0x80}
	answerRGB  = render.RGB{R: 0x37, G: 0x41, B: 0x51}
	ruleRGB    = render.RGB{R: 0xd1, G: 0xd5, B: 0xdb}
	footRGB    = render.RGB{R: 0x9c, G: 0xa3, B: 0xaf}
)

// PDFOptions tunes the PDF writer.
type PDFOptions struct {
	// Uncompressed leaves page streams readable, which helps when inspecting output.
	Uncompressed bool
}

// WritePDF draws the sheet on A4 pages. The first page holds the header block;
// content flows onto further pages as needed and every page carries a footer
// with its number.
func WritePDF(w io.Writer, s render.Sheet, opts PDFOptions) error {
	d := newPDFDoc(s)
	d.pdf.SetCompression(!opts.Uncompressed)
	d.header()
	d.score()
	for _, sec := range s.Sections {
		d.section(sec)
	}
	if err := d.pdf.Error(); err != nil {
		return fmt.Errorf("layout pdf: %w", err)
	}
	return d.pdf.Output(w)
}

type pdfDoc struct {
	pdf    *fpdf.Fpdf
	tr     func(string) string
	sheet  render.Sheet
	width  float64 // printable width
	images map[string]bool
}

func newPDFDoc(s render.Sheet) *pdfDoc {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin+5)
	pdf.SetTitle(s.Title, true)
	pdf.SetCreator(s.Labels.Brand, true)

	d := &pdfDoc{
		pdf:    pdf,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
		sheet:  s,
		images: make(map[string]bool),
	}
	pageW, _ := pdf.GetPageSize()
	d.width = pageW - 2*margin

	pdf.SetFooterFunc(func() {
		pdf.SetY(-(margin + 2))
		pdf.SetFont(fontFamily, "", 8)
		d.textColor(footRGB)
		d.drawColor(ruleRGB)
		pdf.CellFormat(0, 8, d.tr(fmt.Sprintf("%s - %s %d", s.Labels.Brand, s.Labels.Page, pdf.PageNo())),
			"T", 0, "R", false, 0, "")
	})
	pdf.AddPage()
	return d
}

// wrap splits s into lines that fit w with the current font. The lines are
// already translated to the core font encoding.
func (d *pdfDoc) wrap(s string, w float64) []string {
	var out []string
	for _, l := range d.pdf.SplitLines([]byte(d.tr(s)), w) {
		out = append(out, string(l))
	}
	return out
}

func (d *pdfDoc) textColor(c render.RGB) { d.pdf.SetTextColor(int(c.R), int(c.G), int(c.B)) }
func (d *pdfDoc) fillColor(c render.RGB) { d.pdf.SetFillColor(int(c.R), int(c.G), int(c.B)) }
func (d *pdfDoc) drawColor(c render.RGB) { d.pdf.SetDrawColor(int(c.R), int(c.G), int(c.B)) }

func (d *pdfDoc) header() {
	pdf := d.pdf
	x, y := pdf.GetX(), pdf.GetY()
	dateW := d.width * 0.25
	bannerW := d.width - dateW

	pdf.SetFont(fontFamily, "B", 16)
	lines := d.wrap(strings.ToUpper(d.sheet.Title), bannerW-8)
	if len(lines) == 0 {
		lines = []string{""}
	}
	h := float64(len(lines))*7 + 10
	if h < 22 {
		h = 22
	}

	pdf.SetLineWidth(0.6)
	d.drawColor(render.Black)
	pdf.Rect(x, y, dateW, h, "D")
	d.fillColor(d.sheet.Banner.Background)
	pdf.Rect(x+dateW, y, bannerW, h, "FD")

	d.textColor(render.Black)
	pdf.SetFont(fontFamily, "BU", 10)
	pdf.SetXY(x, y+h/2-6)
	pdf.CellFormat(dateW, 5, d.tr(d.sheet.Labels.Date), "", 2, "C", false, 0, "")
	pdf.SetFont(fontFamily, "", 9)
	pdf.CellFormat(dateW, 6, d.tr(d.sheet.Labels.DatePlaceholder), "", 0, "C", false, 0, "")

	d.textColor(d.sheet.Banner.Text)
	pdf.SetFont(fontFamily, "B", 16)
	ty := y + (h-float64(len(lines))*7)/2
	for i, line := range lines {
		pdf.SetXY(x+dateW+4, ty+float64(i)*7)
		pdf.CellFormat(bannerW-8, 7, line, "", 0, "C", false, 0, "")
	}
	pdf.SetXY(x, y+h)
}

func (d *pdfDoc) score() {
	pdf := d.pdf
	x, y := pdf.GetX(), pdf.GetY()
	commentW := d.width * 0.75
	totalW := d.width - commentW

	pdf.SetFont(fontFamily, "I", 10)
	lines := d.wrap(d.sheet.CommentText(), commentW-6)
	h := float64(len(lines))*5 + 12
	if h < 28 {
		h = 28
	}

	d.drawColor(render.Black)
	pdf.Rect(x, y, commentW, h, "D")
	pdf.Rect(x+commentW, y, totalW, h, "D")

	d.textColor(render.Black)
	pdf.SetFont(fontFamily, "IU", 10)
	pdf.SetXY(x+3, y+2)
	pdf.CellFormat(commentW-6, 5, d.tr(d.sheet.Labels.Comment), "", 2, "L", false, 0, "")
	pdf.SetFont(fontFamily, "I", 10)
	d.textColor(mutedRGB)
	for _, line := range lines {
		pdf.SetX(x + 3)
		pdf.CellFormat(commentW-6, 5, line, "", 2, "L", false, 0, "")
	}

	cx := x + commentW + totalW/2
	ry := y + h/2
	pdf.SetLineWidth(0.6)
	pdf.Line(cx-8, ry, cx+8, ry)
	d.textColor(render.Black)
	pdf.SetFont(fontFamily, "B", 18)
	pdf.SetXY(x+commentW, ry+1)
	pdf.CellFormat(totalW, 9, fmt.Sprintf("/ %d", d.sheet.TotalPoints), "", 0, "C", false, 0, "")

	pdf.SetLineWidth(0.2)
	pdf.SetXY(x, y+h+8)
}

func (d *pdfDoc) section(sec render.SheetSection) {
	pdf := d.pdf
	units := d.sheet.Labels.Points
	pdf.Ln(2)
	d.textColor(sectionRGB)
	pdf.SetFont(fontFamily, "BU", 13)
	pdf.MultiCell(0, 7, d.tr(fmt.Sprintf("%s (%d %s)", sec.Title, sec.Points, units)), "", "L", false)
	pdf.Ln(1)

	for _, it := range sec.Items {
		d.textColor(numberRGB)
		pdf.SetFont(fontFamily, "B", 11)
		pdf.CellFormat(0, 7, fmt.Sprintf("%d. (%d %s)", it.Number, it.Points, d.tr(units)), "", 1, "L", false, 0, "")

		// Open bullet before the prompt.
		d.drawColor(render.Black)
		pdf.Circle(margin+3, pdf.GetY()+lineHeight/2, 0.8, "D")
		d.textColor(render.Black)
		if prompt := contentBlocks(it.Content); len(prompt) > 0 {
			d.blocks(prompt, margin+7, "")
		} else {
			pdf.Ln(lineHeight)
		}

		switch it.Answer.Kind {
		case render.AnswerRich:
			top, page := pdf.GetY()+1, pdf.PageNo()
			pdf.SetY(top)
			d.textColor(answerRGB)
			d.blocks(richtext.Blocks(it.Answer.HTML), margin+9, "I")
			// The side rule is only drawn when the answer fits on one page.
			if bottom := pdf.GetY(); bottom > top && pdf.PageNo() == page {
				d.drawColor(ruleRGB)
				pdf.SetLineWidth(0.5)
				pdf.Line(margin+6, top, margin+6, bottom)
				pdf.SetLineWidth(0.2)
			}
		case render.AnswerScaffold:
			pdf.Ln(1)
			d.textColor(render.Black)
			d.blocks(richtext.Blocks(it.Answer.HTML), margin+9, "")
		default:
			d.blankLines(it.Answer.Lines)
		}
		pdf.Ln(3)
	}
}

func (d *pdfDoc) blankLines(n int) {
	pdf := d.pdf
	d.drawColor(ruleRGB)
	pdf.SetLineWidth(0.3)
	for i := 0; i < n; i++ {
		pdf.Ln(8)
		if _, pageH := pdf.GetPageSize(); pdf.GetY() > pageH-margin-10 {
			pdf.AddPage()
			pdf.Ln(8)
		}
		y := pdf.GetY()
		pdf.Line(margin+9, y, margin+d.width, y)
	}
	pdf.SetLineWidth(0.2)
}

// blocks lays rich blocks out from indent to the right margin. baseStyle is
// combined with each run's own style.
func (d *pdfDoc) blocks(blocks []richtext.Block, indent float64, baseStyle string) {
	pdf := d.pdf
	pdf.SetLeftMargin(indent)
	defer pdf.SetLeftMargin(margin)

	for _, b := range blocks {
		pdf.SetX(indent)
		switch b.Kind {
		case richtext.BlockImage:
			d.image(b.Image, indent)
			continue
		case richtext.BlockListItem:
			pdf.SetFont(fontFamily, baseStyle, 11)
			pdf.Write(lineHeight, "- ")
		}
		size := 11.0
		if b.Kind == richtext.BlockHeading {
			size = 15 - float64(b.Level)
		}
		for _, r := range b.Runs {
			pdf.SetFont(fontFamily, runStyle(baseStyle, r), size)
			pdf.Write(lineHeight, d.tr(r.Text))
		}
		pdf.Ln(lineHeight)
	}
}

func (d *pdfDoc) image(img *richtext.Image, indent float64) {
	pdf := d.pdf
	name := img.Name()
	opts := fpdf.ImageOptions{ImageType: img.Type, ReadDpi: false}
	if !d.images[name] {
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.Data))
		d.images[name] = true
	}

	_, pageH := pdf.GetPageSize()
	w, h := fitImage(img.Width, img.Height, margin+d.width-indent, pageH-2*margin-5)
	if pdf.GetY()+h > pageH-margin-5 {
		pdf.AddPage()
	}
	y := pdf.GetY() + 1
	pdf.ImageOptions(name, indent, y, w, h, false, opts, 0, "")
	pdf.SetY(y + h + 1)
}

// fitImage converts pixel dimensions to millimetres and scales them down,
// keeping the aspect ratio, until they fit maxW by maxH.
func fitImage(widthPx, heightPx int, maxW, maxH float64) (w, h float64) {
	w = float64(widthPx) * pxToMM
	h = float64(heightPx) * pxToMM
	if w > maxW {
		h = h * maxW / w
		w = maxW
	}
	if h > maxH {
		w = w * maxH / h
		h = maxH
	}
	return w, h
}

// contentBlocks treats tag-free prompts as plain text with one paragraph per line.
func contentBlocks(content string) []richtext.Block {
	if strings.Contains(content, "<") {
		return richtext.Blocks(content)
	}
	var out []richtext.Block
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, richtext.Block{Kind: richtext.BlockParagraph, Runs: []richtext.Run{{Text: line}}})
	}
	return out
}

func runStyle(base string, r richtext.Run) string {
	style := base
	if r.Bold && !strings.Contains(style, "B") {
		style += "B"
	}
	if r.Italic && !strings.Contains(style, "I") {
		style += "I"
	}
	if r.Underline && !strings.Contains(style, "U") {
		style += "U"
	}
	return style
}
