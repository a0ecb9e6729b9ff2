package docx

import (
	"encoding/xml"
	"fmt"
	"strings"
)

const (
	nsW       = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsR       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

	// tableWidth is the printable A4 width in twentieths of a point.
	tableWidth = 9638
)

const contentTypesXML = xmlHeader + `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
	`<Override PartName="/word/footer1.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.footer+xml"/>` +
	`</Types>`

const rootRelsXML = xmlHeader + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`</Relationships>`

const documentRelsXML = xmlHeader + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rIdStyles" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
	`<Relationship Id="rIdFooter1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/footer" Target="footer1.xml"/>` +
	`</Relationships>`

const stylesXML = xmlHeader + `<w:styles xmlns:w="` + nsW + `">` +
	`<w:docDefaults><w:rPrDefault><w:rPr>` +
	`<w:rFonts w:ascii="Calibri" w:hAnsi="Calibri" w:cs="Calibri"/><w:sz w:val="22"/><w:szCs w:val="22"/>` +
	`</w:rPr></w:rPrDefault><w:pPrDefault><w:pPr><w:spacing w:after="0" w:line="276" w:lineRule="auto"/></w:pPr></w:pPrDefault></w:docDefaults>` +
	`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style>` +
	`<w:style w:type="table" w:default="1" w:styleId="TableNormal"><w:name w:val="Normal Table"/>` +
	`<w:tblPr><w:tblCellMar><w:left w:w="108" w:type="dxa"/><w:right w:w="108" w:type="dxa"/></w:tblCellMar></w:tblPr></w:style>` +
	`</w:styles>`

type paraProps struct {
	align         string
	indent        int // left indent, twips
	spacingBefore int
	spacingAfter  int
	bottomRule    bool
}

type run struct {
	text        string
	bold        bool
	italic      bool
	underline   bool
	color       string
	size        int // half-points, 0 for the default
	breakBefore bool
	tabBefore   bool
}

// builder accumulates WordprocessingML markup.
type builder struct {
	strings.Builder
}

func (b *builder) raw(s string) { b.WriteString(s) }

func (b *builder) text(s string) {
	// strings.Builder never fails a write.
	_ = xml.EscapeText(&b.Builder, []byte(s))
}

func (b *builder) para(p paraProps, runs []run) {
	b.raw(`<w:p><w:pPr>`)
	if p.bottomRule {
		b.raw(`<w:pBdr><w:bottom w:val="single" w:sz="6" w:space="1" w:color="` + ruleColor + `"/></w:pBdr>`)
	}
	if p.spacingBefore > 0 || p.spacingAfter > 0 {
		fmt.Fprintf(b, `<w:spacing w:before="%d" w:after="%d"/>`, p.spacingBefore, p.spacingAfter)
	}
	if p.indent > 0 {
		fmt.Fprintf(b, `<w:ind w:left="%d"/>`, p.indent)
	}
	if p.align != "" {
		b.raw(`<w:jc w:val="` + p.align + `"/>`)
	}
	b.raw(`</w:pPr>`)
	for _, r := range runs {
		b.run(r)
	}
	b.raw(`</w:p>`)
}

// run writes a text run. Run properties follow the CT_RPr sequence
// (b, i, color, sz, szCs, u); Word rejects other orders.
func (b *builder) run(r run) {
	b.raw(`<w:r><w:rPr>`)
	if r.bold {
		b.raw(`<w:b/>`)
	}
	if r.italic {
		b.raw(`<w:i/>`)
	}
	if r.color != "" {
		b.raw(`<w:color w:val="` + r.color + `"/>`)
	}
	if r.size > 0 {
		fmt.Fprintf(b, `<w:sz w:val="%d"/><w:szCs w:val="%d"/>`, r.size, r.size)
	}
	if r.underline {
		b.raw(`<w:u w:val="single"/>`)
	}
	b.raw(`</w:rPr>`)
	if r.breakBefore {
		b.raw(`<w:br/>`)
	}
	if r.tabBefore {
		b.raw(`<w:tab/>`)
	}
	b.raw(`<w:t xml:space="preserve">`)
	b.text(r.text)
	b.raw(`</w:t></w:r>`)
}

// tableStart opens a bordered single-row table whose columns take the given
// percentages of the page width.
func (b *builder) tableStart(percents []int) {
	b.raw(`<w:tbl><w:tblPr><w:tblW w:w="5000" w:type="pct"/><w:tblBorders>`)
	for _, side := range []string{"top", "left", "bottom", "right", "insideV"} {
		b.raw(`<w:` + side + ` w:val="single" w:sz="12" w:space="0" w:color="000000"/>`)
	}
	b.raw(`</w:tblBorders><w:tblLayout w:type="fixed"/></w:tblPr><w:tblGrid>`)
	for _, p := range percents {
		fmt.Fprintf(b, `<w:gridCol w:w="%d"/>`, tableWidth*p/100)
	}
	b.raw(`</w:tblGrid>`)
}

func (b *builder) cellStart(percent int, fill, valign string) {
	fmt.Fprintf(b, `<w:tc><w:tcPr><w:tcW w:w="%d" w:type="pct"/>`, percent*50)
	if fill != "" {
		b.raw(`<w:shd w:val="clear" w:color="auto" w:fill="` + fill + `"/>`)
	}
	b.raw(`<w:vAlign w:val="` + valign + `"/></w:tcPr>`)
}
