// Package layout draws a render.Sheet as a paginated document: an A4 HTML
// page for preview and a PDF for printing.
package layout

import (
	"fmt"

	"github.com/evalgen/evalgen/internal/render"
)

//go:generate templ generate

const (
	sectionColor = "#c00000"
	numberColor  = "#0070c0"
)

const pageCSS = `
body { margin: 0; background: #e5e7eb; font-family: Helvetica, Arial, sans-serif; }
.sheet { background: #fff; width: 210mm; min-height: 297mm; margin: 1rem auto; padding: 2rem; box-sizing: border-box;
  display: flex; flex-direction: column; font-size: 11pt; color: #111827; }
.head, .score { display: flex; border: 2px solid #000; }
.head { border-bottom: none; }
.score { margin-bottom: 1.5rem; }
.date { width: 25%; border-right: 2px solid #000; padding: .5rem; display: flex; flex-direction: column; align-items: center; justify-content: center; }
.date b { text-decoration: underline; font-size: 10pt; }
.date span { font-size: 9pt; }
.banner { width: 75%; padding: 1rem; display: flex; align-items: center; justify-content: center; text-align: center; }
.banner h1 { margin: 0; font-size: 18pt; text-transform: uppercase; letter-spacing: .05em; }
.comment { width: 75%; min-height: 80px; padding: .5rem; border-right: 2px solid #000; }
.comment .label { font-style: italic; text-decoration: underline; font-size: 10pt; margin: 0 0 .25rem; }
.comment .text { font-style: italic; color: #6b7280; white-space: pre-wrap; font-size: 10pt; margin: 0; }
.total { width: 25%; display: flex; flex-direction: column; align-items: center; justify-content: center; }
.total .rule { width: 4rem; height: 2px; background: #000; margin-bottom: .25rem; }
.total p { font-weight: bold; font-size: 18pt; margin: 0; }
.sections { flex: 1; }
.section h2 { color: ` + sectionColor + `; text-decoration: underline; font-size: 13pt; }
.question h3 { color: ` + numberColor + `; font-size: 11pt; margin: .75rem 0 .25rem; }
.prompt { display: flex; padding-left: .5rem; }
.prompt .bullet { margin-right: .5rem; }
.prompt .content { flex: 1; white-space: pre-wrap; }
.answer { margin-top: .5rem; padding: .5rem 0 .5rem 1.5rem; color: #374151; font-style: italic; border-left: 2px solid #e5e7eb; }
.scaffold { margin-top: .5rem; padding-left: 1.5rem; }
.lines { margin-top: 1rem; padding-left: 1.5rem; }
.blank-line { border-bottom: 1px solid #d1d5db; height: 1rem; margin-bottom: 1rem; }
.rich img { max-width: 100%; }
.foot { margin-top: 2.5rem; border-top: 1px solid #e5e7eb; padding-top: .5rem; text-align: right; font-size: 8pt; color: #9ca3af; }
@media print { body { background: #fff; } .sheet { margin: 0; } }
`

func bannerStyle(b render.Banner) string {
	return fmt.Sprintf("background-color: %s; color: %s;", b.Background.Hex(), b.Text.Hex())
}
