// Package report renders a graded sheet as a one-page PDF.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/Gowithe/scangrade-thai/internal/grading"
	"github.com/Gowithe/scangrade-thai/internal/imaging"
	"github.com/Gowithe/scangrade-thai/internal/marks"
	"github.com/Gowithe/scangrade-thai/internal/omr"
)

const (
	pageMargin   = 10.0
	rowHeight    = 5.0
	rowsPerGroup = 40
	groupGap     = 3.0
	imageGap     = 5.0
)

// columns of the per-question table, in mm.
var columns = []struct {
	title string
	width float64
}{
	{"Q", 8},
	{"Ans", 10},
	{"Key", 10},
	{"Result", 14},
}

// Statuses print as words because the core PDF fonts lack the tick and
// cross glyphs.
var statusText = map[grading.Status]string{
	grading.StatusCorrect: "correct",
	grading.StatusWrong:   "wrong",
	grading.StatusBlank:   "blank",
	grading.StatusMulti:   "multi",
}

// Options add free text to the report header.
type Options struct {
	Title   string
	Subject string

	// Generated is printed in the header; the current time when zero.
	Generated time.Time
}

// Render writes res as an A4 PDF to w: a summary header, one table row per
// question and the annotated sheet image when res carries one.
func Render(w io.Writer, res *omr.Result, opts Options) error {
	if res == nil {
		return errors.New("no result to render")
	}
	if opts.Title == "" {
		opts.Title = "Answer sheet report"
	}
	if opts.Generated.IsZero() {
		opts.Generated = time.Now()
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(opts.Title, true)
	pdf.SetCreator("scangrade", true)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, pageMargin)
	pdf.AddPage()

	writeSummary(pdf, tr, res, opts)

	top := pdf.GetY() + 4
	tableWidth := writeTable(pdf, res, top)

	if res.Annotated != nil && !res.Annotated.Bounds().Empty() {
		if err := placeImage(pdf, res, pageMargin+tableWidth+imageGap, top); err != nil {
			return err
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}

func writeSummary(pdf *gofpdf.Fpdf, tr func(string) string, res *omr.Result, opts Options) {
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 8, tr(opts.Title), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	if opts.Subject != "" {
		pdf.CellFormat(0, 5, tr("Subject: "+opts.Subject), "", 1, "L", false, 0, "")
	}
	if res.Header != "" {
		pdf.CellFormat(0, 5, tr("Student: "+res.Header), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 5, fmt.Sprintf("Sheet: %d questions   Run: %s   %s",
		res.QuestionCount, res.RunID, opts.Generated.Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")

	s := res.Stats
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 7, fmt.Sprintf("Score %d / %d (%.1f%%)", s.Correct, s.Total, s.Percent()), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 5, fmt.Sprintf("Correct %d   Wrong %d   Blank %d   Multi %d",
		s.Correct, s.Wrong, s.Blank, s.Multi), "", 1, "L", false, 0, "")
}

// writeTable draws the question table in groups of rowsPerGroup rows and
// returns its total width.
func writeTable(pdf *gofpdf.Fpdf, res *omr.Result, top float64) float64 {
	var groupWidth float64
	for _, c := range columns {
		groupWidth += c.width
	}

	groups := (res.QuestionCount + rowsPerGroup - 1) / rowsPerGroup
	for g := 0; g < groups; g++ {
		x := pageMargin + float64(g)*(groupWidth+groupGap)

		pdf.SetFont("Helvetica", "B", 8)
		pdf.SetFillColor(230, 230, 230)
		pdf.SetXY(x, top)
		for _, c := range columns {
			pdf.CellFormat(c.width, rowHeight, c.title, "1", 0, "C", true, 0, "")
		}

		pdf.SetFont("Helvetica", "", 8)
		first := g*rowsPerGroup + 1
		last := min(first+rowsPerGroup-1, res.QuestionCount)
		for q := first; q <= last; q++ {
			pdf.SetXY(x, top+float64(q-first+1)*rowHeight)
			row := questionRow(res, q)
			fillRow(pdf, res.Detail[q].Status)
			for i, c := range columns {
				pdf.CellFormat(c.width, rowHeight, row[i], "1", 0, "C", true, 0, "")
			}
		}
	}

	if groups == 0 {
		return 0
	}
	return float64(groups)*groupWidth + float64(groups-1)*groupGap
}

func questionRow(res *omr.Result, q int) []string {
	answer := res.Answers[q]
	switch answer {
	case "":
		answer = "-"
	case marks.Multi:
		answer = "M"
	}

	entry, graded := res.Detail[q]
	key, result := "", ""
	if graded {
		key = entry.Correct
		result = statusText[entry.Status]
	}
	return []string{fmt.Sprintf("%d", q), answer, key, result}
}

func fillRow(pdf *gofpdf.Fpdf, status grading.Status) {
	switch status {
	case grading.StatusCorrect:
		pdf.SetFillColor(220, 245, 220)
	case grading.StatusWrong:
		pdf.SetFillColor(250, 220, 220)
	case grading.StatusMulti:
		pdf.SetFillColor(250, 240, 200)
	default:
		pdf.SetFillColor(255, 255, 255)
	}
}

// placeImage fits the annotated sheet into the space right of the table.
func placeImage(pdf *gofpdf.Fpdf, res *omr.Result, x, y float64) error {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, res.Annotated, imaging.FormatJPEG); err != nil {
		return fmt.Errorf("failed to encode sheet image: %w", err)
	}

	pageW, pageH := pdf.GetPageSize()
	maxW := pageW - pageMargin - x
	maxH := pageH - pageMargin - y
	if maxW <= 0 || maxH <= 0 {
		return nil
	}

	b := res.Annotated.Bounds()
	w, h := maxW, maxW*float64(b.Dy())/float64(b.Dx())
	if h > maxH {
		w, h = maxH*float64(b.Dx())/float64(b.Dy()), maxH
	}

	opts := gofpdf.ImageOptions{ImageType: "JPG"}
	pdf.RegisterImageOptionsReader("sheet", opts, &buf)
	pdf.ImageOptions("sheet", x, y, w, h, false, opts, 0, "")
	if pdf.Err() {
		return fmt.Errorf("failed to place sheet image: %w", pdf.Error())
	}
	return nil
}
