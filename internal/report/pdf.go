package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/nexuscomply/backend/internal/logger"
	"github.com/nexuscomply/backend/internal/version"
)

// ChartUnavailable replaces the chart when it cannot be rendered.
const ChartUnavailable = "Chart data unavailable"

const (
	pageMargin = 15.0
	lineHeight = 6.0
	rowHeight  = 7.0
	chartWidth = 180.0
)

// Generator assembles report documents.
type Generator struct {
	chart ChartRenderer
}

// NewGenerator returns a generator using chart, or the bar chart renderer
// when chart is nil.
func NewGenerator(chart ChartRenderer) *Generator {
	if chart == nil {
		chart = RenderBarChart
	}
	return &Generator{chart: chart}
}

type document struct {
	pdf  *fpdf.Fpdf
	tr   func(string) string
	data *Data
}

// Generate renders data as a PDF: executive summary, chart, detail table and
// conclusion. A noData dataset is refused before anything is built, and the
// context is checked between sections.
func (g *Generator) Generate(ctx context.Context, data *Data) ([]byte, error) {
	if data == nil || data.NoData {
		return nil, ErrNoData
	}
	if !data.Type.Valid() {
		return nil, ErrUnknownType
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetTitle(data.Type.Title(), false)
	pdf.SetCreator(version.Name, false)
	pdf.SetCreationDate(data.GeneratedAt)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-pageMargin)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("%s - Page %d/{nb}", version.Name, pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	doc := &document{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor(""), data: data}

	sections := []func(context.Context) error{
		doc.summary,
		func(ctx context.Context) error { return doc.chart(ctx, g.chart) },
		doc.table,
		doc.conclusion,
	}
	for _, section := range sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := section(ctx); err != nil {
			return nil, err
		}
		if pdf.Err() {
			return nil, pdf.Error()
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *document) heading(text string) {
	d.pdf.SetFont("Helvetica", "B", 13)
	d.pdf.SetTextColor(20, 40, 90)
	d.pdf.CellFormat(0, 9, d.tr(text), "", 1, "L", false, 0, "")
	d.pdf.SetTextColor(0, 0, 0)
}

func (d *document) field(label, value string) {
	d.pdf.SetFont("Helvetica", "B", 10)
	d.pdf.CellFormat(60, lineHeight, d.tr(label), "", 0, "L", false, 0, "")
	d.pdf.SetFont("Helvetica", "", 10)
	d.pdf.CellFormat(0, lineHeight, d.tr(value), "", 1, "L", false, 0, "")
}

func (d *document) summary(_ context.Context) error {
	data, s := d.data, d.data.Summary
	d.pdf.AddPage()
	d.pdf.SetFont("Helvetica", "B", 18)
	d.pdf.CellFormat(0, 12, d.tr(data.Type.Title()+" Report"), "", 1, "L", false, 0, "")
	d.pdf.SetFont("Helvetica", "", 10)
	d.pdf.CellFormat(0, lineHeight, d.tr(fmt.Sprintf("Period %s to %s, generated %s",
		data.From.Format("2 Jan 2006"), data.To.Format("2 Jan 2006"), data.GeneratedAt.Format("2 Jan 2006 15:04"))),
		"", 1, "L", false, 0, "")
	if f := describeFilter(data.Filter); f != "" {
		d.pdf.CellFormat(0, lineHeight, d.tr("Filter: "+f), "", 1, "L", false, 0, "")
	}
	d.pdf.Ln(4)

	d.heading("Executive Summary")
	d.field("Total audits", itoa(s.TotalAudits))
	d.field("Compliant", itoa(s.Compliant))
	d.field("Non-compliant", itoa(s.NonCompliant))
	d.field("Partially compliant", itoa(s.Partial))
	d.field("Overall compliance rate", s.DisplayRate(s.OverallRate))
	d.field("Average rate", s.DisplayRate(s.AverageRate))
	d.field("Highest rate", withLabel(s.DisplayRate(s.HighestRate), s.HighestLabel))
	d.field("Lowest rate", withLabel(s.DisplayRate(s.LowestRate), s.LowestLabel))
	if d.data.Type != TypeOverallTrends {
		d.field("Open issues", itoa(s.OpenIssues))
	}
	d.pdf.Ln(4)
	return nil
}

func withLabel(rate, label string) string {
	if label == "" {
		return rate
	}
	return rate + " (" + label + ")"
}

func describeFilter(f Filter) string {
	var parts []string
	if f.State != "" {
		parts = append(parts, "state "+f.State)
	}
	if f.OutletID != nil {
		parts = append(parts, fmt.Sprintf("outlet #%d", *f.OutletID))
	}
	if f.ManagerID != nil {
		parts = append(parts, fmt.Sprintf("manager #%d", *f.ManagerID))
	}
	if f.Category != "" {
		parts = append(parts, "category "+f.Category)
	}
	return strings.Join(parts, ", ")
}

func (d *document) chart(ctx context.Context, render ChartRenderer) error {
	d.heading("Compliance Rates")
	img, err := render(ctx, d.data.Type.Title(), d.data.TrendData)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logger.Log().WithError(err).WithField("report_type", d.data.Type).Warn("chart rendering failed")
		d.chartPlaceholder()
		return nil
	}

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	info := d.pdf.RegisterImageOptionsReader("chart", opts, bytes.NewReader(img))
	if d.pdf.Err() || info == nil {
		logger.Log().WithError(d.pdf.Error()).WithField("report_type", d.data.Type).Warn("chart image rejected")
		d.pdf.ClearError()
		d.chartPlaceholder()
		return nil
	}
	height := chartWidth * info.Height() / info.Width()
	_, pageHeight := d.pdf.GetPageSize()
	if d.pdf.GetY()+height > pageHeight-2*pageMargin {
		d.pdf.AddPage()
	}
	d.pdf.ImageOptions("chart", pageMargin, d.pdf.GetY(), chartWidth, height, true, opts, 0, "")
	d.pdf.Ln(4)
	return nil
}

func (d *document) chartPlaceholder() {
	d.pdf.SetFont("Helvetica", "I", 11)
	d.pdf.SetFillColor(240, 240, 240)
	d.pdf.CellFormat(chartWidth, 30, ChartUnavailable, "1", 1, "C", true, 0, "")
	d.pdf.Ln(4)
}

// fit trims text until it fits a cell of width w.
func (d *document) fit(text string, w float64) string {
	text = d.tr(text)
	for text != "" && d.pdf.GetStringWidth(text) > w-2 {
		text = text[:len(text)-1]
	}
	return text
}

func (d *document) tableHeader(cols []Column) {
	d.pdf.SetFont("Helvetica", "B", 9)
	d.pdf.SetFillColor(20, 40, 90)
	d.pdf.SetTextColor(255, 255, 255)
	for _, c := range cols {
		d.pdf.CellFormat(c.Width, rowHeight, c.Header, "1", 0, "C", true, 0, "")
	}
	d.pdf.Ln(-1)
	d.pdf.SetTextColor(0, 0, 0)
	d.pdf.SetFont("Helvetica", "", 9)
}

func (d *document) table(ctx context.Context) error {
	cols := Columns(d.data.Type)
	_, pageHeight := d.pdf.GetPageSize()

	d.heading("Detailed Results")
	d.tableHeader(cols)
	for i, row := range d.data.TableRows {
		if i%50 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if d.pdf.GetY()+rowHeight > pageHeight-2*pageMargin {
			d.pdf.AddPage()
			d.tableHeader(cols)
		}
		fill := i%2 == 1
		d.pdf.SetFillColor(245, 247, 250)
		for _, c := range cols {
			d.pdf.CellFormat(c.Width, rowHeight, d.fit(c.Value(row), c.Width), "1", 0, c.Align, fill, 0, "")
		}
		d.pdf.Ln(-1)
	}
	d.pdf.Ln(4)
	return nil
}

func (d *document) conclusion(_ context.Context) error {
	d.heading("Conclusion")
	d.pdf.SetFont("Helvetica", "", 10)
	d.pdf.MultiCell(0, lineHeight, d.tr(Conclusion(d.data.Type, d.data.Summary)), "", "L", false)
	return nil
}
