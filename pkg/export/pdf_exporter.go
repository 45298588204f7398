package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders datasets into a tabular clinical document.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with a title header, the dataset table and a
// confidentiality footer. Values pass through a cp1252 translator so Spanish
// labels render with the core fonts.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 7)
		pdf.CellFormat(0, 5, tr("Documento clinico confidencial. Uso exclusivo del personal autorizado."), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(title), "", 1, "C", false, 0, "")
	}
	pdf.SetFont("Arial", "", 8)
	pdf.CellFormat(0, 5, tr(fmt.Sprintf("Generado: %s", time.Now().UTC().Format("2006-01-02 15:04 UTC"))), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	// give the first column a third of the width, the remainder splits evenly
	widths := make([]float64, len(data.Headers))
	if len(data.Headers) == 1 {
		widths[0] = 190
	} else {
		widths[0] = 63
		rest := (190.0 - widths[0]) / float64(len(data.Headers)-1)
		for i := 1; i < len(widths); i++ {
			widths[i] = rest
		}
	}

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(235, 235, 235)
	for i, header := range data.Headers {
		pdf.CellFormat(widths[i], 8, tr(header), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range data.Rows {
		for i, header := range data.Headers {
			pdf.CellFormat(widths[i], 7, tr(row[header]), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
