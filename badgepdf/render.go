// Package badgepdf draws attendee badges as 4x2 inch PDF labels.
package badgepdf

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
)

const (
	inch   = 72.0
	width  = 4 * inch
	height = 2 * inch
	margin = 0.18 * inch

	ContentType = "application/pdf"

	DefaultTitle     = "AWS Community Student Day"
	DefaultSignature = "AWSQR"
)

type Details struct {
	TicketID    string
	Name        string
	Profession  string
	CheckedInAt string
}

type Renderer struct {
	title     string
	signature string
}

func NewRenderer(title, signature string) Renderer {
	if title == "" {
		title = DefaultTitle
	}
	if signature == "" {
		signature = DefaultSignature
	}

	return Renderer{title: title, signature: signature}
}

// Render returns the badge PDF encoded as standard base64.
func (r Renderer) Render(details Details) (string, error) {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		UnitStr: "pt",
		Size:    fpdf.SizeType{Wd: width, Ht: height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetLineWidth(1)
	pdf.Rect(margin, margin, width-2*margin, height-2*margin, "D")

	pdf.SetFont("Helvetica", "B", 10)
	pdf.Text(margin+0.08*inch, margin+0.22*inch, tr(r.title))

	pdf.SetLineWidth(0.5)
	pdf.Line(margin, margin+0.30*inch, width-margin, margin+0.30*inch)

	maxWidth := width - 2*margin - 0.2*inch
	fitCenterText(pdf, margin+0.85*inch, tr(orDefault(details.Name, "UNKNOWN")), "B", 18, 12, maxWidth)
	fitCenterText(pdf, margin+1.15*inch, tr(orDefault(details.Profession, "N/A")), "", 11, 8, maxWidth)

	footerY := height - margin - 0.22*inch

	pdf.SetFont("Helvetica", "", 8)
	pdf.Text(margin+0.08*inch, footerY-0.18*inch, tr("Ticket: "+details.TicketID))
	pdf.Text(margin+0.08*inch, footerY, tr("CheckedInAt: "+orDefault(details.CheckedInAt, "N/A")))

	pdf.SetFont("Helvetica", "I", 7)
	signatureWidth := pdf.GetStringWidth(r.signature)
	pdf.Text(width-margin-0.08*inch-signatureWidth, footerY, r.signature)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return "", fmt.Errorf("could not render badge for ticket %s: %w", details.TicketID, err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// fitCenterText shrinks the font one point at a time until text fits into
// maxWidth or minSize is reached, then centres it on the page at baseline y.
func fitCenterText(pdf *fpdf.Fpdf, y float64, text, style string, startSize, minSize, maxWidth float64) {
	size := startSize
	pdf.SetFont("Helvetica", style, size)
	for size > minSize && pdf.GetStringWidth(text) > maxWidth {
		size--
		pdf.SetFont("Helvetica", style, size)
	}

	pdf.Text((width-pdf.GetStringWidth(text))/2, y, text)
}

func orDefault(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}
