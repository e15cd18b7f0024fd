package pdf

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"taskflow/internal/models"
)

// Generator is the interface handlers depend on.
type Generator interface {
	TaskReport(w io.Writer, data TaskReportData) error
}

// DocumentGenerator renders reports with gofpdf.
type DocumentGenerator struct {
	FontPath string // UTF-8 TTF, e.g. "assets/fonts/DejaVuSans.ttf"; optional
	fontName string
	utf8     bool
}

// TaskReportData is a task plus the user names referenced by it.
type TaskReportData struct {
	Task        *models.Task
	UserNames   map[int64]string
	GeneratedAt time.Time
}

func NewDocumentGenerator(fontPath string) *DocumentGenerator {
	g := &DocumentGenerator{FontPath: fontPath, fontName: "Helvetica"}
	if fontPath != "" {
		if _, err := os.Stat(fontPath); err == nil {
			g.fontName = "DejaVu"
			g.utf8 = true
		}
	}
	return g
}

func (g *DocumentGenerator) TaskReport(w io.Writer, data TaskReportData) error {
	task := data.Task
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Task #%d", task.ID), g.utf8)
	pdf.SetAuthor("taskflow", false)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)

	g.addUTF8Font(pdf)
	tr := g.translator(pdf)
	pdf.AddPage()

	pdf.SetFont(g.fontName, "B", 18)
	pdf.CellFormat(0, 10, tr(fmt.Sprintf("Task #%d", task.ID)), "", 1, "C", false, 0, "")
	pdf.SetFont(g.fontName, "", 12)
	pdf.CellFormat(0, 7, tr(task.Title), "", 1, "C", false, 0, "")
	g.hr(pdf)

	g.sectionTitle(pdf, "Summary")
	g.kvLine(pdf, tr, "Priority", string(task.Priority))
	g.kvLine(pdf, tr, "Status", string(task.Status))
	g.kvLine(pdf, tr, "Assignment", string(task.AssignmentStatus))
	g.kvLine(pdf, tr, "Assigned to", assignmentLabel(task, data.UserNames))
	g.kvLine(pdf, tr, "Created", task.CreatedAt.Format("02.01.2006 15:04"))
	if task.NextNotification != nil {
		g.kvLine(pdf, tr, "Next reminder", task.NextNotification.Format("02.01.2006 15:04"))
	}
	pdf.Ln(1)
	pdf.SetFont(g.fontName, "", 11)
	pdf.MultiCell(0, 6, tr(task.Description), "", "L", false)
	pdf.Ln(2)
	g.hr(pdf)

	g.sectionTitle(pdf, "Fields")
	if len(task.Fields) == 0 {
		pdf.CellFormat(0, 6, "-", "", 1, "L", false, 0, "")
	}
	for _, f := range task.Fields {
		val := "-"
		if !f.IsEmpty() {
			val = f.Value.String()
		}
		label := f.Label
		if f.Required {
			label += " *"
		}
		g.kvLine(pdf, tr, label, val)
	}
	pdf.Ln(2)
	g.hr(pdf)

	g.sectionTitle(pdf, "History")
	pdf.SetFont(g.fontName, "", 10)
	for _, h := range task.History {
		who := data.UserNames[h.PerformedBy]
		if who == "" {
			who = fmt.Sprintf("user #%d", h.PerformedBy)
		}
		line := fmt.Sprintf("%s  %s  (%s)", h.Timestamp.Format("02.01.2006 15:04"), h.Action, who)
		pdf.MultiCell(0, 5, tr(line), "", "L", false)
	}

	pdf.AliasNbPages("")
	generated := data.GeneratedAt
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(g.fontName, "", 9)
		pdf.CellFormat(0, 10,
			fmt.Sprintf("Generated %s - page %d/{nb}", generated.Format("02.01.2006 15:04"), pdf.PageNo()),
			"", 0, "C", false, 0, "",
		)
	})

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render task report: %w", err)
	}
	return nil
}

func assignmentLabel(task *models.Task, names map[int64]string) string {
	if len(task.AssignedTo) > 0 {
		parts := make([]string, 0, len(task.AssignedTo))
		for _, id := range task.AssignedTo {
			if n := names[id]; n != "" {
				parts = append(parts, n)
			} else {
				parts = append(parts, fmt.Sprintf("#%d", id))
			}
		}
		return strings.Join(parts, ", ")
	}
	if task.AssignedRole != "" {
		return "role: " + task.AssignedRole
	}
	return "-"
}

func (g *DocumentGenerator) sectionTitle(pdf *gofpdf.Fpdf, s string) {
	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 7, s, "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
}

func (g *DocumentGenerator) kvLine(pdf *gofpdf.Fpdf, tr func(string) string, key, val string) {
	pdf.SetFont(g.fontName, "B", 11)
	pdf.CellFormat(45, 6, tr(key+":"), "", 0, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
	pdf.MultiCell(0, 6, tr(val), "", "L", false)
}

func (g *DocumentGenerator) hr(pdf *gofpdf.Fpdf) {
	y := pdf.GetY() + 1.5
	pdf.SetLineWidth(0.2)
	pdf.Line(20, y, 190, y)
	pdf.SetY(y + 2)
}

func (g *DocumentGenerator) addUTF8Font(pdf *gofpdf.Fpdf) {
	if !g.utf8 {
		return
	}
	pdf.AddUTF8Font(g.fontName, "", g.FontPath)
	pdf.AddUTF8Font(g.fontName, "B", g.FontPath)
}

// translator maps UTF-8 to cp1252 when only the core fonts are available.
func (g *DocumentGenerator) translator(pdf *gofpdf.Fpdf) func(string) string {
	if g.utf8 {
		return func(s string) string { return s }
	}
	return pdf.UnicodeTranslatorFromDescriptor("")
}
