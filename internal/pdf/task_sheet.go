package pdf

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"reliefboard/internal/contact"
	"reliefboard/internal/models"
)

// Generator: интерфейс, удобно мокать в тестах
type Generator interface {
	TaskSheet(w io.Writer, data SheetData) error
}

// DocumentGenerator renders printable task sheets for field teams.
type DocumentGenerator struct {
	FontPath string // TTF with CJK glyphs; empty falls back to Helvetica
	fontName string
}

type SheetData struct {
	Title       string
	Filter      string // human-readable filter line, optional
	Tasks       []models.Task
	GeneratedAt time.Time
}

func NewDocumentGenerator(fontPath string) *DocumentGenerator {
	g := &DocumentGenerator{FontPath: fontPath, fontName: "NotoSansTC"}
	if fontPath == "" {
		g.fontName = "Helvetica"
	}
	return g
}

func (g *DocumentGenerator) TaskSheet(w io.Writer, data SheetData) error {
	title := data.Title
	if title == "" {
		title = "救災任務清單"
	}
	generated := data.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetAuthor("reliefboard", false)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	g.addUTF8Font(pdf)
	tr := g.translator(pdf)

	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(g.fontName, "", 9)
		pdf.CellFormat(0, 10, tr(fmt.Sprintf("第 %d/{nb} 頁", pdf.PageNo())), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	// ===== Заголовок
	pdf.SetFont(g.fontName, "B", 18)
	pdf.CellFormat(0, 10, tr(title), "", 1, "C", false, 0, "")
	pdf.SetFont(g.fontName, "", 10)
	sub := fmt.Sprintf("產生時間 %s　共 %d 筆", generated.Format("2006-01-02 15:04"), len(data.Tasks))
	if data.Filter != "" {
		sub += "　" + data.Filter
	}
	pdf.CellFormat(0, 6, tr(sub), "", 1, "C", false, 0, "")
	g.hr(pdf)

	if len(data.Tasks) == 0 {
		pdf.SetFont(g.fontName, "", 12)
		pdf.CellFormat(0, 10, tr("目前沒有任務"), "", 1, "C", false, 0, "")
	}
	for _, t := range data.Tasks {
		g.taskBlock(pdf, tr, t)
	}

	return pdf.Output(w)
}

func (g *DocumentGenerator) taskBlock(pdf *gofpdf.Fpdf, tr func(string) string, t models.Task) {
	g.sectionTitle(pdf, tr(fmt.Sprintf("#%s %s", t.ID, t.Title)))
	g.kvLine(pdf, tr("類型"), tr(t.Type.Label()))
	g.kvLine(pdf, tr("狀態"), tr(t.Status.Label()))
	if t.WorkLocation != "" {
		g.kvLine(pdf, tr("地點"), tr(t.WorkLocation))
	}
	g.kvLine(pdf, tr("人數"), fmt.Sprintf("%d / %d", t.ClaimedCount, t.RequiredNumberOfPeople))
	g.kvLine(pdf, tr("危險等級"), strings.Repeat("*", t.DangerLevel)+fmt.Sprintf(" (%d)", t.DangerLevel))
	if nums := contact.ParseNumbers(t.ContactNumber); len(nums) > 0 {
		shown := make([]string, len(nums))
		for i, n := range nums {
			shown[i] = contact.FormatDisplay(n)
		}
		g.kvLine(pdf, tr("聯絡電話"), strings.Join(shown, ", "))
	}
	if t.Deadline != nil {
		g.kvLine(pdf, tr("截止"), t.Deadline.Format("2006-01-02 15:04"))
	}
	if t.Description != "" {
		pdf.SetFont(g.fontName, "", 11)
		pdf.MultiCell(0, 6, tr(t.Description), "", "L", false)
	}
	pdf.Ln(1)
	g.hr(pdf)
}

// === helpers ===
func (g *DocumentGenerator) sectionTitle(pdf *gofpdf.Fpdf, s string) {
	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 7, s, "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
}

func (g *DocumentGenerator) kvLine(pdf *gofpdf.Fpdf, key, val string) {
	pdf.SetFont(g.fontName, "B", 11)
	pdf.CellFormat(30, 6, key+":", "", 0, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, val, "", 1, "L", false, 0, "")
}

func (g *DocumentGenerator) hr(pdf *gofpdf.Fpdf) {
	y := pdf.GetY() + 1.5
	pdf.SetLineWidth(0.2)
	pdf.Line(20, y, 190, y)
	pdf.SetY(y + 2)
}

func (g *DocumentGenerator) addUTF8Font(pdf *gofpdf.Fpdf) {
	if g.FontPath == "" {
		return
	}
	// AddUTF8Font принимает путь до TTF
	pdf.AddUTF8Font(g.fontName, "", g.FontPath)
	pdf.AddUTF8Font(g.fontName, "B", g.FontPath)
}

// translator maps UTF-8 text for the core font; a UTF-8 TTF takes text as is.
func (g *DocumentGenerator) translator(pdf *gofpdf.Fpdf) func(string) string {
	if g.FontPath != "" {
		return func(s string) string { return s }
	}
	return pdf.UnicodeTranslatorFromDescriptor("")
}
