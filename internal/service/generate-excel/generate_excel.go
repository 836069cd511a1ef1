package generate_excel

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"prod-planner/internal/service/capacity"
	"prod-planner/internal/service/planning"
)

const (
	planSheet     = "Plan"
	shortageSheet = "Braki"
)

type OverviewSource interface {
	Overview(ctx context.Context) (planning.Overview, error)
}

// ReportFilter - диапазон плановых дат включительно. Нулевая граница не ограничивает.
type ReportFilter struct {
	From time.Time
	To   time.Time
}

func (f ReportFilter) contains(t time.Time) bool {
	day := capacity.DateKey(t)
	if !f.From.IsZero() && day < capacity.DateKey(f.From) {
		return false
	}
	if !f.To.IsZero() && day > capacity.DateKey(f.To) {
		return false
	}
	return true
}

type GenerateExcelService struct {
	source OverviewSource
}

func NewGenerateService(source OverviewSource) *GenerateExcelService {
	return &GenerateExcelService{source: source}
}

func (g *GenerateExcelService) GenerateExcel(ctx context.Context, filter ReportFilter) ([]byte, error) {
	const op = "service.generate_excel.GenerateExcel"

	overview, err := g.source.Overview(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch data: %w", op, err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", planSheet); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := f.NewSheet(shortageSheet); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"E0E0E0"}, Pattern: 1},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 2}},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: style: %w", op, err)
	}
	// заказы с нехваткой подсвечиваются
	shortStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"F8D7DA"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: style: %w", op, err)
	}

	writeHeader(f, planSheet, headerStyle, []string{
		"Kod", "Rodzaj", "Receptura", "Data", "Ilość [kg]", "Czas [min]", "Obciążenie dnia [min]", "Status", "Partie", "Braki",
	})

	included := make(map[string]bool)
	rowNum := 2
	for _, r := range overview.Rows {
		if !filter.contains(r.PlannedDate) {
			continue
		}
		included[r.Code] = true

		f.SetCellValue(planSheet, cellName(1, rowNum), r.Code)
		f.SetCellValue(planSheet, cellName(2, rowNum), string(r.Kind))
		f.SetCellValue(planSheet, cellName(3, rowNum), r.RecipeName)
		f.SetCellValue(planSheet, cellName(4, rowNum), capacity.DateKey(r.PlannedDate))
		f.SetCellValue(planSheet, cellName(5, rowNum), r.TargetQuantityKg.InexactFloat64())
		f.SetCellValue(planSheet, cellName(6, rowNum), r.EstimatedMinutes.Round(1).InexactFloat64())
		f.SetCellValue(planSheet, cellName(7, rowNum),
			fmt.Sprintf("%s / %s", overview.Workload.Used(r.PlannedDate).Round(1), overview.CapacityMinutes))
		f.SetCellValue(planSheet, cellName(8, rowNum), string(r.Status))
		f.SetCellValue(planSheet, cellName(9, rowNum), r.Batches)
		f.SetCellValue(planSheet, cellName(10, rowNum), yesNo(r.HasShortages))

		if r.HasShortages {
			f.SetCellStyle(planSheet, cellName(1, rowNum), cellName(10, rowNum), shortStyle)
		}
		rowNum++
	}

	writeHeader(f, shortageSheet, headerStyle, []string{
		"Zlecenie", "Materiał", "Jednostka", "Wymagane", "Dostępne", "Brakuje",
	})

	rowNum = 2
	for _, s := range overview.Shortages {
		if !included[s.OrderCode] {
			continue
		}
		f.SetCellValue(shortageSheet, cellName(1, rowNum), s.OrderCode)
		f.SetCellValue(shortageSheet, cellName(2, rowNum), s.ProductName)
		f.SetCellValue(shortageSheet, cellName(3, rowNum), string(s.Unit))
		f.SetCellValue(shortageSheet, cellName(4, rowNum), s.Required.Round(3).InexactFloat64())
		f.SetCellValue(shortageSheet, cellName(5, rowNum), s.Available.Round(3).InexactFloat64())
		f.SetCellValue(shortageSheet, cellName(6, rowNum), s.Missing.Round(3).InexactFloat64())
		rowNum++
	}

	for _, sheet := range []string{planSheet, shortageSheet} {
		f.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
		})
		f.SetColWidth(sheet, "A", "J", 16)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("%s: write: %w", op, err)
	}

	return buf.Bytes(), nil
}

func writeHeader(f *excelize.File, sheet string, style int, headers []string) {
	for i, name := range headers {
		f.SetCellValue(sheet, cellName(i+1, 1), name)
	}
	f.SetCellStyle(sheet, "A1", cellName(len(headers), 1), style)
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func yesNo(v bool) string {
	if v {
		return "TAK"
	}
	return "NIE"
}
