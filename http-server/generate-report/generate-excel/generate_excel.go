package generate_excel

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"prod-planner/http-server/response"
	generate "prod-planner/internal/service/generate-excel"
)

type GenerateExcelHandler interface {
	GenerateExcel(ctx context.Context, filter generate.ReportFilter) ([]byte, error)
}

// GenerateReportExcel - план и нехватки в xlsx. По умолчанию с начала месяца на 30 дней вперёд.
func GenerateReportExcel(log *slog.Logger, gen GenerateExcelHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handler.report.GenerateReportExcel"

		fromStr := r.URL.Query().Get("from")
		toStr := r.URL.Query().Get("to")

		now := time.Now().UTC()
		fDate := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		tDate := now.AddDate(0, 0, 30)

		if fromStr != "" {
			d, err := response.ParseDate("from", fromStr)
			if err != nil {
				response.Fail(w, r, log, op, err)
				return
			}
			fDate = d
		}
		if toStr != "" {
			d, err := response.ParseDate("to", toStr)
			if err != nil {
				response.Fail(w, r, log, op, err)
				return
			}
			tDate = d
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second) // на Excel можно побольше времени
		defer cancel()

		excelBytes, err := gen.GenerateExcel(ctx, generate.ReportFilter{From: fDate, To: tDate})
		if err != nil {
			response.Fail(w, r, log, op, err)
			return
		}

		fileName := fmt.Sprintf("Plan_%s.xlsx", now.Format("2006-01-02_150405"))

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", "attachment; filename="+fileName)
		if _, err := w.Write(excelBytes); err != nil {
			log.Error("failed to write report", slog.String("op", op), slog.String("error", err.Error()))
		}
	}
}
