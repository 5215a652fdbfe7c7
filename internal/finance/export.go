package finance

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ExportCSV streams ledger entries matching the filter as CSV. Amounts are
// grouped per locale so the export matches what the cashier screens display.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, filter ListFilter) error {
	printer := message.NewPrinter(language.Indonesian)
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"id", "date", "type", "amount", "description", "related_type", "invoice_id", "purchase_order_id"}); err != nil {
		return err
	}

	filter.Page = 1
	if filter.PerPage <= 0 {
		filter.PerPage = 500
	}
	for {
		entries, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			record := []string{
				strconv.FormatInt(entry.ID, 10),
				entry.Date.Format("2006-01-02"),
				string(entry.Type),
				printer.Sprintf("%.2f", entry.Amount),
				entry.Description,
				string(entry.RelatedType),
				formatRef(entry.InvoiceID),
				formatRef(entry.PurchaseOrderID),
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
		if filter.Page*filter.PerPage >= total || len(entries) == 0 {
			break
		}
		filter.Page++
	}

	writer.Flush()
	return writer.Error()
}

func formatRef(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
