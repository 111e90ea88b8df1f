package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/doha-roastery/roastery/internal/reports"
)

// WriteSalesSummaryCSV serialises a sales summary to CSV.
func WriteSalesSummaryCSV(w io.Writer, summary reports.SalesSummary) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Metric", "Value"}); err != nil {
		return err
	}
	records := [][]string{
		{"From", summary.From.Format("2006-01-02")},
		{"To", summary.To.Format("2006-01-02")},
		{"Gross Sales", formatFloat(summary.GrossSales)},
		{"Tax Collected", formatFloat(summary.TaxCollected)},
		{"Net Sales", formatFloat(summary.NetSales)},
		{"Transactions", strconv.Itoa(summary.TransactionCount)},
		{"Cash Total", formatFloat(summary.CashTotal)},
		{"Card Total", formatFloat(summary.CardTotal)},
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	if err := writer.Write([]string{"Product", "Quantity", "Revenue"}); err != nil {
		return err
	}
	for _, p := range summary.TopProducts {
		if err := writer.Write([]string{p.ProductName, strconv.Itoa(p.Quantity), formatFloat(p.Revenue)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteBatchYieldCSV emits per-batch mass balances as CSV.
func WriteBatchYieldCSV(w io.Writer, yields []reports.BatchYield) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Batch", "Level", "Pre Kg", "Post Kg", "Waste %", "Allocated Kg", "Remaining Kg", "Units"}); err != nil {
		return err
	}
	for _, y := range yields {
		if err := writer.Write([]string{
			y.Code,
			y.Level,
			formatFloat(y.PreWeightKg),
			formatFloat(y.PostWeightKg),
			formatFloat(y.WastePct),
			formatFloat(y.AllocatedKg),
			formatFloat(y.RemainingKg),
			strconv.Itoa(y.UnitsPackaged),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteValuationCSV emits the stock valuation as CSV.
func WriteValuationCSV(w io.Writer, summary reports.ValuationSummary) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Location", "Product", "SKU", "Quantity", "Unit Cost", "Total Value"}); err != nil {
		return err
	}
	for _, row := range summary.Rows {
		if err := writer.Write([]string{
			row.LocationName,
			row.ProductName,
			row.SKU,
			strconv.Itoa(row.Quantity),
			formatFloat(row.UnitCost),
			formatFloat(row.TotalValue),
		}); err != nil {
			return err
		}
	}
	if err := writer.Write([]string{"TOTAL", "", "", "", "", formatFloat(summary.TotalValue)}); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
