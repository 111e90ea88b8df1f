package pos

import (
	"fmt"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const receiptWidth = 40

var receiptPrinter = message.NewPrinter(language.English)

// RenderReceipt renders a sale as fixed-width register tape. Duplicate
// copies carry a REPRINT banner so the original stays distinguishable.
func RenderReceipt(sale Sale, duplicate bool) string {
	var b strings.Builder

	writeCentered(&b, "DOHA ROASTERY")
	writeCentered(&b, sale.InvoiceNo)
	if duplicate {
		writeCentered(&b, "*** REPRINT ***")
	}
	b.WriteString(strings.Repeat("-", receiptWidth) + "\n")
	fmt.Fprintf(&b, "Cashier: %s\n", sale.Cashier)
	fmt.Fprintf(&b, "Date:    %s\n", sale.CreatedAt.Format("2006-01-02 15:04"))
	b.WriteString(strings.Repeat("-", receiptWidth) + "\n")

	for _, line := range sale.Lines {
		fmt.Fprintf(&b, "%s\n", truncate(line.ProductName, receiptWidth))
		amount := formatQAR(line.LineTotal)
		left := fmt.Sprintf("  %d x %s", line.Quantity, formatQAR(line.UnitPrice))
		fmt.Fprintf(&b, "%s%s\n", left, pad(amount, receiptWidth-len(left)))
	}

	b.WriteString(strings.Repeat("-", receiptWidth) + "\n")
	writeTotalLine(&b, "Subtotal", sale.Subtotal)
	writeTotalLine(&b, fmt.Sprintf("Tax %.0f%%", sale.TaxRate*100), sale.TaxAmount)
	writeTotalLine(&b, "TOTAL", sale.Total)
	switch sale.PaymentMethod {
	case PaymentCash:
		writeTotalLine(&b, "Cash", sale.CashReceived)
		writeTotalLine(&b, "Change", sale.ChangeDue)
	case PaymentMobile:
		writeTotalLine(&b, "Mobile", sale.Total)
	case PaymentSplit:
		if sale.Breakdown != nil {
			if sale.Breakdown.Cash > 0 {
				writeTotalLine(&b, "Cash", sale.Breakdown.Cash)
			}
			if sale.Breakdown.Card > 0 {
				writeTotalLine(&b, "Card", sale.Breakdown.Card)
			}
			if sale.Breakdown.Mobile > 0 {
				writeTotalLine(&b, "Mobile", sale.Breakdown.Mobile)
			}
		}
	default:
		writeTotalLine(&b, "Card", sale.Total)
	}
	b.WriteString(strings.Repeat("-", receiptWidth) + "\n")
	writeCentered(&b, "Thank you")
	return b.String()
}

func formatQAR(value float64) string {
	return receiptPrinter.Sprintf("%v", currency.Symbol(currency.MustParseISO("QAR").Amount(value)))
}

func writeTotalLine(b *strings.Builder, label string, value float64) {
	amount := formatQAR(value)
	fmt.Fprintf(b, "%s%s\n", label, pad(amount, receiptWidth-len(label)))
}

func writeCentered(b *strings.Builder, text string) {
	if len(text) >= receiptWidth {
		b.WriteString(text + "\n")
		return
	}
	b.WriteString(strings.Repeat(" ", (receiptWidth-len(text))/2) + text + "\n")
}

func pad(text string, width int) string {
	if len(text) >= width {
		return text
	}
	return strings.Repeat(" ", width-len(text)) + text
}

func truncate(text string, width int) string {
	if len(text) <= width {
		return text
	}
	return text[:width-1] + "…"
}
