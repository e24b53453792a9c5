package parking

import (
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	CurrencySymbol = "₹"

	reportFilePrefix = "parking_report_"
	reportTimeLayout = "2006-01-02 03:04 PM"
)

var moneyPrinter = message.NewPrinter(language.English)

// FormatMoney renders an amount with two decimals and thousands separators.
func FormatMoney(amount float64) string {
	return CurrencySymbol + moneyPrinter.Sprintf("%.2f", amount)
}

func ReportFileName(t time.Time) string {
	return reportFilePrefix + t.Format("20060102_150405") + ".txt"
}

// WriteReport renders the plain-text status report for the current ledger state.
func (l *Ledger) WriteReport(w io.Writer) error {
	stats := l.Aggregate()
	rule := strings.Repeat("=", 60)
	thin := strings.Repeat("-", 60)

	var b strings.Builder
	fmt.Fprintf(&b, "PARKING MANAGEMENT SYSTEM - REPORT\n")
	fmt.Fprintf(&b, "Generated: %s\n", l.now().Format(reportTimeLayout))
	fmt.Fprintf(&b, "%s\n\n", rule)

	fmt.Fprintf(&b, "CURRENT STATUS:\n")
	fmt.Fprintf(&b, "Total Spots: %d\n", stats.TotalSpots)
	fmt.Fprintf(&b, "Occupied: %d\n", stats.Occupied)
	fmt.Fprintf(&b, "Available: %d\n", stats.Available)
	fmt.Fprintf(&b, "Reserved: %d\n", stats.Reserved)
	fmt.Fprintf(&b, "Occupancy Rate: %.1f%%\n\n", stats.OccupancyRate*100)

	fmt.Fprintf(&b, "Today's Revenue: %s\n", FormatMoney(stats.TodayRevenue))
	fmt.Fprintf(&b, "Total Revenue: %s\n", FormatMoney(stats.TotalRevenue))
	fmt.Fprintf(&b, "Total Transactions: %d\n", stats.Transactions)
	if stats.Transactions > 0 {
		fmt.Fprintf(&b, "Average Parking Duration: %.2f hours\n", stats.AverageDuration)
	}
	b.WriteString("\n")

	if len(stats.HistoricalByClass) > 0 {
		fmt.Fprintf(&b, "MOST PARKED VEHICLE TYPES:\n")
		for _, c := range stats.HistoricalByClass {
			fmt.Fprintf(&b, "  %s: %d times\n", c.Class, c.Count)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "CURRENTLY PARKED VEHICLES:\n")
	fmt.Fprintf(&b, "%s\n", thin)
	for _, s := range l.Sessions() {
		fmt.Fprintf(&b, "Spot %d: %s (%s) - %s\n", s.Spot, s.Vehicle.Plate, s.Vehicle.Class, s.Vehicle.Owner)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
