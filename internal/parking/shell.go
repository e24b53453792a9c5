package parking

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-shellwords"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultHistoryLimit = 50
	entryClockLayout    = "03:04 PM"
)

type Shell struct {
	ledger    *InstrumentedLedger
	telemetry *TelemetryProvider
	scanner   *bufio.Scanner
	out       io.Writer
	reportDir string
}

func NewShell(ledger *InstrumentedLedger, telemetry *TelemetryProvider, in io.Reader, out io.Writer, reportDir string) *Shell {
	return &Shell{
		ledger:    ledger,
		telemetry: telemetry,
		scanner:   bufio.NewScanner(in),
		out:       out,
		reportDir: reportDir,
	}
}

// Run reads commands until EOF, "exit", or ctx is cancelled.
func (s *Shell) Run(ctx context.Context) {
	tracer := s.telemetry.Tracer()
	ctx, span := tracer.Start(ctx, "shell.run")
	defer span.End()

	span.AddEvent("shell_started")

	for ctx.Err() == nil {
		if !s.scanner.Scan() {
			break
		}

		input := strings.TrimSpace(s.scanner.Text())
		if input == "" {
			continue
		}

		cmdCtx, cmdSpan := tracer.Start(ctx, "shell.process_command",
			trace.WithAttributes(attribute.String("command.input", input)))
		quit := s.processCommand(cmdCtx, input)
		cmdSpan.End()

		if quit {
			break
		}
	}

	span.AddEvent("shell_ended")
}

func (s *Shell) processCommand(ctx context.Context, input string) bool {
	parts, err := shellwords.Parse(input)
	if err != nil {
		s.printf("Invalid input: %s\n", err)
		return false
	}
	if len(parts) == 0 {
		return false
	}

	command := strings.ToLower(parts[0])
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("command.name", command))

	switch command {
	case "park":
		s.handlePark(ctx, parts)
	case "leave":
		s.handleLeave(ctx, parts)
	case "reserve":
		s.handleReserve(ctx, parts)
	case "unreserve":
		s.handleUnreserve(ctx, parts)
	case "search":
		s.handleSearch(ctx, parts)
	case "status":
		s.handleStatus(ctx)
	case "map":
		s.handleMap(ctx)
	case "history":
		s.handleHistory(ctx, parts)
	case "stats":
		s.handleStats(ctx)
	case "export":
		s.handleExport(ctx)
	case "clear":
		s.handleClear(ctx, parts)
	case "help":
		s.printHelp()
	case "exit", "quit":
		return true
	default:
		trace.SpanFromContext(ctx).AddEvent("unknown_command")
		s.printf("Unknown command: %s\n", command)
	}
	return false
}

func (s *Shell) handlePark(ctx context.Context, parts []string) {
	if len(parts) < 4 || len(parts) > 5 {
		s.printf("Usage: park <vehicle_number> <type> <owner> [phone]\n")
		return
	}

	class, err := ParseVehicleClass(parts[2])
	if err != nil {
		s.printf("Error: vehicle type must be one of Car, Bike, Truck, SUV\n")
		return
	}

	var phone string
	if len(parts) == 5 {
		phone = parts[4]
	}

	session, err := s.ledger.Allocate(ctx, parts[1], class, parts[3], phone)
	if err != nil {
		s.printError(err)
		return
	}

	s.printf("Vehicle %s parked at spot %d\n", session.Vehicle.Plate, session.Spot)
	s.printf("Owner: %s\n", session.Vehicle.Owner)
	s.printf("Entry Time: %s\n", session.EntryTime.Format(entryClockLayout))
}

func (s *Shell) handleLeave(ctx context.Context, parts []string) {
	if len(parts) != 2 {
		s.printf("Usage: leave <spot>\n")
		return
	}

	spot, ok := s.parseSpot(parts[1])
	if !ok {
		return
	}

	tx, err := s.ledger.Release(ctx, spot)
	if err != nil {
		s.printError(err)
		return
	}

	s.printf("Payment Receipt\n")
	s.printf("Vehicle: %s\n", tx.Plate)
	s.printf("Owner: %s\n", tx.Owner)
	s.printf("Duration: %.2f hours\n", tx.DurationHours)
	s.printf("Total Fee: %s\n", FormatMoney(tx.Fee))
	s.printf("Spot %d is free\n", spot)
}

func (s *Shell) handleReserve(ctx context.Context, parts []string) {
	if len(parts) != 2 {
		s.printf("Usage: reserve <spot>\n")
		return
	}

	spot, ok := s.parseSpot(parts[1])
	if !ok {
		return
	}

	already, err := s.ledger.Reserve(ctx, spot)
	if err != nil {
		s.printError(err)
		return
	}
	if already {
		s.printf("Spot %d is already reserved\n", spot)
		return
	}
	s.printf("Spot %d has been reserved\n", spot)
}

func (s *Shell) handleUnreserve(ctx context.Context, parts []string) {
	if len(parts) != 2 {
		s.printf("Usage: unreserve <spot>\n")
		return
	}

	spot, ok := s.parseSpot(parts[1])
	if !ok {
		return
	}

	if err := s.ledger.CancelReservation(ctx, spot); err != nil {
		s.printError(err)
		return
	}
	s.printf("Reservation on spot %d cancelled\n", spot)
}

func (s *Shell) handleSearch(ctx context.Context, parts []string) {
	if len(parts) != 2 {
		s.printf("Usage: search <vehicle_number>\n")
		return
	}

	session, err := s.ledger.FindByPlate(ctx, parts[1])
	if errors.Is(err, ErrNotFound) {
		s.printf("Vehicle %s is not currently parked\n", NormalizePlate(parts[1]))
		return
	}
	if err != nil {
		s.printError(err)
		return
	}

	phone := session.Vehicle.Phone
	if phone == "" {
		phone = "N/A"
	}
	s.printf("Vehicle: %s\n", session.Vehicle.Plate)
	s.printf("Spot: %d\n", session.Spot)
	s.printf("Owner: %s\n", session.Vehicle.Owner)
	s.printf("Phone: %s\n", phone)
	s.printf("Type: %s\n", session.Vehicle.Class)
	s.printf("Entry: %s\n", session.EntryTime.Format(entryClockLayout))
}

func (s *Shell) handleStatus(ctx context.Context) {
	sessions := s.ledger.Sessions(ctx)
	if len(sessions) == 0 {
		s.printf("Parking lot is empty\n")
		return
	}

	s.printf("Spot\tVehicle No.\tType\tOwner\tPhone\tEntry Time\n")
	for _, session := range sessions {
		phone := session.Vehicle.Phone
		if phone == "" {
			phone = "N/A"
		}
		s.printf("%d\t%s\t%s\t%s\t%s\t%s\n",
			session.Spot,
			session.Vehicle.Plate,
			session.Vehicle.Class,
			session.Vehicle.Owner,
			phone,
			session.EntryTime.Format(entryClockLayout),
		)
	}
}

func (s *Shell) handleMap(ctx context.Context) {
	const perRow = 10

	var row []string
	for _, slot := range s.ledger.Slots(ctx) {
		mark := "."
		switch slot.State {
		case Occupied:
			mark = "X"
		case Reserved:
			mark = "R"
		}
		row = append(row, fmt.Sprintf("%3d%s", slot.Number, mark))
		if len(row) == perRow {
			s.printf("%s\n", strings.Join(row, " "))
			row = row[:0]
		}
	}
	if len(row) > 0 {
		s.printf("%s\n", strings.Join(row, " "))
	}
	s.printf(". available  X occupied  R reserved\n")
}

func (s *Shell) handleHistory(ctx context.Context, parts []string) {
	limit := defaultHistoryLimit
	if len(parts) == 2 {
		n, err := strconv.Atoi(parts[1])
		if err != nil || n <= 0 {
			s.printf("Usage: history [count]\n")
			return
		}
		limit = n
	}

	records := s.ledger.RecentHistory(ctx, limit)
	if len(records) == 0 {
		s.printf("No parking history\n")
		return
	}

	s.printf("Vehicle No.\tType\tOwner\tEntry Time\tExit Time\tDuration (hrs)\tFee\n")
	for _, tx := range records {
		s.printf("%s\t%s\t%s\t%s\t%s\t%.2f\t%s\n",
			tx.Plate,
			tx.Class,
			tx.Owner,
			tx.EntryTime.Format(reportTimeLayout),
			tx.ExitTime.Format(reportTimeLayout),
			tx.DurationHours,
			FormatMoney(tx.Fee),
		)
	}
}

func (s *Shell) handleStats(ctx context.Context) {
	stats := s.ledger.Aggregate(ctx)

	s.printf("Occupied: %d  Available: %d  Reserved: %d\n", stats.Occupied, stats.Available, stats.Reserved)
	s.printf("Today's Revenue: %s\n", FormatMoney(stats.TodayRevenue))
	s.printf("Occupancy Rate: %.1f%%\n", stats.OccupancyRate*100)

	if len(stats.CurrentByClass) > 0 {
		s.printf("Current Vehicle Types:\n")
		for _, c := range stats.CurrentByClass {
			s.printf("  %s: %d\n", c.Class, c.Count)
		}
	}

	if stats.Transactions == 0 {
		return
	}
	s.printf("Total Revenue: %s\n", FormatMoney(stats.TotalRevenue))
	s.printf("Total Transactions: %d\n", stats.Transactions)
	s.printf("Average Parking Duration: %.2f hours\n", stats.AverageDuration)
	s.printf("Most Parked Vehicle Types:\n")
	for _, c := range stats.HistoricalByClass {
		s.printf("  %s: %d times\n", c.Class, c.Count)
	}
}

func (s *Shell) handleExport(ctx context.Context) {
	path, err := s.ledger.ExportReport(ctx, s.reportDir)
	if err != nil {
		s.printError(err)
		return
	}
	s.printf("Report exported to %s\n", path)
}

func (s *Shell) handleClear(ctx context.Context, parts []string) {
	if len(parts) != 2 || parts[1] != "confirm" {
		s.printf("This will erase all vehicles, reservations and history and cannot be undone.\n")
		s.printf("Run 'clear confirm' to proceed.\n")
		return
	}

	s.ledger.ClearAll(ctx)
	s.printf("All data has been cleared\n")
}

func (s *Shell) printHelp() {
	s.printf(`Commands:
  park <vehicle_number> <type> <owner> [phone]
  leave <spot>
  reserve <spot>
  unreserve <spot>
  search <vehicle_number>
  status
  map
  history [count]
  stats
  export
  clear confirm
  exit
`)
}

func (s *Shell) parseSpot(arg string) (int, bool) {
	spot, err := strconv.Atoi(arg)
	if err != nil {
		s.printf("Please enter a valid spot number\n")
		return 0, false
	}
	return spot, true
}

func (s *Shell) printError(err error) {
	s.printf("Error: %s\n", err)
}

func (s *Shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}
