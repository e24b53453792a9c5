package server

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"parking-ledger/internal/parking"
)

// LedgerCollector exposes the ledger's current aggregate on every scrape.
type LedgerCollector struct {
	ledger *parking.InstrumentedLedger

	spots        *prometheus.Desc
	occupancy    *prometheus.Desc
	todayRevenue *prometheus.Desc
	totalRevenue *prometheus.Desc
	transactions *prometheus.Desc
	parked       *prometheus.Desc
}

func NewLedgerCollector(ledger *parking.InstrumentedLedger) *LedgerCollector {
	return &LedgerCollector{
		ledger: ledger,
		spots: prometheus.NewDesc("parking_spots",
			"Number of spots by state.", []string{"state"}, nil),
		occupancy: prometheus.NewDesc("parking_occupancy_ratio",
			"Occupied spots divided by total spots.", nil, nil),
		todayRevenue: prometheus.NewDesc("parking_today_revenue",
			"Fees billed for stays that ended today.", nil, nil),
		totalRevenue: prometheus.NewDesc("parking_history_revenue",
			"Fees billed across the whole history.", nil, nil),
		transactions: prometheus.NewDesc("parking_transactions",
			"Completed stays in the history.", nil, nil),
		parked: prometheus.NewDesc("parking_vehicles_parked",
			"Currently parked vehicles by type.", []string{"vehicle_type"}, nil),
	}
}

func (c *LedgerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.spots
	ch <- c.occupancy
	ch <- c.todayRevenue
	ch <- c.totalRevenue
	ch <- c.transactions
	ch <- c.parked
}

func (c *LedgerCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.ledger.Aggregate(context.Background())

	ch <- prometheus.MustNewConstMetric(c.spots, prometheus.GaugeValue, float64(stats.Occupied), parking.Occupied.String())
	ch <- prometheus.MustNewConstMetric(c.spots, prometheus.GaugeValue, float64(stats.Reserved), parking.Reserved.String())
	ch <- prometheus.MustNewConstMetric(c.spots, prometheus.GaugeValue, float64(stats.Available), parking.Free.String())
	ch <- prometheus.MustNewConstMetric(c.occupancy, prometheus.GaugeValue, stats.OccupancyRate)
	ch <- prometheus.MustNewConstMetric(c.todayRevenue, prometheus.GaugeValue, stats.TodayRevenue)
	ch <- prometheus.MustNewConstMetric(c.totalRevenue, prometheus.GaugeValue, stats.TotalRevenue)
	ch <- prometheus.MustNewConstMetric(c.transactions, prometheus.GaugeValue, float64(stats.Transactions))

	for _, class := range parking.VehicleClasses {
		var count int
		for _, current := range stats.CurrentByClass {
			if current.Class == class {
				count = current.Count
			}
		}
		ch <- prometheus.MustNewConstMetric(c.parked, prometheus.GaugeValue, float64(count), string(class))
	}
}
