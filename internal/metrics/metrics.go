package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncRuns counts reconcile attempts by outcome (refreshed, fallback).
	SyncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prayerlog_sync_runs_total",
		Help: "Reconcile runs against the sheet endpoint, by outcome.",
	}, []string{"outcome"})

	// RecordsWritten counts attendance records accepted locally.
	RecordsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prayerlog_attendance_records_total",
		Help: "Attendance records accepted into the local cache.",
	})

	// OutboxDeliveries counts worker delivery attempts by outcome
	// (delivered, retried, dropped).
	OutboxDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prayerlog_outbox_deliveries_total",
		Help: "Outbox delivery attempts against the sheet endpoint, by outcome.",
	}, []string{"outcome"})
)
