package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// recordsFetched tracks records pulled from upstream streams per source.
	recordsFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_records_fetched_total",
		Help: "Total records fetched from upstream sources",
	}, []string{"source"})

	// recordsPersisted tracks records fully written per source.
	recordsPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_records_persisted_total",
		Help: "Total records persisted through the canonical store",
	}, []string{"source"})

	// recordsErrored tracks per-record failures per source and error kind.
	recordsErrored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_records_errored_total",
		Help: "Total records that failed during parse or persist",
	}, []string{"source", "kind"})

	// runsCompleted tracks finished syncs by final status.
	runsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_runs_total",
		Help: "Total ingestion runs by final sync status",
	}, []string{"source", "status"})
)
