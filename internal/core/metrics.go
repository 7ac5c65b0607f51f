package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики конвейера риск-анализа
// ============================================================
//
// Использование:
// - Grafana дашборды для наблюдения за здоровьем конвейера
// - Alertmanager для алертов на рост ошибок фидов

// FetchRequests - количество запросов к историческим фидам биржи
var FetchRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "riskguard",
		Subsystem: "fetcher",
		Name:      "requests_total",
		Help:      "Total number of feed requests issued to the exchange",
	},
	[]string{"endpoint"},
)

// FetchFailures - количество отказов фидов (по endpoint'ам)
var FetchFailures = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "riskguard",
		Subsystem: "fetcher",
		Name:      "failures_total",
		Help:      "Total number of failed feed requests",
	},
	[]string{"endpoint"},
)

// FetchChunkDuration - длительность обработки одного чанка диапазона
var FetchChunkDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "riskguard",
		Subsystem: "fetcher",
		Name:      "chunk_duration_seconds",
		Help:      "Time to fetch all three feeds for one chunk",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60},
	},
)

// ReconciledTrades - количество сделок, собранных согласованием
var ReconciledTrades = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "riskguard",
		Subsystem: "reconciler",
		Name:      "trades_total",
		Help:      "Total number of canonical trades produced",
	},
)

// DroppedZeroPnl - сделки, отброшенные из-за нулевого PNL (не согласованы)
var DroppedZeroPnl = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "riskguard",
		Subsystem: "reconciler",
		Name:      "dropped_zero_pnl_total",
		Help:      "Trades dropped because realized PnL could not be attributed",
	},
)

// AnalysisRuns - полные циклы анализа (fetch → reconcile → evaluate)
var AnalysisRuns = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "riskguard",
		Subsystem: "engine",
		Name:      "analysis_runs_total",
		Help:      "Full analysis runs by outcome",
	},
	[]string{"outcome"}, // ok | error | skipped
)

// AnalysisDuration - длительность полного цикла анализа
var AnalysisDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "riskguard",
		Subsystem: "engine",
		Name:      "analysis_duration_seconds",
		Help:      "Duration of one full analysis run",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
	},
)

// RestrictionsTriggered - срабатывания жёсткой блокировки торговли
var RestrictionsTriggered = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "riskguard",
		Subsystem: "risk",
		Name:      "restrictions_total",
		Help:      "Hard trading restrictions triggered",
	},
)

// TierChanges - смены тира по направлению
var TierChanges = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "riskguard",
		Subsystem: "risk",
		Name:      "tier_changes_total",
		Help:      "Tier changes by direction",
	},
	[]string{"direction"}, // upgrade | downgrade | forced
)

// AlertsEmitted - поведенческие алерты по типам
var AlertsEmitted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "riskguard",
		Subsystem: "risk",
		Name:      "behavior_alerts_total",
		Help:      "Behavior alerts emitted by type",
	},
	[]string{"type"},
)
