package internal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

var ValidationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tablekit_validation_errors_total",
	Help: "The number of field validation failures",
}, []string{"table"})

var StrippedColumns = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tablekit_stripped_columns_total",
	Help: "The number of columns removed from a model or mutation by column authorization",
}, []string{"table"})

var UnknownColumns = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tablekit_unknown_columns_total",
	Help: "The number of undeclared columns found in incoming models",
}, []string{"table"})

var QueryCompositions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tablekit_query_compositions_total",
	Help: "The number of composed queries by kind",
}, []string{"table", "kind"})

var StoreQueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "tablekit_store_query_duration_seconds",
	Help:    "The duration of store queries",
	Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
})

// Stats is a snapshot of the counters.
type Stats struct {
	ValidationErrors  float64 `json:"validationErrors"`
	StrippedColumns   float64 `json:"strippedColumns"`
	UnknownColumns    float64 `json:"unknownColumns"`
	QueryCompositions float64 `json:"queryCompositions"`
	StoreQueries      float64 `json:"storeQueries"`
}

// collect calls the function for each metric associated with the Collector
func collect(col prometheus.Collector, do func(*dto.Metric)) {
	c := make(chan prometheus.Metric)
	go func(c chan prometheus.Metric) {
		col.Collect(c)
		close(c)
	}(c)
	for x := range c { // eg range across distinct label vector values
		m := dto.Metric{}
		_ = x.Write(&m)
		do(&m)
	}
}

// MetricValue returns the sum of the Counter metrics associated with the Collector
// e.g. the metric for a non-vector, or the sum of the metrics for vector labels.
// If the metric is a Histogram then number of samples is used.
func MetricValue(col prometheus.Collector) float64 {
	var total float64
	collect(col, func(m *dto.Metric) {
		if h := m.GetHistogram(); h != nil {
			total += float64(h.GetSampleCount())
		} else {
			total += m.GetCounter().GetValue()
		}
	})
	return total
}

// GetStats returns a snapshot of the counters.
func GetStats() Stats {
	return Stats{
		ValidationErrors:  MetricValue(ValidationErrors),
		StrippedColumns:   MetricValue(StrippedColumns),
		UnknownColumns:    MetricValue(UnknownColumns),
		QueryCompositions: MetricValue(QueryCompositions),
		StoreQueries:      MetricValue(StoreQueryDuration),
	}
}
