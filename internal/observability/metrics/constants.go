// Package metrics provides the Prometheus collectors for pipeline runs and
// raster sources.
package metrics

// Pipeline stages used as the "stage" label.
const (
	StageLoadAOI    = "load_aoi"
	StageFetch      = "fetch"
	StageReclassify = "reclassify"
	StageExport     = "export"
	StageAnimate    = "animate"
	StagePublish    = "publish"
	StageTrend      = "trend"
	StageWholeState = "state"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
	OutcomeSkipped = "skipped"
)

// stageDurationBuckets cover sub-second AOI loads up to hour-long fetches.
var stageDurationBuckets = []float64{0.05, 0.25, 1, 5, 15, 60, 300, 900, 3600}
