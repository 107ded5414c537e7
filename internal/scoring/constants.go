package scoring

// PercentileLadder is the fixed set of percentiles reported by distributional
// indicators, highest first.
var PercentileLadder = []float64{100, 99, 95, 90, 80, 50, 20, 10, 5, 1, 0}

const (
	HeadlineNovelty         = "novelty"
	HeadlineConventionality = "conventionality"
	HeadlinePairs           = "pairs"
)
