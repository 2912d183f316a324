package reporting

import (
	"sort"
	"time"

	"hypothesis-lab/internal/decision"
	"hypothesis-lab/internal/domain"
)

// Report bundles everything rendered for one Phase 3 run.
type Report struct {
	GeneratedAt time.Time

	WalkForward *domain.WalkForwardResult
	Result      *domain.Phase3Result
	Assessment  *decision.Result // score breakdown; nil when re-rendered from a document

	DataQuality     DataQualitySection
	Reproducibility ReproducibilityMetadata
}

// DataQualitySection contains data sufficiency checks.
type DataQualitySection struct {
	SufficiencyChecks []SufficiencyCheckRow
	AllChecksPassed   bool
}

// SufficiencyCheckRow represents one sufficiency criterion.
type SufficiencyCheckRow struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// ReproducibilityMetadata describes how to reproduce a report.
type ReproducibilityMetadata struct {
	ReportTimestamp  time.Time
	GeneratorVersion string
	ConfigHash       string // short hash of strategy document and config
	Seed             int64
	ReplayCommand    string
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
