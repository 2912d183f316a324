package backtest

import (
	"hypothesis-lab/internal/domain"
)

// JSON-RPC method names.
const (
	MethodGenerate  = "generate"
	MethodRunSingle = "runSingle"
)

// documentPayload is the wire form of a strategy variant.
type documentPayload struct {
	ID          string                  `json:"id"`
	Name        string                  `json:"name,omitempty"`
	Hypothesis  string                  `json:"hypothesis,omitempty"`
	Instruments []string                `json:"instruments,omitempty"`
	Timeframe   string                  `json:"timeframe,omitempty"`
	Rules       map[string]string       `json:"rules,omitempty"`
	Parameters  map[string]domain.Value `json:"parameters"`
}

// runPayload is the wire form of a runSingle request.
type runPayload struct {
	Code       string `json:"code"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	StrategyID string `json:"strategy_id"`
}

func toDocumentPayload(doc domain.StrategyDocument) documentPayload {
	return documentPayload{
		ID:          doc.ID,
		Name:        doc.Name,
		Hypothesis:  doc.Hypothesis,
		Instruments: doc.Instruments,
		Timeframe:   doc.Timeframe,
		Rules:       doc.Rules,
		Parameters:  doc.EffectiveValues(),
	}
}

func (p documentPayload) toDocument() domain.StrategyDocument {
	return domain.StrategyDocument{
		ID:          p.ID,
		Name:        p.Name,
		Hypothesis:  p.Hypothesis,
		Instruments: p.Instruments,
		Timeframe:   p.Timeframe,
		Rules:       p.Rules,
		Assigned:    domain.Assignment(p.Parameters),
	}
}
