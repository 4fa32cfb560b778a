package service

import (
	"github.com/Kartekeya-Sharma/Contract-Guard/model"
)

// Aggregate derives the dashboard statistics for clauses. Types are reported
// in first-seen order and every risk bucket is present.
func Aggregate(clauses []model.Clause) model.AggregateView {
	view := model.AggregateView{
		CountsByType: []model.TypeCount{},
		CountsByRisk: make(map[model.RiskLevel]int, len(model.RiskLevels)),
		Total:        len(clauses),
	}
	for _, level := range model.RiskLevels {
		view.CountsByRisk[level] = 0
	}

	typeIndex := make(map[model.ClauseType]int)
	for _, c := range clauses {
		risk := c.Risk
		if _, ok := view.CountsByRisk[risk]; !ok {
			risk = model.RiskUnknown
		}
		view.CountsByRisk[risk]++

		clauseType := c.Type
		if clauseType == "" {
			clauseType = model.TypeOther
		}
		if i, ok := typeIndex[clauseType]; ok {
			view.CountsByType[i].Count++
			continue
		}
		typeIndex[clauseType] = len(view.CountsByType)
		view.CountsByType = append(view.CountsByType, model.TypeCount{Type: clauseType, Count: 1})
	}

	view.HighRisk = view.CountsByRisk[model.RiskHigh]
	view.UniqueTypes = len(view.CountsByType)
	return view
}
