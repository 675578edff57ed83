package core

import (
	"context"
	"fmt"
	"strconv"

	"stockroom/pkg/domain"
)

// NewStockFloorRule returns the rule rejecting changes that leave an item with
// negative stock. An item already below zero may still be raised.
func NewStockFloorRule() domain.Rule {
	return stockFloorRule{}
}

type stockFloorRule struct{}

func (stockFloorRule) Name() string { return "stock_floor" }

func (stockFloorRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		item, ok := change.After.(domain.StockItem)
		if !ok || change.Entity != domain.EntityStockItem || item.Stock >= 0 {
			continue
		}
		if before, ok := change.Before.(domain.StockItem); ok && item.Stock > before.Stock {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "stock_floor",
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("%s size %s would have negative stock %d", item.Name, item.Size, item.Stock),
			Entity:   domain.EntityStockItem,
			EntityID: strconv.FormatInt(item.ID, 10),
		})
	}
	return res, nil
}
