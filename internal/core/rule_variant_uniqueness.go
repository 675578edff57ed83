package core

import (
	"context"
	"fmt"
	"strconv"

	"stockroom/pkg/domain"
)

// NewVariantUniquenessRule returns the rule rejecting two items with the same
// product name and size, compared case-insensitively. Only items whose variant
// key was introduced by the transaction are judged, so duplicates already
// present in loaded data do not block unrelated changes.
func NewVariantUniquenessRule() domain.Rule {
	return variantUniquenessRule{}
}

type variantUniquenessRule struct{}

func (variantUniquenessRule) Name() string { return "variant_uniqueness" }

func (variantUniquenessRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	introduced := introducedVariants(changes)
	if len(introduced) == 0 {
		return domain.Result{}, nil
	}
	byKey := make(map[string][]domain.StockItem)
	for _, item := range view.ListItems() {
		key := item.VariantKey()
		byKey[key] = append(byKey[key], item)
	}
	res := domain.Result{}
	for _, id := range introduced {
		item, ok := view.FindItem(id)
		if !ok {
			continue
		}
		for _, other := range byKey[item.VariantKey()] {
			if other.ID == item.ID {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "variant_uniqueness",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("%s size %s already exists as item %d", item.Name, item.Size, other.ID),
				Entity:   domain.EntityStockItem,
				EntityID: strconv.FormatInt(item.ID, 10),
			})
			break
		}
	}
	return res, nil
}

// introducedVariants lists the ids of items created by changes or whose
// name or size changed, in change order.
func introducedVariants(changes []domain.Change) []int64 {
	var ids []int64
	seen := make(map[int64]bool)
	for _, c := range changes {
		if c.Entity != domain.EntityStockItem || c.Action == domain.ActionDelete {
			continue
		}
		after, ok := c.After.(domain.StockItem)
		if !ok || seen[after.ID] {
			continue
		}
		if before, ok := c.Before.(domain.StockItem); ok && before.VariantKey() == after.VariantKey() {
			continue
		}
		seen[after.ID] = true
		ids = append(ids, after.ID)
	}
	return ids
}
