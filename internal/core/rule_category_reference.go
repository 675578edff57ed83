package core

import (
	"context"
	"fmt"
	"strconv"

	"stockroom/pkg/domain"
)

// NewCategoryReferenceRule returns the rule checking that newly created items
// name a known category. Severity follows policy.
func NewCategoryReferenceRule(policy CategoryPolicy) domain.Rule {
	return categoryReferenceRule{severity: policy.severity()}
}

type categoryReferenceRule struct {
	severity domain.Severity
}

func (categoryReferenceRule) Name() string { return "category_reference" }

func (r categoryReferenceRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityStockItem || change.Action != domain.ActionCreate {
			continue
		}
		item, ok := change.After.(domain.StockItem)
		if !ok || view.HasCategory(item.Category) {
			continue
		}
		if _, still := view.FindItem(item.ID); !still {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "category_reference",
			Severity: r.severity,
			Message:  fmt.Sprintf("%s size %s is filed under unknown category %q", item.Name, item.Size, item.Category),
			Entity:   domain.EntityStockItem,
			EntityID: strconv.FormatInt(item.ID, 10),
		})
	}
	return res, nil
}
