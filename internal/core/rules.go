package core

import (
	"fmt"
	"strings"

	"stockroom/pkg/domain"
)

// CategoryPolicy selects how strictly item categories must reference a known category.
type CategoryPolicy string

const (
	// CategoryPolicyWarn reports items filed under unknown categories but lets them commit.
	CategoryPolicyWarn CategoryPolicy = "warn"
	// CategoryPolicyBlock rejects transactions that file items under unknown categories.
	CategoryPolicyBlock CategoryPolicy = "block"
)

// ParseCategoryPolicy maps a configuration value onto a CategoryPolicy. Empty selects warn.
func ParseCategoryPolicy(raw string) (CategoryPolicy, error) {
	switch CategoryPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", CategoryPolicyWarn:
		return CategoryPolicyWarn, nil
	case CategoryPolicyBlock:
		return CategoryPolicyBlock, nil
	default:
		return "", fmt.Errorf("unknown category policy %q", raw)
	}
}

func (p CategoryPolicy) severity() Severity {
	if p == CategoryPolicyBlock {
		return SeverityBlock
	}
	return SeverityWarn
}

// NewRulesEngine constructs an empty engine instance.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in inventory invariants.
func NewDefaultRulesEngine(policy CategoryPolicy) *RulesEngine {
	engine := NewRulesEngine()
	for _, rule := range defaultRules(policy) {
		engine.Register(rule)
	}
	return engine
}

func defaultRules(policy CategoryPolicy) []Rule {
	return []Rule{
		NewVariantUniquenessRule(),
		NewStockFloorRule(),
		NewCategoryReferenceRule(policy),
	}
}
