package core

import "stockroom/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	StockItem          = domain.StockItem
	HistoryEntry       = domain.HistoryEntry
	HistoryAction      = domain.HistoryAction
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	Rule               = domain.Rule
	RuleView           = domain.RuleView
	RulesEngine        = domain.RulesEngine
)

const (
	EntityStockItem = domain.EntityStockItem
	EntityCategory  = domain.EntityCategory
	EntityHistory   = domain.EntityHistory
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)
