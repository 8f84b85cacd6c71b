package core

import "farmgraph/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Base               = domain.Base
	Asset              = domain.Asset
	Location           = domain.Location
	Log                = domain.Log
	Quantity           = domain.Quantity
	RoleLink           = domain.RoleLink
	Role               = domain.Role
	Predicate          = domain.Predicate
	Fact               = domain.Fact
	FactObject         = domain.FactObject
	FactBatch          = domain.FactBatch
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	Rule               = domain.Rule
	RulesEngine        = domain.RulesEngine
	Transaction        = domain.Transaction
	TransactionView    = domain.TransactionView
	PersistentStore    = domain.PersistentStore
)

const (
	EntityAsset     = domain.EntityAsset
	EntityLocation  = domain.EntityLocation
	EntityLog       = domain.EntityLog
	EntityRoleLink  = domain.EntityRoleLink
	EntityPredicate = domain.EntityPredicate
	EntityFact      = domain.EntityFact
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
