package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BudgetStatus string

const (
	BudgetPending  BudgetStatus = "pending"
	BudgetApproved BudgetStatus = "approved"
	BudgetRejected BudgetStatus = "rejected"
)

func (s BudgetStatus) Valid() bool {
	switch s {
	case BudgetPending, BudgetApproved, BudgetRejected:
		return true
	}
	return false
}

// CanDecide reports whether a request in status s still accepts a decision.
// approved and rejected are terminal.
func (s BudgetStatus) CanDecide() bool {
	return s == BudgetPending
}

// BudgetRequest asks the vice-president to fund an approved proposal.
type BudgetRequest struct {
	ID              string          `gorm:"primaryKey;column:id;type:char(36)" json:"id"`
	ProposalID      string          `gorm:"column:proposal_id;type:char(36);index" json:"proposal_id"`
	RequestedAmount decimal.Decimal `gorm:"column:requested_amount;type:decimal(14,2)" json:"requested_amount"`
	Justification   string          `gorm:"column:justification;type:text" json:"justification"`
	Status          BudgetStatus    `gorm:"column:status;type:varchar(16);index" json:"status"`
	RequestedBy     string          `gorm:"column:requested_by;type:char(36)" json:"requested_by"`
	ApprovedBy      *string         `gorm:"column:approved_by;type:char(36)" json:"approved_by"`
	RequestedAt     time.Time       `gorm:"column:requested_at" json:"requested_at"`
	ReviewedAt      *time.Time      `gorm:"column:reviewed_at" json:"reviewed_at"`
}

func (BudgetRequest) TableName() string {
	return "budget_requests"
}
