package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProposalStatus string

const (
	ProposalSubmitted       ProposalStatus = "submitted"
	ProposalUnderReview     ProposalStatus = "under_review"
	ProposalApproved        ProposalStatus = "approved"
	ProposalRejected        ProposalStatus = "rejected"
	ProposalBudgetRequested ProposalStatus = "budget_requested"
	ProposalBudgetApproved  ProposalStatus = "budget_approved"
)

// ProposalStatuses lists the lifecycle states in order.
var ProposalStatuses = []ProposalStatus{
	ProposalSubmitted,
	ProposalUnderReview,
	ProposalApproved,
	ProposalRejected,
	ProposalBudgetRequested,
	ProposalBudgetApproved,
}

func (s ProposalStatus) Valid() bool {
	for _, known := range ProposalStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further proposal transition exists from s.
// budget_requested is not terminal even though a rejected budget leaves it there.
func (s ProposalStatus) Terminal() bool {
	return s == ProposalRejected || s == ProposalBudgetApproved
}

// proposalTransitions is the complete set of legal proposal moves.
// under_review -> under_review covers assigning an additional reviewer.
var proposalTransitions = map[ProposalStatus][]ProposalStatus{
	ProposalSubmitted:       {ProposalUnderReview},
	ProposalUnderReview:     {ProposalUnderReview, ProposalApproved, ProposalRejected},
	ProposalApproved:        {ProposalBudgetRequested},
	ProposalBudgetRequested: {ProposalBudgetApproved},
}

// CanTransition reports whether a proposal may move from one status to another.
func CanTransition(from, to ProposalStatus) bool {
	for _, next := range proposalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Proposal struct {
	ID           string          `gorm:"primaryKey;column:id;type:char(36)" json:"id"`
	CallID       string          `gorm:"column:call_id;type:char(36);index" json:"call_id"`
	ResearcherID string          `gorm:"column:researcher_id;type:char(36);index" json:"researcher_id"`
	Title        string          `gorm:"column:title" json:"title"`
	Abstract     string          `gorm:"column:abstract;type:text" json:"abstract"`
	Methodology  string          `gorm:"column:methodology;type:text" json:"methodology"`
	BudgetAmount decimal.Decimal `gorm:"column:budget_amount;type:decimal(14,2)" json:"budget_amount"`
	Status       ProposalStatus  `gorm:"column:status;type:varchar(32);index" json:"status"`
	SubmittedAt  time.Time       `gorm:"column:submitted_at" json:"submitted_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime:false" json:"updated_at"`
}

func (Proposal) TableName() string {
	return "proposals"
}
