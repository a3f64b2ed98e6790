package models

import "time"

type Recommendation string

const (
	RecommendApprove Recommendation = "approve"
	RecommendReject  Recommendation = "reject"
	RecommendRevise  Recommendation = "revise"
)

func (r Recommendation) Valid() bool {
	switch r {
	case RecommendApprove, RecommendReject, RecommendRevise:
		return true
	}
	return false
}

// ProposalReviewer links a reviewer profile to a proposal it may score.
type ProposalReviewer struct {
	ID         string    `gorm:"primaryKey;column:id;type:char(36)" json:"id"`
	ProposalID string    `gorm:"column:proposal_id;type:char(36);uniqueIndex:uq_proposal_reviewer" json:"proposal_id"`
	ReviewerID string    `gorm:"column:reviewer_id;type:char(36);uniqueIndex:uq_proposal_reviewer" json:"reviewer_id"`
	AssignedBy string    `gorm:"column:assigned_by;type:char(36)" json:"assigned_by"`
	AssignedAt time.Time `gorm:"column:assigned_at" json:"assigned_at"`

	Reviewer *UserProfile `gorm:"-" json:"reviewer,omitempty"`
}

type Review struct {
	ID             string         `gorm:"primaryKey;column:id;type:char(36)" json:"id"`
	ProposalID     string         `gorm:"column:proposal_id;type:char(36);uniqueIndex:uq_review_proposal_reviewer" json:"proposal_id"`
	ReviewerID     string         `gorm:"column:reviewer_id;type:char(36);uniqueIndex:uq_review_proposal_reviewer" json:"reviewer_id"`
	Score          int            `gorm:"column:score" json:"score"`
	Recommendation Recommendation `gorm:"column:recommendation;type:varchar(16)" json:"recommendation"`
	Comments       string         `gorm:"column:comments;type:text" json:"comments"`
	SubmittedAt    time.Time      `gorm:"column:submitted_at" json:"submitted_at"`
}

func (ProposalReviewer) TableName() string {
	return "proposal_reviewers"
}

func (Review) TableName() string {
	return "reviews"
}
