package models

import "time"

type CallStatus string

const (
	CallStatusOpen   CallStatus = "open"
	CallStatusClosed CallStatus = "closed"
)

func (s CallStatus) Valid() bool {
	return s == CallStatusOpen || s == CallStatusClosed
}

// CallForPapers is an invitation for proposals published by a director.
type CallForPapers struct {
	ID          string     `gorm:"primaryKey;column:id;type:char(36)" json:"id"`
	Title       string     `gorm:"column:title" json:"title"`
	Description string     `gorm:"column:description;type:text" json:"description"`
	Deadline    time.Time  `gorm:"column:deadline" json:"deadline"`
	CreatedBy   string     `gorm:"column:created_by;type:char(36)" json:"created_by"`
	Status      CallStatus `gorm:"column:status;type:varchar(16)" json:"status"`
	CreatedAt   time.Time  `gorm:"column:created_at" json:"created_at"`
}

func (CallForPapers) TableName() string {
	return "calls_for_papers"
}
