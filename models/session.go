package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SessionType string

const (
	SessionTypeOffline SessionType = "offline"
	SessionTypeMerge   SessionType = "merge"
)

type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionActive    SessionStatus = "active"
	SessionPaying    SessionStatus = "paying"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
	SessionMerged    SessionStatus = "merged"
)

// Open reports whether the session still accepts merges, splits and orders.
func (s SessionStatus) Open() bool {
	switch s {
	case SessionPending, SessionActive:
		return true
	default:
		return false
	}
}

// TableSession is one party's occupation of a table. Orders and the invoice hang off it.
type TableSession struct {
	ID                  string        `json:"id" gorm:"primaryKey;size:36"`
	Type                SessionType   `json:"type" gorm:"size:16;not null"`
	Status              SessionStatus `json:"status" gorm:"size:16;not null;index"`
	TableID             *string       `json:"table_id" gorm:"size:36;index"`
	ParentSessionID     *string       `json:"parent_session_id" gorm:"size:36"`
	MergedIntoSessionID *string       `json:"merged_into_session_id" gorm:"size:36;index"`
	StartedAt           time.Time     `json:"started_at"`
	EndedAt             *time.Time    `json:"ended_at"`
	CustomerID          *string       `json:"customer_id" gorm:"size:36"`
	EmployeeID          *string       `json:"employee_id" gorm:"size:36"`

	CreatedBy string    `json:"created_by" gorm:"size:36"`
	UpdatedBy string    `json:"updated_by" gorm:"size:36"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (session *TableSession) BeforeCreate(tx *gorm.DB) (err error) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	return
}

// DiningTable is a physical table a session can be opened on.
type DiningTable struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Name      string    `json:"name" gorm:"size:64;not null;uniqueIndex"`
	Seats     int       `json:"seats"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (table *DiningTable) BeforeCreate(tx *gorm.DB) (err error) {
	if table.ID == "" {
		table.ID = uuid.NewString()
	}
	return
}

// SessionMerge records one merge so it can be audited and reverted.
type SessionMerge struct {
	ID              string         `json:"id" gorm:"primaryKey;size:36"`
	TargetSessionID string         `json:"target_session_id" gorm:"size:36;not null;index"`
	TargetInvoiceID string         `json:"target_invoice_id" gorm:"size:36;not null"`
	Snapshot        datatypes.JSON `json:"snapshot" gorm:"type:jsonb"`
	MergedBy        string         `json:"merged_by" gorm:"size:36"`
	MergedAt        time.Time      `json:"merged_at"`
	RevertedBy      *string        `json:"reverted_by" gorm:"size:36"`
	RevertedAt      *time.Time     `json:"reverted_at"`
}

func (merge *SessionMerge) BeforeCreate(tx *gorm.DB) (err error) {
	if merge.ID == "" {
		merge.ID = uuid.NewString()
	}
	return
}
