package models

import (
	"strconv"
	"time"
)

// PageNotfPrefModel is a member's notification level for the whole site or
// for one category. ScopeKey makes (site, member, scope) unique without a
// nullable column in the index.
type PageNotfPrefModel struct {
	ID         int64     `json:"-"          gorm:"primaryKey;autoIncrement"`
	SiteID     int64     `json:"siteId"     gorm:"not null;uniqueIndex:idx_notf_prefs_scope,priority:1"`
	MemberID   int64     `json:"memberId"   gorm:"not null;uniqueIndex:idx_notf_prefs_scope,priority:2"`
	ScopeKey   string    `json:"-"          gorm:"column:scope_key;not null;uniqueIndex:idx_notf_prefs_scope,priority:3"`
	NotfLevel  NotfLevel `json:"notfLevel"  gorm:"column:notf_level;not null"`
	WholeSite  bool      `json:"wholeSite"  gorm:"column:whole_site"`
	CategoryID *int64    `json:"categoryId,omitempty" gorm:"index"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (PageNotfPrefModel) TableName() string { return "page_notf_prefs" }

// NotfScopeKey returns the unique scope key for a preference.
func NotfScopeKey(wholeSite bool, categoryID *int64) string {
	if wholeSite || categoryID == nil {
		return "site"
	}
	return "cat:" + strconv.FormatInt(*categoryID, 10)
}

// EmailStatus is the delivery state of an outgoing email.
type EmailStatus string

const (
	EmailPending EmailStatus = "pending"
	EmailSent    EmailStatus = "sent"
	EmailFailed  EmailStatus = "failed"
)

// SentEmailModel is the outbox row for one notification email.
type SentEmailModel struct {
	Base
	SiteID     int64       `json:"siteId"     gorm:"not null;index;uniqueIndex:idx_sent_emails_once,priority:1"`
	ToMemberID int64       `json:"toMemberId" gorm:"not null;uniqueIndex:idx_sent_emails_once,priority:3"`
	ToAddress  string      `json:"toAddress"  gorm:"not null;index"`
	PageID     int64       `json:"pageId"     gorm:"index;uniqueIndex:idx_sent_emails_once,priority:2"`
	Subject    string      `json:"subject"`
	BodyHTML   string      `json:"bodyHtml"   gorm:"column:body_html;type:longtext"`
	Status     EmailStatus `json:"status"     gorm:"type:varchar(16);not null;index"`
	Attempts   int         `json:"attempts"   gorm:"not null;default:0"`
	LastError  string      `json:"lastError"  gorm:"type:text"`
	SentAt     *time.Time  `json:"sentAt"`
}

func (SentEmailModel) TableName() string { return "sent_emails" }
