package models

import "time"

// SiteModel is one forum site. Every other table is scoped by site_id.
type SiteModel struct {
	ID         int64     `json:"id"        gorm:"primaryKey;autoIncrement"`
	Hostname   string    `json:"hostname"  gorm:"uniqueIndex;not null"`
	Origin     string    `json:"origin"    gorm:"not null"`
	Name       string    `json:"name"`
	EnableAPI  bool      `json:"enableApi" gorm:"column:enable_api"`
	NextPageID int64     `json:"-"         gorm:"column:next_page_id;not null;default:0"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (SiteModel) TableName() string { return "sites" }

// APISecretModel is a site-scoped API credential. Only the bcrypt hash is stored.
type APISecretModel struct {
	SiteID     int64      `json:"siteId"    gorm:"primaryKey;autoIncrement:false"`
	Nr         int        `json:"nr"        gorm:"primaryKey;autoIncrement:false"`
	UserID     int64      `json:"userId"    gorm:"index;not null"`
	SecretHash string     `json:"-"         gorm:"not null"`
	CreatedAt  time.Time  `json:"createdAt"`
	DeletedAt  *time.Time `json:"deletedAt"`
	IsDeleted  bool       `json:"isDeleted" gorm:"column:is_deleted"`
}

func (APISecretModel) TableName() string { return "api_secrets" }

// MemberModel is a registered forum member.
type MemberModel struct {
	SiteID    int64     `json:"siteId"    gorm:"primaryKey;autoIncrement:false;uniqueIndex:idx_members_site_username,priority:1"`
	ID        int64     `json:"id"        gorm:"primaryKey;autoIncrement:false"`
	Username  string    `json:"username"  gorm:"not null;uniqueIndex:idx_members_site_username,priority:2"`
	FullName  string    `json:"fullName"`
	EmailAddr string    `json:"emailAddress" gorm:"column:email_addr"`
	IsDeleted bool      `json:"isDeleted" gorm:"column:is_deleted"`
	CreatedAt time.Time `json:"createdAt"`
}

func (MemberModel) TableName() string { return "members" }
