package model

import "time"

// ExternalUserID is the Telegram user id. It is assigned by Telegram and never changes.
type ExternalUserID int64

// InternalUserID is the primary key of a row in the users table.
type InternalUserID int64

// User stores Telegram user metadata. A row is created on first contact and is not updated afterwards.
type User struct {
	ID           InternalUserID `gorm:"column:id;primaryKey"`
	UserID       ExternalUserID `gorm:"column:user_id;uniqueIndex;not null"`
	Username     *string        `gorm:"column:username"`
	FirstName    string         `gorm:"column:first_name;not null"`
	LastName     *string        `gorm:"column:last_name"`
	LanguageCode *string        `gorm:"column:language_code"`
	Language     *string        `gorm:"column:language"`
	IsPremium    *bool          `gorm:"column:is_premium;default:false"`
	JoinedAt     time.Time      `gorm:"column:joined_at;not null;autoCreateTime"`
	LastActive   time.Time      `gorm:"column:last_active;not null;autoCreateTime"`
}

func (User) TableName() string { return "users" }

// DisplayName returns @username when set, otherwise first and last name.
func (u *User) DisplayName() string {
	if u.Username != nil && *u.Username != "" {
		return "@" + *u.Username
	}
	name := u.FirstName
	if u.LastName != nil && *u.LastName != "" {
		name += " " + *u.LastName
	}
	return name
}

// Profile holds the sender fields captured from an inbound update.
type Profile struct {
	ID           ExternalUserID
	Username     string
	FirstName    string
	LastName     string
	LanguageCode string
	IsPremium    *bool
}

// FullName joins first and last name the way Telegram clients display them.
func (p Profile) FullName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// NewUser builds a users row from a profile. Empty optional fields are stored as NULL.
func NewUser(p Profile) User {
	return User{
		UserID:       p.ID,
		Username:     optional(p.Username),
		FirstName:    p.FirstName,
		LastName:     optional(p.LastName),
		LanguageCode: optional(p.LanguageCode),
		IsPremium:    p.IsPremium,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
