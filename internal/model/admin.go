package model

import "time"

// GrantID is the primary key of a row in the admins table.
type GrantID int64

// SystemGrantor is stored in AddedBy for grants that were not issued by another admin.
const SystemGrantor InternalUserID = 0

// Admin is an administrative grant. A user is an admin iff at least one grant references them.
type Admin struct {
	ID      GrantID        `gorm:"column:id;primaryKey"`
	UsersID InternalUserID `gorm:"column:users_id;not null;index"`
	AddedBy InternalUserID `gorm:"column:added_by;default:0"`
	AddedAt time.Time      `gorm:"column:added_at;autoCreateTime"`
}

func (Admin) TableName() string { return "admins" }
