package model

import "time"

type Role string

const (
	RoleUser   Role = "USER"
	RoleAdmin  Role = "ADMIN"
	RoleWorker Role = "WORKER"
)

type User struct {
	ID    int64  `gorm:"primaryKey;autoIncrement"`
	Email string `gorm:"uniqueIndex;not null"`
	Role  Role   `gorm:"type:varchar(20);not null;default:'USER'"`

	//WORKERが担当する受け取り拠点
	PickupPointID *int64 `gorm:"index"`

	TokenVersion int  `gorm:"not null;default:0"`
	IsActive     bool `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// スタッフ操作の実行者。呼び出し側が明示的に渡す
type StaffIdentity struct {
	UserID        int64
	Role          Role
	PickupPointID *int64
}
