package model

import "time"

// 受け取り拠点
type PickupPoint struct {
	ID      int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name    string `gorm:"type:varchar(255);not null" json:"name"`
	Address string `gorm:"type:varchar(500);not null" json:"address"`

	ContactPhone string `gorm:"type:varchar(30)" json:"contact_phone"`
	WorkingHours string `gorm:"type:varchar(255)" json:"working_hours"`

	//停止中の拠点は注文に使えない
	IsActive bool `gorm:"not null;default:true" json:"is_active"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
