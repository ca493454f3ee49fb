package model

import "time"

// 店舗。無効化はIsActiveで行い、物理削除はしない（注文が参照するため）
type Store struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string    `gorm:"type:varchar(255);not null" json:"name"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"column:password_hash;not null" json:"-"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	Category     string    `gorm:"type:varchar(100)" json:"category"`
	Address      string    `gorm:"type:varchar(255)" json:"address"`
	Phone        string    `gorm:"type:varchar(30)" json:"phone"`
	CreatedAt    time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
