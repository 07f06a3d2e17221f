package db

import "time"

type RecordModel struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	Email     string    `gorm:"uniqueIndex;not null"`
	Role      string    `gorm:"not null"`
	Status    string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"index;not null"`
	EmailHash string    `gorm:"not null;default:''"`
	Signature string    `gorm:"type:text;not null;default:''"`
}

func (RecordModel) TableName() string {
	return "records"
}
