package models

import (
	"time"
)

type Favorite struct {
	ID         string    `json:"id" gorm:"primaryKey;type:text"`
	UserID     string    `json:"userId" gorm:"type:text;index;uniqueIndex:uniq_user_property,priority:1"`
	PropertyID string    `json:"propertyId" gorm:"type:text;uniqueIndex:uniq_user_property,priority:2"`
	Property   Property  `json:"-" gorm:"foreignKey:PropertyID;references:ID;constraint:OnDelete:CASCADE;"`
	CDate      time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type Property struct {
	ID       string    `json:"id" gorm:"primaryKey;type:text"`
	Title    string    `json:"title" gorm:"type:text"`
	City     string    `json:"city" gorm:"type:text;index"`
	Price    float64   `json:"price" gorm:"type:numeric"`
	Currency string    `json:"currency" gorm:"type:text"`
	ImageURL string    `json:"imageUrl" gorm:"type:text"`
	CDate    time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}
