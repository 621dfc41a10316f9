package models

import "time"

// Vendor is a contactable service provider registered in the directory.
// FlowType scopes which negotiation kinds the vendor is discovered for.
type Vendor struct {
	ID         string  `gorm:"primaryKey;size:32"`
	Name       string  `gorm:"size:128;not null"`
	Phone      string  `gorm:"size:32;not null"`
	VendorType string  `gorm:"size:32"`
	FlowType   string  `gorm:"size:32;not null;index"`
	Active     bool    `gorm:"default:true;index"`
	Metadata   JSONMap `gorm:"type:json"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
