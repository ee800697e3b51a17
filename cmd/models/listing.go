package models

import (
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type LandListing struct {
	gorm.Model
	OwnerID     uint   `gorm:"column:owner_id;not null;index" json:"owner_id"`
	Title       string `gorm:"column:title;size:255;not null" json:"title"`
	Description string `gorm:"column:description;type:text" json:"description"`

	State    string `gorm:"column:state;size:100;not null;index:idx_listings_location" json:"state"`
	District string `gorm:"column:district;size:100;index:idx_listings_location" json:"district"`
	Village  string `gorm:"column:village;size:100" json:"village,omitempty"`

	SizeInAcres  decimal.Decimal `gorm:"column:size_in_acres;type:decimal(8,2);not null" json:"size_in_acres"`
	SoilType     string          `gorm:"column:soil_type;size:50" json:"soil_type"`
	Irrigation   string          `gorm:"column:irrigation;size:50" json:"irrigation"`
	WaterSources pq.StringArray  `gorm:"column:water_sources;type:text[]" json:"water_sources,omitempty"`

	SuitableCrops pq.StringArray `gorm:"column:suitable_crops;type:text[]" json:"suitable_crops,omitempty"`

	// Annual rent expectation per acre, in rupees.
	RentPerAcre       decimal.Decimal `gorm:"column:rent_per_acre;type:decimal(10,2);not null;index" json:"rent_per_acre"`
	SecurityDeposit   decimal.Decimal `gorm:"column:security_deposit;type:decimal(10,2)" json:"security_deposit"`
	LeaseDurationMin  int             `gorm:"column:lease_duration_min;not null" json:"lease_duration_min"`
	LeaseDurationMax  int             `gorm:"column:lease_duration_max;not null" json:"lease_duration_max"`

	IsAvailable bool `gorm:"column:is_available;default:true;index" json:"is_available"`
	IsVerified  bool `gorm:"column:is_verified;default:false" json:"is_verified"`

	Owner *User `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
}
