package models

import "time"

// Container is one tracked shipping container. ContainerNumber is expected
// to be unique, but that is checked by callers, not by the schema.
// UpdatedAt is maintained by the repository.
type Container struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ContainerNumber string    `gorm:"size:20;not null;index" json:"container_number"`
	ISOCode         string    `gorm:"size:10" json:"iso_code"`
	OtherInfo       string    `gorm:"type:text" json:"other_info"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
}

// ContainerPatch carries the mutable fields of an update; nil means unchanged.
type ContainerPatch struct {
	ContainerNumber *string
	ISOCode         *string
	OtherInfo       *string
}

func (p ContainerPatch) Empty() bool {
	return p.ContainerNumber == nil && p.ISOCode == nil && p.OtherInfo == nil
}
