package model

import (
	"time"

	"gorm.io/gorm"
)

// FoodItem is a menu entry as the foods API returns it.
type FoodItem struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Available   bool    `json:"available"`
	Image       string  `json:"image"`
}

// NewFoodItem holds the fields collected by the add form. The id is assigned
// by the server and availability is decided by the add flow.
type NewFoodItem struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Image       string  `json:"image"`
}

// FoodInput is the body of POST /foods.
type FoodInput struct {
	NewFoodItem
	Available bool `json:"available"`
}

// EditDraft is a partial FoodItem. Nil fields are absent from the draft.
type EditDraft struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Available   *bool    `json:"available,omitempty"`
	Image       *string  `json:"image,omitempty"`
}

// Empty reports whether the draft carries no field at all.
func (d EditDraft) Empty() bool {
	return d.Name == nil && d.Description == nil && d.Price == nil && d.Available == nil && d.Image == nil
}

// Merge returns original with every field defined in draft overriding it.
// The id always comes from original.
func Merge(original FoodItem, draft EditDraft) FoodItem {
	merged := original
	if draft.Name != nil {
		merged.Name = *draft.Name
	}
	if draft.Description != nil {
		merged.Description = *draft.Description
	}
	if draft.Price != nil {
		merged.Price = *draft.Price
	}
	if draft.Available != nil {
		merged.Available = *draft.Available
	}
	if draft.Image != nil {
		merged.Image = *draft.Image
	}
	return merged
}

// DraftOf returns a draft defining every field of item.
func DraftOf(item FoodItem) EditDraft {
	return EditDraft{
		Name:        &item.Name,
		Description: &item.Description,
		Price:       &item.Price,
		Available:   &item.Available,
		Image:       &item.Image,
	}
}

// Food is the persisted row behind a FoodItem.
type Food struct {
	FoodItem
	CreatedAt time.Time      `json:"-"`
	UpdatedAt time.Time      `json:"-"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
