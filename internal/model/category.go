package model

import "time"

// Category is one entry in the open business-category taxonomy. The set is
// backed by a registry table so new categories can be added without touching
// routing or confidence logic.
type Category struct {
	CreatedAt   time.Time
	Name        string
	Description string
	ID          int
	IsActive    bool
}
