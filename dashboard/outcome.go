package dashboard

import (
	"errors"
	"fmt"
	"menudash/model"
)

type Op string

const (
	OpLoad   Op = "load"
	OpAdd    Op = "add"
	OpImport Op = "import"
	OpEdit   Op = "edit"
	OpDelete Op = "delete"
	OpToggle Op = "toggle"
)

var (
	ErrNoEditTarget   = errors.New("no food is being edited")
	ErrUnknownFood    = errors.New("food is not in the list")
	ErrInFlight       = errors.New("a change to this food is still in progress")
	ErrNoticeNotFound = errors.New("notice not found")
)

// PreconditionError rejects a flow before any remote call is made.
type PreconditionError struct {
	Op     Op
	FoodID uint
	Err    error
}

func (e *PreconditionError) Error() string {
	if e.FoodID != 0 {
		return fmt.Sprintf("%s food %d: %v", e.Op, e.FoodID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

// Outcome is the result of one flow. Item is set by single-entity flows,
// Items by import.
type Outcome struct {
	Op     Op
	FoodID uint
	Item   model.FoodItem
	Items  []model.FoodItem
	Err    error
}

func (o Outcome) OK() bool {
	return o.Err == nil
}

// Rejected reports whether the flow stopped on a precondition and never
// reached the API.
func (o Outcome) Rejected() bool {
	var pe *PreconditionError
	return errors.As(o.Err, &pe)
}
