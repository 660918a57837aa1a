package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrOutcomeInvariant is returned when successful + failed != total.
var ErrOutcomeInvariant = errors.New("delete outcome counts do not add up")

// OutcomeKind classifies a completed deletion.
type OutcomeKind string

const (
	OutcomeNothing OutcomeKind = "nothing"
	OutcomeSuccess OutcomeKind = "success"
	OutcomePartial OutcomeKind = "partial"
	OutcomeFailure OutcomeKind = "failure"
)

// FailedItem is one item the remote side could not delete.
type FailedItem struct {
	ItemID       string `json:"item_id" yaml:"itemId"`
	ErrorMessage string `json:"error_message" yaml:"errorMessage"`
}

// UnmarshalJSON accepts the item key under comment_key, post_key or item_id,
// and the error as a plain string or an object with a message field.
func (f *FailedItem) UnmarshalJSON(b []byte) error {
	var wire struct {
		ItemID       string          `json:"item_id"`
		CommentKey   string          `json:"comment_key"`
		PostKey      string          `json:"post_key"`
		ErrorMessage string          `json:"error_message"`
		Error        json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}

	f.ItemID = firstNonEmpty(wire.ItemID, wire.CommentKey, wire.PostKey)
	f.ErrorMessage = wire.ErrorMessage
	if f.ErrorMessage == "" {
		f.ErrorMessage = ErrorText(wire.Error)
	}
	return nil
}

// DeleteOutcome is the terminal result of one deletion call. Values are
// never patched after creation; a retry yields a new outcome.
type DeleteOutcome struct {
	Total       int          `json:"total" yaml:"total" validate:"gte=0"`
	Successful  int          `json:"successful" yaml:"successful" validate:"gte=0"`
	Failed      int          `json:"failed" yaml:"failed" validate:"gte=0"`
	FailedItems []FailedItem `json:"failed_items,omitempty" yaml:"failedItems,omitempty"`
}

// UnmarshalJSON accepts failed items under failed_items, failed_comments or
// failed_posts.
func (o *DeleteOutcome) UnmarshalJSON(b []byte) error {
	var wire struct {
		Total          int          `json:"total"`
		Successful     int          `json:"successful"`
		Failed         int          `json:"failed"`
		FailedItems    []FailedItem `json:"failed_items"`
		FailedComments []FailedItem `json:"failed_comments"`
		FailedPosts    []FailedItem `json:"failed_posts"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}

	o.Total = wire.Total
	o.Successful = wire.Successful
	o.Failed = wire.Failed
	switch {
	case len(wire.FailedItems) > 0:
		o.FailedItems = wire.FailedItems
	case len(wire.FailedComments) > 0:
		o.FailedItems = wire.FailedComments
	default:
		o.FailedItems = wire.FailedPosts
	}
	return nil
}

// Validate checks field bounds and the successful + failed == total invariant.
func (o DeleteOutcome) Validate() error {
	if err := Validate(o); err != nil {
		return err
	}
	if o.Successful+o.Failed != o.Total {
		return fmt.Errorf("%w: %d successful + %d failed != %d total",
			ErrOutcomeInvariant, o.Successful, o.Failed, o.Total)
	}
	return nil
}

// Kind classifies the outcome. Partial and full failures are both qualified
// successes; only the split between them differs.
func (o DeleteOutcome) Kind() OutcomeKind {
	switch {
	case o.Total == 0:
		return OutcomeNothing
	case o.Failed == 0:
		return OutcomeSuccess
	case o.Successful == 0:
		return OutcomeFailure
	default:
		return OutcomePartial
	}
}

// HasFailures reports whether a retry would have anything to re-attempt.
func (o DeleteOutcome) HasFailures() bool {
	return o.Failed > 0
}

// Clone returns a deep copy.
func (o DeleteOutcome) Clone() DeleteOutcome {
	c := o
	if o.FailedItems != nil {
		c.FailedItems = make([]FailedItem, len(o.FailedItems))
		copy(c.FailedItems, o.FailedItems)
	}
	return c
}

// ProgressEstimate is a display value for an in-flight deletion.
type ProgressEstimate struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// Percent returns current/total in [0, 100].
func (p ProgressEstimate) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Current) * 100 / float64(p.Total)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
