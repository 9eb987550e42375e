package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role is the closed set of account roles
type Role string

// Roles recognised by the api
const (
	RoleCitizen Role = "citizen"
	RoleSweeper Role = "sweeper"
	RoleAdmin   Role = "admin"
)

// Category is the closed set of complaint categories
type Category string

// Complaint categories
const (
	CategoryGarbage Category = "garbage"
	CategoryRoad    Category = "road"
	CategoryRiver   Category = "river"
	CategoryPublic  Category = "public"
)

// Status is a complaint lifecycle state
type Status string

// Complaint lifecycle states
const (
	StatusSubmitted Status = "submitted"
	StatusReview    Status = "review"
	StatusDone      Status = "done"
)

// Priority is computed once when a complaint is created
type Priority string

// Complaint priorities
const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Feedback is the rating a citizen leaves on a closed complaint
type Feedback string

// Feedback ratings
const (
	FeedbackPoor Feedback = "poor"
	FeedbackAvg  Feedback = "avg"
	FeedbackGood Feedback = "good"
)

// Categories lists every category with its display label
var Categories = []struct {
	Value Category `json:"value"`
	Label string   `json:"label"`
}{
	{CategoryGarbage, "Garbage Dump"},
	{CategoryRoad, "Road Damage"},
	{CategoryRiver, "River Pollution"},
	{CategoryPublic, "Public Area Issue"},
}

// ParseRole accepts "user" as an alias for citizen, the name older clients send
func ParseRole(s string) (Role, error) {
	if strings.EqualFold(strings.TrimSpace(s), "user") {
		return RoleCitizen, nil
	}
	return parseEnum("role", s, RoleCitizen, RoleSweeper, RoleAdmin)
}

// ParseCategory validates a category value
func ParseCategory(s string) (Category, error) {
	return parseEnum("category", s, CategoryGarbage, CategoryRoad, CategoryRiver, CategoryPublic)
}

// ParseStatus validates a status value
func ParseStatus(s string) (Status, error) {
	return parseEnum("status", s, StatusSubmitted, StatusReview, StatusDone)
}

// ParsePriority validates a priority value
func ParsePriority(s string) (Priority, error) {
	return parseEnum("priority", s, PriorityNormal, PriorityHigh)
}

// ParseFeedback validates a feedback value
func ParseFeedback(s string) (Feedback, error) {
	return parseEnum("feedback", s, FeedbackPoor, FeedbackAvg, FeedbackGood)
}

func parseEnum[T ~string](kind, s string, allowed ...T) (T, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, a := range allowed {
		if string(a) == v {
			return a, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, s)
}

func unmarshalEnum[T ~string](data []byte, dst *T, parse func(string) (T, error)) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := parse(s)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleCitizen, RoleSweeper, RoleAdmin:
		return true
	}
	return false
}

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	switch c {
	case CategoryGarbage, CategoryRoad, CategoryRiver, CategoryPublic:
		return true
	}
	return false
}

// Valid reports whether s is one of the known states
func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusReview, StatusDone:
		return true
	}
	return false
}

// Valid reports whether f is one of the known ratings
func (f Feedback) Valid() bool {
	switch f {
	case FeedbackPoor, FeedbackAvg, FeedbackGood:
		return true
	}
	return false
}

// UnmarshalJSON rejects unknown roles
func (r *Role) UnmarshalJSON(data []byte) error { return unmarshalEnum(data, r, ParseRole) }

// UnmarshalJSON rejects unknown categories
func (c *Category) UnmarshalJSON(data []byte) error { return unmarshalEnum(data, c, ParseCategory) }

// UnmarshalJSON rejects unknown states
func (s *Status) UnmarshalJSON(data []byte) error { return unmarshalEnum(data, s, ParseStatus) }

// UnmarshalJSON rejects unknown priorities
func (p *Priority) UnmarshalJSON(data []byte) error { return unmarshalEnum(data, p, ParsePriority) }

// UnmarshalJSON rejects unknown ratings
func (f *Feedback) UnmarshalJSON(data []byte) error { return unmarshalEnum(data, f, ParseFeedback) }
