// Package lifecycle holds the complaint state machine:
//
//	submitted -> review -> done
//
// Every transition is a pure function that validates its preconditions and
// returns the patch to persist, so a refused transition never reaches the store.
package lifecycle

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/linesmerrill/swachhsnap-api/models"
)

var (
	// ErrInvalidTransition is returned when the complaint is not in a state the action accepts
	ErrInvalidTransition = errors.New("invalid complaint transition")
	// ErrMissingAfterImage is returned when approving a complaint with no resolution photo
	ErrMissingAfterImage = errors.New("complaint has no after image")
	// ErrNotAssignee is returned when a sweeper acts on a complaint assigned to someone else
	ErrNotAssignee = errors.New("complaint is assigned to another sweeper")
	// ErrNotReporter is returned when anyone but the reporting citizen leaves feedback
	ErrNotReporter = errors.New("only the reporting citizen can leave feedback")
	// ErrFeedbackRecorded is returned when feedback was already left
	ErrFeedbackRecorded = errors.New("feedback already recorded")
	// ErrForbidden is returned when the actor's role may not perform the action
	ErrForbidden = errors.New("role not allowed to perform this action")
	// ErrInvalidInput is returned for an empty image url, an unknown rating or a non sweeper assignee
	ErrInvalidInput = errors.New("invalid transition input")
)

func requireRole(u models.User, role models.Role) error {
	if !u.Is(role) {
		return fmt.Errorf("%w: %s required, got %s", ErrForbidden, role, u.Role)
	}
	return nil
}

// Assign hands a submitted complaint to a sweeper and moves it to review
func Assign(c models.Complaint, admin, sweeper models.User) (models.ComplaintPatch, error) {
	if err := requireRole(admin, models.RoleAdmin); err != nil {
		return models.ComplaintPatch{}, err
	}
	if !sweeper.Is(models.RoleSweeper) {
		return models.ComplaintPatch{}, fmt.Errorf("%w: %s is not a sweeper", ErrInvalidInput, sweeper.ID.Hex())
	}
	if c.Status != models.StatusSubmitted {
		return models.ComplaintPatch{}, fmt.Errorf("%w: cannot assign a complaint in %s", ErrInvalidTransition, c.Status)
	}
	id, name := sweeper.ID.Hex(), sweeper.Name
	return models.ComplaintPatch{
		From:                c.Status,
		Status:              models.StatusReview,
		AssignedSweeperID:   &id,
		AssignedSweeperName: &name,
	}, nil
}

// CanSubmitProof checks whether sweeper may upload a resolution photo for c.
// Callers check this before uploading so a refused action leaves no orphan image.
func CanSubmitProof(c models.Complaint, sweeper models.User) error {
	if err := requireRole(sweeper, models.RoleSweeper); err != nil {
		return err
	}
	switch c.Status {
	case models.StatusSubmitted, models.StatusReview:
	default:
		return fmt.Errorf("%w: cannot submit proof for a complaint in %s", ErrInvalidTransition, c.Status)
	}
	if c.AssignedSweeperID != nil && !c.AssignedTo(sweeper.ID.Hex()) {
		return ErrNotAssignee
	}
	return nil
}

// SubmitProof records the after photo and moves the complaint to review.
// An unassigned complaint is claimed by the uploading sweeper.
func SubmitProof(c models.Complaint, sweeper models.User, afterImage string) (models.ComplaintPatch, error) {
	if err := CanSubmitProof(c, sweeper); err != nil {
		return models.ComplaintPatch{}, err
	}
	if strings.TrimSpace(afterImage) == "" {
		return models.ComplaintPatch{}, fmt.Errorf("%w: empty after image url", ErrInvalidInput)
	}
	id, name := sweeper.ID.Hex(), sweeper.Name
	return models.ComplaintPatch{
		From:                c.Status,
		Status:              models.StatusReview,
		AfterImage:          &afterImage,
		AssignedSweeperID:   &id,
		AssignedSweeperName: &name,
	}, nil
}

// Approve closes a complaint under review. The after image is required.
func Approve(c models.Complaint, admin models.User) (models.ComplaintPatch, error) {
	if err := requireRole(admin, models.RoleAdmin); err != nil {
		return models.ComplaintPatch{}, err
	}
	if c.Status != models.StatusReview {
		return models.ComplaintPatch{}, fmt.Errorf("%w: cannot approve a complaint in %s", ErrInvalidTransition, c.Status)
	}
	if c.AfterImage == nil || *c.AfterImage == "" {
		return models.ComplaintPatch{}, ErrMissingAfterImage
	}
	return models.ComplaintPatch{From: c.Status, Status: models.StatusDone}, nil
}

// RecordFeedback stores the reporter's rating on a closed complaint, once
func RecordFeedback(c models.Complaint, citizen models.User, f models.Feedback) (models.ComplaintPatch, error) {
	if err := requireRole(citizen, models.RoleCitizen); err != nil {
		return models.ComplaintPatch{}, err
	}
	if !c.ReportedBy(citizen.ID.Hex()) {
		return models.ComplaintPatch{}, ErrNotReporter
	}
	if !f.Valid() {
		return models.ComplaintPatch{}, fmt.Errorf("%w: feedback %q", ErrInvalidInput, f)
	}
	if c.Status != models.StatusDone {
		return models.ComplaintPatch{}, fmt.Errorf("%w: feedback needs a closed complaint, got %s", ErrInvalidTransition, c.Status)
	}
	if c.Feedback != nil {
		return models.ComplaintPatch{}, ErrFeedbackRecorded
	}
	return models.ComplaintPatch{From: c.Status, Status: models.StatusDone, Feedback: &f}, nil
}

// CheckInvariants reports the first field that disagrees with the complaint's status
func CheckInvariants(c models.Complaint) error {
	if !c.Status.Valid() {
		return fmt.Errorf("unknown status %q", c.Status)
	}
	closedOrReview := c.Status == models.StatusReview || c.Status == models.StatusDone
	switch {
	case c.AfterImage != nil && !closedOrReview:
		return fmt.Errorf("after image set while %s", c.Status)
	case c.AssignedSweeperID != nil && !closedOrReview:
		return fmt.Errorf("sweeper assigned while %s", c.Status)
	case c.Feedback != nil && c.Status != models.StatusDone:
		return fmt.Errorf("feedback set while %s", c.Status)
	case c.Status == models.StatusDone && c.AfterImage == nil:
		return errors.New("done without after image")
	}
	return nil
}

// Sort orders high priority complaints first, newest first within each tier
func Sort(cs []models.Complaint) {
	sort.SliceStable(cs, func(i, j int) bool {
		hi, hj := cs[i].Priority == models.PriorityHigh, cs[j].Priority == models.PriorityHigh
		if hi != hj {
			return hi
		}
		return cs[i].CreatedAt.After(cs[j].CreatedAt)
	})
}

// Stats summarises a complaint list for the admin dashboard
type Stats struct {
	Total        int `json:"total"`
	Pending      int `json:"pending"`
	Completed    int `json:"completed"`
	HighPriority int `json:"highPriority"`
}

// Summarize counts complaints by outcome. Pending is anything not done.
func Summarize(cs []models.Complaint) Stats {
	s := Stats{Total: len(cs)}
	for _, c := range cs {
		if c.Status == models.StatusDone {
			s.Completed++
		} else {
			s.Pending++
		}
		if c.Priority == models.PriorityHigh {
			s.HighPriority++
		}
	}
	return s
}
