package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Complaint holds the structure for the complaints collection in mongo
type Complaint struct {
	ID                  primitive.ObjectID `json:"id" bson:"_id"`
	UserID              string             `json:"userId" bson:"userId"`
	UserName            string             `json:"userName" bson:"userName"`
	Category            Category           `json:"category" bson:"category"`
	Description         string             `json:"description" bson:"description"`
	BeforeImage         string             `json:"beforeImage" bson:"beforeImage"`
	AfterImage          *string            `json:"afterImage" bson:"afterImage"`
	Latitude            float64            `json:"latitude" bson:"latitude"`
	Longitude           float64            `json:"longitude" bson:"longitude"`
	Status              Status             `json:"status" bson:"status"`
	Priority            Priority           `json:"priority" bson:"priority"`
	AssignedSweeperID   *string            `json:"assignedSweeperId" bson:"assignedSweeperId"`
	AssignedSweeperName *string            `json:"assignedSweeperName" bson:"assignedSweeperName"`
	Feedback            *Feedback          `json:"feedback" bson:"feedback"`
	CreatedAt           time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt           time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// ReportedBy reports whether the complaint was filed by the given user id
func (c Complaint) ReportedBy(userID string) bool {
	return c.UserID == userID
}

// AssignedTo reports whether the complaint is assigned to the given sweeper id
func (c Complaint) AssignedTo(sweeperID string) bool {
	return c.AssignedSweeperID != nil && *c.AssignedSweeperID == sweeperID
}

// ComplaintPatch is a single lifecycle step. From is the status the complaint
// must still hold when the patch is written; nil fields are left untouched.
type ComplaintPatch struct {
	From                Status
	Status              Status
	AfterImage          *string
	AssignedSweeperID   *string
	AssignedSweeperName *string
	Feedback            *Feedback
}

// Apply returns c with the patch applied. It does not check preconditions.
func (p ComplaintPatch) Apply(c Complaint) Complaint {
	c.Status = p.Status
	if p.AfterImage != nil {
		c.AfterImage = p.AfterImage
	}
	if p.AssignedSweeperID != nil {
		c.AssignedSweeperID = p.AssignedSweeperID
	}
	if p.AssignedSweeperName != nil {
		c.AssignedSweeperName = p.AssignedSweeperName
	}
	if p.Feedback != nil {
		c.Feedback = p.Feedback
	}
	return c
}
