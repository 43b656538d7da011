package models

import (
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Category is the kind of infrastructure problem a report describes
type Category string

// Report categories
const (
	CategoryRoad           Category = "road"
	CategoryTraffic        Category = "traffic"
	CategoryInfrastructure Category = "infrastructure"
	CategorySafety         Category = "safety"
	CategoryOther          Category = "other"
)

// Categories lists every accepted category in display order
var Categories = []Category{CategoryRoad, CategoryTraffic, CategoryInfrastructure, CategorySafety, CategoryOther}

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Status is the moderation state of a report
type Status string

// Report statuses. Only pending is ever assigned without a moderation update.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusRejected   Status = "rejected"
)

// Statuses lists every accepted moderation status
var Statuses = []Status{StatusPending, StatusInProgress, StatusResolved, StatusRejected}

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Report holds the structure for the reports collection in mongo
type Report struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Title       string             `json:"title" bson:"title"`
	Description string             `json:"description" bson:"description"`
	Location    *string            `json:"location" bson:"location"`
	Category    Category           `json:"category" bson:"category"`
	Latitude    *float64           `json:"latitude" bson:"latitude"`
	Longitude   *float64           `json:"longitude" bson:"longitude"`
	ImageURL    *string            `json:"imageUrl" bson:"imageUrl"`
	ImagePath   *string            `json:"imagePath" bson:"imagePath"`
	Status      Status             `json:"status" bson:"status"`
	AdminNotes  *string            `json:"adminNotes,omitempty" bson:"adminNotes,omitempty"`
	Upvotes     int64              `json:"upvotes" bson:"upvotes"`
	Anonymous   bool               `json:"anonymous" bson:"anonymous"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`
	IPAddress   string             `json:"ipAddress,omitempty" bson:"ipAddress"`
	UserAgent   string             `json:"userAgent,omitempty" bson:"userAgent"`

	// IsSpecial is derived on read, see MarkSpecial
	IsSpecial bool `json:"isSpecial" bson:"-"`
}

// SpecialWindow is how long a union territory report stays tagged
const SpecialWindow = 90 * 24 * time.Hour

var unionTerritoryPattern = regexp.MustCompile(`(?i)union territory`)

// MarkSpecial tags reports from a union territory created within the SpecialWindow of now
func (r *Report) MarkSpecial(now time.Time) {
	r.IsSpecial = false
	if r.Location == nil || r.CreatedAt.IsZero() || !unionTerritoryPattern.MatchString(*r.Location) {
		return
	}
	r.IsSpecial = now.Sub(r.CreatedAt) <= SpecialWindow
}

// ReportCreatedResponse is returned after a successful submission
type ReportCreatedResponse struct {
	*Report
	Message string `json:"message"`
}

// ReportListResponse is the body of a paginated report listing
type ReportListResponse struct {
	Reports    []Report   `json:"reports"`
	Pagination Pagination `json:"pagination"`
}

// Pagination describes the page returned in a ReportListResponse
type Pagination struct {
	Total   int64 `json:"total"`
	Limit   int64 `json:"limit"`
	Offset  int64 `json:"offset"`
	HasMore bool  `json:"hasMore"`
}

// AdminReportsResponse is the body of the admin listing
type AdminReportsResponse struct {
	Reports []Report `json:"reports"`
}

// ModerationRequest is the body accepted when moderating a report
type ModerationRequest struct {
	Status     *string `json:"status"`
	AdminNotes *string `json:"adminNotes"`
}

// MessageResponse is a plain acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}

// UpvoteResponse acknowledges an upvote with the new count
type UpvoteResponse struct {
	Message string `json:"message"`
	Upvotes int64  `json:"upvotes"`
}
