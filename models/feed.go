package models

// Live feed event names
const (
	EventReportCreated   = "report_created"
	EventReportUpvoted   = "report_upvoted"
	EventReportModerated = "report_moderated"
)

// FeedEvent is pushed to live feed subscribers
type FeedEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}
