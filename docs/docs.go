// Package docs Pocket Infrastructure API.
//
// Citizen infrastructure reports: submission, browsing, upvotes, moderation and statistics.
// Every route is also served under the /api prefix.
//
//     Schemes: https
//     BasePath: /
//     Version: 1.0.0
//     Host: pocket-infrastructure.web.app
//
//     Consumes:
//     - application/json
//     - multipart/form-data
//
//     Produces:
//     - application/json
//
//     Security:
//     - basic
//     - bearer
//
//    SecurityDefinitions:
//    basic:
//      type: basic
//    bearer:
//      type: apiKey
//      name: Authorization
//      in: header
//
// swagger:meta
package docs

import (
	"github.com/linesmerrill/pocket-infra-api/api/handlers"
	"github.com/linesmerrill/pocket-infra-api/models"
)

// swagger:route GET /health health healthEndpointID
// Reports whether the api can reach its database.
// responses:
//   200: healthResponse
//   500: healthResponse

// swagger:response healthResponse
type healthResponseWrapper struct {
	// in:body
	Body models.HealthCheckResponse
}

// swagger:route GET /reports reports listReports
// Lists reports, newest first unless sort says otherwise.
// responses:
//   200: reportListResponse
//   429: errorResponse
//   500: errorResponse

// swagger:parameters listReports
type listReportsParams struct {
	// road, traffic, infrastructure, safety, other or all
	// in: query
	Category string `json:"category"`
	// pending, in_progress, resolved, rejected or all
	// in: query
	Status string `json:"status"`
	// newest, oldest or most_upvoted
	// in: query
	Sort string `json:"sort"`
	// 1-100, defaults to 50
	// in: query
	Limit int `json:"limit"`
	// in: query
	Offset int `json:"offset"`
}

// swagger:response reportListResponse
type reportListResponseWrapper struct {
	// in:body
	Body models.ReportListResponse
}

// swagger:route POST /reports reports createReport
// Submits a report, optionally with an image part named "image" (10MB max).
// responses:
//   201: reportCreatedResponse
//   400: validationErrorResponse
//   429: errorResponse

// swagger:response reportCreatedResponse
type reportCreatedResponseWrapper struct {
	// in:body
	Body models.ReportCreatedResponse
}

// swagger:route GET /reports/{report_id} reports reportByID
// Gets a single report by ID.
// responses:
//   200: reportResponse
//   404: errorResponse

// swagger:route PATCH /reports/{report_id} admin updateReport
// Moderates a report. Requires admin credentials when they are configured.
// responses:
//   200: messageResponse
//   400: validationErrorResponse
//   401: errorResponse
//   404: errorResponse

// swagger:parameters updateReport
type updateReportParams struct {
	// in: body
	Body models.ModerationRequest
}

// swagger:route POST /reports/{report_id}/upvote reports upvoteReport
// Adds one upvote to a report.
// responses:
//   200: upvoteResponse
//   404: errorResponse

// swagger:parameters reportByID updateReport upvoteReport
type reportIDParam struct {
	// in: path
	// required: true
	ReportID string `json:"report_id"`
}

// swagger:response reportResponse
type reportResponseWrapper struct {
	// in:body
	Body models.Report
}

// swagger:response upvoteResponse
type upvoteResponseWrapper struct {
	// in:body
	Body models.UpvoteResponse
}

// swagger:response messageResponse
type messageResponseWrapper struct {
	// in:body
	Body models.MessageResponse
}

// swagger:route GET /stats stats reportStats
// Aggregate counts by status and category.
// responses:
//   200: statsResponse

// swagger:response statsResponse
type statsResponseWrapper struct {
	// in:body
	Body models.Stats
}

// swagger:route POST /admin/token admin adminToken
// Exchanges admin basic credentials for a bearer token.
// responses:
//   200: adminTokenResponse
//   401: errorResponse

// swagger:response adminTokenResponse
type adminTokenResponseWrapper struct {
	// in:body
	Body models.AdminTokenResponse
}

// swagger:route GET /admin/metrics admin adminMetrics
// Request metrics and recent traces.
// responses:
//   200: metricsResponse

// swagger:response metricsResponse
type metricsResponseWrapper struct {
	// in:body
	Body handlers.MetricsDashboardResponse
}

// swagger:response errorResponse
type errorResponseWrapper struct {
	// in:body
	Body models.ErrorMessageResponse
}

// swagger:response validationErrorResponse
type validationErrorResponseWrapper struct {
	// in:body
	Body models.ValidationErrorResponse
}
