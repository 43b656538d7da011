package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/linesmerrill/pocket-infra-api/api"
	"github.com/linesmerrill/pocket-infra-api/config"
	"github.com/linesmerrill/pocket-infra-api/models"
	"github.com/linesmerrill/pocket-infra-api/services"
	"github.com/linesmerrill/pocket-infra-api/transcode"
)

const (
	// maxFormOverhead leaves room for the text fields next to a full size image
	maxFormOverhead = 1 << 20
	maxFormMemory   = 32 << 20

	fileTooLargeMessage = "File too large. Maximum size is 10MB."
	notAnImageMessage   = "Only image files are allowed!"
)

// Report handles report-related requests
type Report struct {
	Service *services.ReportService
}

// createReportRequest is the JSON form of a submission. Coordinates and the anonymous
// flag may arrive as numbers, booleans or strings.
type createReportRequest struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Location    string      `json:"location"`
	Category    string      `json:"category"`
	Latitude    interface{} `json:"latitude"`
	Longitude   interface{} `json:"longitude"`
	Anonymous   interface{} `json:"anonymous"`
}

func (c createReportRequest) input() services.SubmitInput {
	return services.SubmitInput{
		Title:       c.Title,
		Description: c.Description,
		Location:    c.Location,
		Category:    c.Category,
		Latitude:    scalarString(c.Latitude),
		Longitude:   scalarString(c.Longitude),
		Anonymous:   scalarString(c.Anonymous),
	}
}

func scalarString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// ListReportsHandler returns a filtered page of reports
func (re Report) ListReportsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := re.Service.List(r.Context(), services.ListQuery{
		Category: q.Get("category"),
		Status:   q.Get("status"),
		Sort:     q.Get("sort"),
		Limit:    queryInt(q.Get("limit")),
		Offset:   queryInt(q.Get("offset")),
	})
	if err != nil {
		config.ErrorStatus("Failed to fetch reports", http.StatusInternalServerError, w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ReportListResponse{
		Reports: page.Reports,
		Pagination: models.Pagination{
			Total:   page.Total,
			Limit:   page.Limit,
			Offset:  page.Offset,
			HasMore: page.HasMore,
		},
	})
}

// queryInt returns 0, which the service treats as the default, for missing or garbled values
func queryInt(raw string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// ReportByIDHandler returns a single report
func (re Report) ReportByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["report_id"]

	report, err := re.Service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "Failed to fetch report")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// CreateReportHandler accepts a multipart or JSON submission with an optional image
func (re Report) CreateReportHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, transcode.MaxInputBytes+maxFormOverhead)

	var (
		in    services.SubmitInput
		image *services.ImageUpload
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxFormMemory); err != nil {
			if isBodyTooLarge(err) {
				config.ErrorStatus(fileTooLargeMessage, http.StatusBadRequest, w, nil)
				return
			}
			config.ErrorStatus("failed to parse multipart form", http.StatusBadRequest, w, err)
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		in = services.SubmitInput{
			Title:       r.FormValue("title"),
			Description: r.FormValue("description"),
			Location:    r.FormValue("location"),
			Category:    r.FormValue("category"),
			Latitude:    r.FormValue("latitude"),
			Longitude:   r.FormValue("longitude"),
			Anonymous:   r.FormValue("anonymous"),
		}

		var status int
		var msg string
		image, status, msg = readImage(r)
		if status != 0 {
			config.ErrorStatus(msg, status, w, nil)
			return
		}
	} else {
		var body createReportRequest
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil {
			if isBodyTooLarge(err) {
				config.ErrorStatus(fileTooLargeMessage, http.StatusBadRequest, w, nil)
				return
			}
			config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
			return
		}
		in = body.input()
	}

	report, err := re.Service.Submit(r.Context(), in, image, services.Provenance{
		IPAddress: api.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		writeServiceError(w, err, "Failed to create report")
		return
	}

	writeJSON(w, http.StatusCreated, models.ReportCreatedResponse{
		Report:  report,
		Message: "Report submitted successfully",
	})
}

// readImage pulls the optional "image" part. A non-zero status means the upload is rejected.
func readImage(r *http.Request) (*services.ImageUpload, int, string) {
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, 0, ""
	}
	if err != nil {
		return nil, http.StatusBadRequest, "failed to read image"
	}
	defer file.Close()

	if header.Size > transcode.MaxInputBytes {
		return nil, http.StatusBadRequest, fileTooLargeMessage
	}
	contentType := strings.ToLower(header.Header.Get("Content-Type"))
	if !strings.HasPrefix(contentType, "image/") {
		return nil, http.StatusBadRequest, notAnImageMessage
	}

	data, err := io.ReadAll(io.LimitReader(file, transcode.MaxInputBytes+1))
	if err != nil {
		zap.S().Warnw("failed to read image part", "filename", header.Filename, "error", err)
		return nil, http.StatusBadRequest, "failed to read image"
	}
	if len(data) > transcode.MaxInputBytes {
		return nil, http.StatusBadRequest, fileTooLargeMessage
	}
	return &services.ImageUpload{
		Data:        data,
		ContentType: contentType,
		Filename:    header.Filename,
	}, 0, ""
}

func isBodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large")
}

// UpdateReportHandler applies a moderation update
func (re Report) UpdateReportHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["report_id"]

	var body models.ModerationRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	err := re.Service.Moderate(r.Context(), id, services.ModerationInput{
		Status:     body.Status,
		AdminNotes: body.AdminNotes,
	})
	if err != nil {
		writeServiceError(w, err, "Failed to update report")
		return
	}
	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "Report updated successfully"})
}

// UpvoteReportHandler adds one upvote to a report
func (re Report) UpvoteReportHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["report_id"]

	report, err := re.Service.Upvote(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "Failed to upvote report")
		return
	}
	writeJSON(w, http.StatusOK, models.UpvoteResponse{
		Message: "Report upvoted successfully",
		Upvotes: report.Upvotes,
	})
}

// StatsHandler returns the aggregate report counts
func (re Report) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := re.Service.Stats(r.Context())
	if err != nil {
		config.ErrorStatus("Failed to fetch statistics", http.StatusInternalServerError, w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// AdminReportsHandler returns the newest reports for moderation
func (re Report) AdminReportsHandler(w http.ResponseWriter, r *http.Request) {
	reports, err := re.Service.Recent(r.Context(), services.AdminLimit)
	if err != nil {
		config.ErrorStatus("Failed to fetch reports", http.StatusInternalServerError, w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.AdminReportsResponse{Reports: reports})
}

// writeServiceError maps service errors onto status codes. Anything unexpected is a 500
// carrying only fallback.
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, models.ValidationErrorResponse{
			Error:  "Validation failed",
			Errors: verr.Errors,
		})
	case errors.Is(err, services.ErrNotFound):
		config.ErrorStatus("Report not found", http.StatusNotFound, w, nil)
	default:
		config.ErrorStatus(fallback, http.StatusInternalServerError, w, err)
	}
}
