// Package services holds the report business rules shared by the HTTP handlers and scheduled jobs.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/linesmerrill/pocket-infra-api/api"
	"github.com/linesmerrill/pocket-infra-api/databases"
	"github.com/linesmerrill/pocket-infra-api/models"
	"github.com/linesmerrill/pocket-infra-api/storage"
	"github.com/linesmerrill/pocket-infra-api/transcode"
)

// Listing defaults
const (
	DefaultLimit = 50
	MaxLimit     = 100
	AdminLimit   = 100
	RecentWindow = 30 * 24 * time.Hour
)

// Sort orders accepted by List
const (
	SortNewest      = "newest"
	SortOldest      = "oldest"
	SortMostUpvoted = "most_upvoted"
)

// ImageTranscoder normalizes uploaded images
type ImageTranscoder interface {
	Transcode(data []byte) (*transcode.Result, error)
}

// Publisher receives report events for the live feed
type Publisher interface {
	Publish(event models.FeedEvent)
}

// ImageUpload is an image attached to a submission
type ImageUpload struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Provenance identifies where a submission came from
type Provenance struct {
	IPAddress string
	UserAgent string
}

// ListQuery selects a page of reports. Empty or "all" filters match everything.
type ListQuery struct {
	Category string
	Status   string
	Sort     string
	Limit    int64
	Offset   int64
}

// ReportPage is one page of a listing
type ReportPage struct {
	Reports []models.Report
	Total   int64
	Limit   int64
	Offset  int64
	HasMore bool
}

// ReportService implements report submission, listing, moderation, upvotes and stats
type ReportService struct {
	db     databases.ReportDatabase
	store  storage.ObjectStore
	images ImageTranscoder
	feed   Publisher
	now    func() time.Time
	newID  func() string
}

// NewReportService wires the service. store and feed may be nil, in which case images are
// dropped and no events are published.
func NewReportService(db databases.ReportDatabase, store storage.ObjectStore, images ImageTranscoder, feed Publisher) *ReportService {
	return &ReportService{
		db:     db,
		store:  store,
		images: images,
		feed:   feed,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (s *ReportService) timestamp() time.Time {
	// mongo keeps millisecond precision
	return s.now().UTC().Truncate(time.Millisecond)
}

// Submit validates and stores a new report. Image failures never fail the submission.
func (s *ReportService) Submit(ctx context.Context, in SubmitInput, image *ImageUpload, from Provenance) (*models.Report, error) {
	report, err := validateSubmission(in)
	if err != nil {
		return nil, err
	}

	if image != nil && len(image.Data) > 0 {
		if url, path, ok := s.storeImage(ctx, image); ok {
			report.ImageURL = &url
			report.ImagePath = &path
		}
	}

	now := s.timestamp()
	report.CreatedAt = now
	report.UpdatedAt = now
	report.IPAddress = from.IPAddress
	report.UserAgent = from.UserAgent

	qctx, cancel := api.WithQueryTimeout(ctx)
	defer cancel()
	id, err := s.db.InsertOne(qctx, report)
	if err != nil {
		if report.ImagePath != nil {
			s.discardImage(ctx, *report.ImagePath)
		}
		return nil, fmt.Errorf("failed to insert report: %w", err)
	}
	report.ID = id
	report.MarkSpecial(now)

	zap.S().Infow("report submitted",
		"id", id.Hex(),
		"category", report.Category,
		"hasImage", report.ImageURL != nil)
	s.publish(models.EventReportCreated, report)
	return &report, nil
}

// storeImage transcodes and uploads an image, logging and returning false on any failure
func (s *ReportService) storeImage(ctx context.Context, image *ImageUpload) (string, string, bool) {
	if s.store == nil {
		zap.S().Warnw("dropping report image, object store is not configured", "filename", image.Filename)
		return "", "", false
	}
	res, err := s.images.Transcode(image.Data)
	if err != nil {
		zap.S().Warnw("image processing failed, continuing without image",
			"filename", image.Filename,
			"contentType", image.ContentType,
			"error", err)
		return "", "", false
	}

	path := "reports/" + s.newID()
	uctx, cancel := api.WithUploadTimeout(ctx)
	defer cancel()
	url, err := s.store.Upload(uctx, path, res.Data, res.ContentType)
	if err != nil {
		zap.S().Warnw("image upload failed, continuing without image", "path", path, "error", err)
		return "", "", false
	}
	return url, path, true
}

func (s *ReportService) discardImage(ctx context.Context, path string) {
	uctx, cancel := api.WithUploadTimeout(context.WithoutCancel(ctx))
	defer cancel()
	if err := s.store.Delete(uctx, path); err != nil {
		zap.S().Errorw("failed to remove orphaned image", "path", path, "error", err)
	}
}

// List returns a filtered, sorted page of reports. Total counts every report matching the filters.
func (s *ReportService) List(ctx context.Context, q ListQuery) (*ReportPage, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	filter := bson.M{}
	if c := strings.TrimSpace(q.Category); c != "" && c != "all" {
		filter["category"] = c
	}
	if st := strings.TrimSpace(q.Status); st != "" && st != "all" {
		filter["status"] = st
	}

	qctx, cancel := api.WithQueryTimeout(ctx)
	defer cancel()

	reports, err := s.db.Find(qctx, filter, databases.PageOptions(limit, offset, sortOrder(q.Sort)))
	if err != nil {
		return nil, fmt.Errorf("failed to find reports: %w", err)
	}
	total, err := s.db.CountDocuments(qctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count reports: %w", err)
	}

	reports = s.markSpecial(reports)
	return &ReportPage{
		Reports: reports,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+int64(len(reports)) < total,
	}, nil
}

func sortOrder(sort string) bson.D {
	switch sort {
	case SortOldest:
		return bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}
	case SortMostUpvoted:
		return bson.D{{Key: "upvotes", Value: -1}, {Key: "createdAt", Value: -1}}
	default:
		return bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	}
}

// Get returns a single report. Malformed ids are reported as ErrNotFound.
func (s *ReportService) Get(ctx context.Context, id string) (*models.Report, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	qctx, cancel := api.WithQueryTimeout(ctx)
	defer cancel()

	report, err := s.db.FindOne(qctx, bson.M{"_id": oid})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find report %s: %w", id, err)
	}
	report.MarkSpecial(s.now())
	return report, nil
}

// Moderate applies a partial status/notes update. updatedAt is refreshed even when
// neither field is supplied.
func (s *ReportService) Moderate(ctx context.Context, id string, in ModerationInput) error {
	status, notes, err := validateModeration(in)
	if err != nil {
		return err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	set := bson.M{"updatedAt": s.timestamp()}
	if status != nil {
		set["status"] = *status
	}
	if notes != nil {
		set["adminNotes"] = *notes
	}

	qctx, cancel := api.WithQueryTimeout(ctx)
	defer cancel()
	res, err := s.db.UpdateOne(qctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update report %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}

	zap.S().Infow("report moderated", "id", id, "fields", set)
	event := bson.M{"id": oid.Hex()}
	if status != nil {
		event["status"] = *status
	}
	if notes != nil {
		event["adminNotes"] = *notes
	}
	s.publish(models.EventReportModerated, event)
	return nil
}

// Upvote increments a report's upvotes with a single atomic $inc, so concurrent upvotes
// are never lost. Nothing is written when the report does not exist.
func (s *ReportService) Upvote(ctx context.Context, id string) (*models.Report, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	qctx, cancel := api.WithQueryTimeout(ctx)
	defer cancel()

	updated, err := s.db.FindOneAndUpdate(qctx, bson.M{"_id": oid}, bson.M{
		"$inc": bson.M{"upvotes": 1},
		"$set": bson.M{"updatedAt": s.timestamp()},
	}, options.FindOneAndUpdate().SetReturnDocument(options.After))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to upvote report %s: %w", id, err)
	}

	updated.MarkSpecial(s.now())
	s.publish(models.EventReportUpvoted, bson.M{"id": oid.Hex(), "upvotes": updated.Upvotes})
	return updated, nil
}

// Stats aggregates every report by status and category and counts the last 30 days
func (s *ReportService) Stats(ctx context.Context) (*models.Stats, error) {
	qctx, cancel := api.WithQueryTimeout(ctx)
	defer cancel()

	now := s.now().UTC()
	total, err := s.db.CountDocuments(qctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to count reports: %w", err)
	}
	byStatus, err := s.db.CountBy(qctx, "status", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count reports by status: %w", err)
	}
	byCategory, err := s.db.CountBy(qctx, "category", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count reports by category: %w", err)
	}
	recent, err := s.db.CountDocuments(qctx, bson.M{"createdAt": bson.M{"$gte": now.Add(-RecentWindow)}})
	if err != nil {
		return nil, fmt.Errorf("failed to count recent reports: %w", err)
	}

	return &models.Stats{
		TotalReports:   total,
		StatusCounts:   withDefaultKey(byStatus, string(models.StatusPending)),
		CategoryCounts: withDefaultKey(byCategory, string(models.CategoryOther)),
		RecentReports:  recent,
		GeneratedAt:    now,
	}, nil
}

// withDefaultKey folds documents missing the grouped field into def
func withDefaultKey(counts map[string]int64, def string) map[string]int64 {
	out := make(map[string]int64, len(counts))
	for k, v := range counts {
		if k == "" {
			k = def
		}
		out[k] += v
	}
	return out
}

// Recent returns the n newest reports
func (s *ReportService) Recent(ctx context.Context, n int64) ([]models.Report, error) {
	if n <= 0 {
		n = AdminLimit
	}
	qctx, cancel := api.WithQueryTimeout(ctx)
	defer cancel()

	reports, err := s.db.Find(qctx, bson.M{}, databases.PageOptions(n, 0, sortOrder(SortNewest)))
	if err != nil {
		return nil, fmt.Errorf("failed to find recent reports: %w", err)
	}
	return s.markSpecial(reports), nil
}

// Pending returns up to n of the oldest reports still awaiting moderation
func (s *ReportService) Pending(ctx context.Context, n int64) ([]models.Report, error) {
	qctx, cancel := api.WithQueryTimeout(ctx)
	defer cancel()

	reports, err := s.db.Find(qctx, bson.M{"status": models.StatusPending}, databases.PageOptions(n, 0, sortOrder(SortOldest)))
	if err != nil {
		return nil, fmt.Errorf("failed to find pending reports: %w", err)
	}
	return s.markSpecial(reports), nil
}

// Ping checks that the document store is reachable
func (s *ReportService) Ping(ctx context.Context) error {
	qctx, cancel := api.WithQueryTimeout(ctx)
	defer cancel()
	return s.db.Ping(qctx)
}

func (s *ReportService) markSpecial(reports []models.Report) []models.Report {
	if reports == nil {
		return []models.Report{}
	}
	now := s.now()
	for i := range reports {
		reports[i].MarkSpecial(now)
	}
	return reports
}

func (s *ReportService) publish(event string, data interface{}) {
	if s.feed == nil {
		return
	}
	s.feed.Publish(models.FeedEvent{Event: event, Data: data})
}
