package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/linesmerrill/pocket-infra-api/config"
	"github.com/linesmerrill/pocket-infra-api/models"
	templates "github.com/linesmerrill/pocket-infra-api/templates/html"
)

const (
	// DigestPendingLimit caps how many pending reports are listed in one digest
	DigestPendingLimit = 25
	digestTimeout      = 2 * time.Minute
)

// DigestSource supplies the figures for the moderation digest
type DigestSource interface {
	Stats(ctx context.Context) (*models.Stats, error)
	Pending(ctx context.Context, n int64) ([]models.Report, error)
}

// Mailer delivers a single email
type Mailer interface {
	Send(ctx context.Context, to, subject, plainText, htmlContent string) error
}

// Scheduler runs the periodic moderation digest
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	to     string
	source DigestSource
	mailer Mailer
}

// NewScheduler creates a new scheduler instance mailing the digest to the configured admin
func NewScheduler(conf *config.Config, source DigestSource, mailer Mailer) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		spec:   conf.DigestCron,
		to:     conf.AdminEmail,
		source: source,
		mailer: mailer,
	}
}

// Start registers the digest job and begins the scheduler
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.runDigest); err != nil {
		return fmt.Errorf("failed to register digest job %q: %w", s.spec, err)
	}
	s.cron.Start()
	zap.S().Infow("moderation digest scheduler started", "schedule", s.spec, "to", s.to)
	return nil
}

// Stop waits for a running job and stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("moderation digest scheduler stopped")
}

func (s *Scheduler) runDigest() {
	ctx, cancel := context.WithTimeout(context.Background(), digestTimeout)
	defer cancel()

	if err := s.SendDigest(ctx); err != nil {
		zap.S().Errorw("failed to send moderation digest", "error", err)
	}
}

// SendDigest mails the admin a summary of the reports awaiting moderation. Nothing is sent
// when the queue is empty.
func (s *Scheduler) SendDigest(ctx context.Context) error {
	stats, err := s.source.Stats(ctx)
	if err != nil {
		return err
	}
	waiting := stats.StatusCounts[string(models.StatusPending)]
	if waiting == 0 {
		zap.S().Debug("no pending reports, skipping moderation digest")
		return nil
	}

	pending, err := s.source.Pending(ctx, DigestPendingLimit)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("%d report(s) awaiting moderation", waiting)
	body := digestBody(stats, pending, waiting)
	if err := s.mailer.Send(ctx, s.to, subject, body, templates.RenderGenericEmail(subject, body)); err != nil {
		return err
	}

	zap.S().Infow("moderation digest sent", "to", s.to, "pending", waiting, "listed", len(pending))
	return nil
}

func digestBody(stats *models.Stats, pending []models.Report, waiting int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total reports: %d\n", stats.TotalReports)
	fmt.Fprintf(&b, "Submitted in the last 30 days: %d\n", stats.RecentReports)
	fmt.Fprintf(&b, "Awaiting moderation: %d\n", waiting)

	b.WriteString("\nOldest pending reports:\n")
	for _, r := range pending {
		location := "no location"
		if r.Location != nil && *r.Location != "" {
			location = *r.Location
		}
		fmt.Fprintf(&b, "- [%s] %s (%s), submitted %s, %d upvote(s)\n",
			r.Category, r.Title, location, r.CreatedAt.UTC().Format("2006-01-02"), r.Upvotes)
	}
	if extra := waiting - int64(len(pending)); extra > 0 {
		fmt.Fprintf(&b, "...and %d more\n", extra)
	}
	return b.String()
}
