package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/linesmerrill/swachhsnap-api/config"
	"github.com/linesmerrill/swachhsnap-api/databases"
	"github.com/linesmerrill/swachhsnap-api/lifecycle"
	"github.com/linesmerrill/swachhsnap-api/models"
	templates "github.com/linesmerrill/swachhsnap-api/templates/html"
)

// Mailer sends a single message, sendgrid.Client satisfies it
type Mailer interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

// Scheduler runs the daily digest of open high priority complaints
type Scheduler struct {
	cron       *cron.Cron
	Complaints databases.ComplaintDatabase
	Users      databases.UserDatabase
	Mailer     Mailer

	schedule     string
	from         *mail.Email
	dashboardURL string
	now          func() time.Time
}

// NewScheduler creates a new scheduler instance. Without a sendgrid key the
// digest is still computed and logged but nothing is sent.
func NewScheduler(conf *config.Config, cDB databases.ComplaintDatabase, uDB databases.UserDatabase) *Scheduler {
	var mailer Mailer
	if conf.SendgridAPIKey != "" {
		mailer = sendgrid.NewSendClient(conf.SendgridAPIKey)
	}
	dashboardURL := ""
	if conf.BaseURL != "" {
		dashboardURL = strings.TrimRight(conf.BaseURL, "/") + "/admin"
	}
	return &Scheduler{
		cron:         cron.New(cron.WithLocation(time.UTC)),
		Complaints:   cDB,
		Users:        uDB,
		Mailer:       mailer,
		schedule:     conf.DigestSchedule,
		from:         mail.NewEmail("SwachhSnap", conf.DigestFromEmail),
		dashboardURL: dashboardURL,
		now:          time.Now,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.runDigest); err != nil {
		return fmt.Errorf("failed to register digest job %q: %w", s.schedule, err)
	}
	s.cron.Start()
	zap.S().Infow("digest scheduler started", "schedule", s.schedule, "mailer", s.Mailer != nil)
	return nil
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("digest scheduler stopped")
}

func (s *Scheduler) runDigest() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if err := s.SendDigest(ctx); err != nil {
		zap.S().Errorw("failed to send complaint digest", "error", err)
	}
}

// SendDigest emails every admin the open high priority complaints. Nothing
// is sent when there are none.
func (s *Scheduler) SendDigest(ctx context.Context) error {
	pending, err := s.Complaints.Find(ctx, bson.M{
		"status":   bson.M{"$ne": models.StatusDone},
		"priority": models.PriorityHigh,
	}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return fmt.Errorf("failed to find pending complaints: %w", err)
	}
	if len(pending) == 0 {
		zap.S().Debug("no pending high priority complaints, skipping digest")
		return nil
	}
	lifecycle.Sort(pending)

	admins, err := s.Users.Find(ctx, bson.M{"role": models.RoleAdmin})
	if err != nil {
		return fmt.Errorf("failed to find admins: %w", err)
	}

	items := make([]templates.DigestItem, 0, len(pending))
	for _, c := range pending {
		item := templates.DigestItem{
			ID:        c.ID.Hex(),
			Category:  string(c.Category),
			Status:    string(c.Status),
			Latitude:  c.Latitude,
			Longitude: c.Longitude,
			CreatedAt: c.CreatedAt,
		}
		if c.AssignedSweeperName != nil {
			item.Sweeper = *c.AssignedSweeperName
		}
		items = append(items, item)
	}

	zap.S().Infow("sending complaint digest", "pending", len(items), "admins", len(admins))
	var errs []error
	for _, admin := range admins {
		subject, plain, html := templates.RenderComplaintDigest(admin.Name, items, s.dashboardURL, s.now())
		if err := s.sendEmail(admin.Email, admin.Name, subject, html, plain); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", admin.Email, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) sendEmail(toEmail, toName, subject, htmlContent, plainText string) error {
	if s.Mailer == nil {
		zap.S().Infow("no mailer configured, digest not sent", "to", toEmail, "subject", subject)
		return nil
	}
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(s.from, subject, to, plainText, htmlContent)
	response, err := s.Mailer.Send(message)
	if err != nil {
		return err
	}
	if response.StatusCode >= 400 {
		zap.S().Errorw("sendgrid returned error status", "status", response.StatusCode, "body", response.Body)
		return fmt.Errorf("sendgrid returned status %d", response.StatusCode)
	}
	return nil
}
