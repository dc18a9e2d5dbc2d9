package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang-task-scheduler-core/internal/config"
	"golang-task-scheduler-core/internal/models"
	"golang-task-scheduler-core/internal/utils"

	"github.com/sirupsen/logrus"
)

const (
	DefaultTimeout = 10 * time.Second

	taskResultPath   = "/api/scheduler/internal/task-result"
	notificationPath = "/api/scheduler/internal/notification"

	maxLoggedBody = 500
)

// Limiter gates outbound deliveries per recipient user.
type Limiter interface {
	Wait(ctx context.Context, userID string) error
}

// Journal records delivery attempts. Failures to record never affect the delivery result.
type Journal interface {
	Append(ctx context.Context, record *models.DeliveryRecord) error
}

type Option func(n *Notifier)

func WithHTTPClient(client *http.Client) Option {
	return func(n *Notifier) {
		n.client = client
	}
}

func WithLimiter(limiter Limiter) Option {
	return func(n *Notifier) {
		n.limiter = limiter
	}
}

func WithJournal(journal Journal) Option {
	return func(n *Notifier) {
		n.journal = journal
	}
}

// Notifier posts task results and lifecycle notifications to the chat service. Every
// operation is best effort: it reports success as a bool and never returns an error.
type Notifier struct {
	log                  *logrus.Logger
	client               *http.Client
	timeout              time.Duration
	taskResultEndpoint   string
	notificationEndpoint string
	limiter              Limiter
	journal              Journal
}

func NewNotifier(cfg *config.DeliveryConfig, log *logrus.Logger, opts ...Option) *Notifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	n := &Notifier{
		log:                  log,
		client:               &http.Client{Timeout: timeout},
		timeout:              timeout,
		taskResultEndpoint:   baseURL + taskResultPath,
		notificationEndpoint: baseURL + notificationPath,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// DeliverResult sends the outcome of a finished task. It returns false without any network
// call when the user or conversation is missing.
func (n *Notifier) DeliverResult(ctx context.Context, result models.TaskResult) bool {
	logger := n.log.WithFields(logrus.Fields{
		"task_id": result.TaskID,
		"user_id": result.UserID,
	})
	if result.UserID == "" || result.ConversationID == "" {
		logger.Warn("Cannot send task result: missing user_id or conversation_id")
		return false
	}

	statusCode, err := n.post(ctx, n.taskResultEndpoint, result.UserID, result.ToPayload())
	n.record(ctx, models.DeliveryKindResult, result.TaskID, result.UserID, result.ConversationID, statusCode, err)
	if err != nil {
		logger.WithError(err).Error("Failed to send task result")
		return false
	}
	logger.Info("Successfully sent task result")
	return true
}

// DeliverNotification sends a lifecycle event (started, failed, cancelled) for a task with
// the same addressing rules as DeliverResult.
func (n *Notifier) DeliverNotification(ctx context.Context, notification models.TaskNotification) bool {
	logger := n.log.WithFields(logrus.Fields{
		"task_id":           notification.TaskID,
		"user_id":           notification.UserID,
		"notification_type": notification.NotificationType,
	})
	if notification.UserID == "" || notification.ConversationID == "" {
		logger.Debug("Skipping notification: missing user_id or conversation_id")
		return false
	}

	statusCode, err := n.post(ctx, n.notificationEndpoint, notification.UserID, notification.ToPayload())
	n.record(ctx, models.DeliveryKindNotification, notification.TaskID, notification.UserID, notification.ConversationID, statusCode, err)
	if err != nil {
		logger.WithError(err).Error("Failed to send notification")
		return false
	}
	logger.Info("Successfully sent notification")
	return true
}

// DeliverResultAsync runs DeliverResult in the background. The channel receives exactly one
// value and is then closed.
func (n *Notifier) DeliverResultAsync(ctx context.Context, result models.TaskResult) <-chan bool {
	return n.async(func() bool { return n.DeliverResult(ctx, result) })
}

func (n *Notifier) DeliverNotificationAsync(ctx context.Context, notification models.TaskNotification) <-chan bool {
	return n.async(func() bool { return n.DeliverNotification(ctx, notification) })
}

func (n *Notifier) async(deliver func() bool) <-chan bool {
	out := make(chan bool, 1)
	utils.SafeGo(func() {
		ok := false
		defer func() {
			out <- ok
			close(out)
		}()
		ok = deliver()
	})
	return out
}

// StatusError is a non-200 answer from the recipient.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("recipient returned status %d: %s", e.StatusCode, e.Body)
}

// post sends payload as JSON and succeeds only on HTTP 200. Rate limiting and the request
// share one timeout.
func (n *Notifier) post(ctx context.Context, endpoint, userID string, payload any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if n.limiter != nil {
		if err := n.limiter.Wait(ctx, userID); err != nil {
			return 0, fmt.Errorf("rate limit: %w", err)
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, fmt.Errorf("timeout after %s: %w", n.timeout, err)
		}
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       utils.Truncate(string(body), maxLoggedBody),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (n *Notifier) record(ctx context.Context, kind models.DeliveryKind, taskID, userID, conversationID string, statusCode int, deliveryErr error) {
	if n.journal == nil {
		return
	}
	record := &models.DeliveryRecord{
		Kind:           kind,
		TaskID:         taskID,
		UserID:         userID,
		ConversationID: conversationID,
		Success:        deliveryErr == nil,
		StatusCode:     statusCode,
		Time:           utils.TimeNowUTC(),
	}
	if deliveryErr != nil {
		record.Error = deliveryErr.Error()
	}

	journalCtx, cancel := context.WithTimeout(utils.DetachedContext(ctx), 2*time.Second)
	defer cancel()
	if err := n.journal.Append(journalCtx, record); err != nil {
		n.log.WithError(err).WithField("task_id", taskID).Warn("Failed to record delivery attempt")
	}
}
