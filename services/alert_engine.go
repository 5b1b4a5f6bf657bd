package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"upset-radar-api/config"
	"upset-radar-api/metrics"
	"upset-radar-api/models"
)

const (
	// Games below this score never generate alerts regardless of how low a
	// subscription threshold is set.
	alertMinScore = 55.0

	// Scores at or above this get elevated priority.
	alertHighScore = 70.0

	alertPriorityNormal   = 5
	alertPriorityElevated = 8

	defaultAlertBatchSize = 25
)

// AlertBroadcaster is the real-time channel, satisfied by streaming.Hub.
type AlertBroadcaster interface {
	BroadcastAlert(gameID string, payload interface{}) error
}

// PushSender delivers one push notification, satisfied by PushService.
type PushSender interface {
	SendPush(ctx context.Context, token, provider, title, body string, data map[string]interface{}) error
}

// Mailer sends one HTML email; config.SendMail in production.
type Mailer func(to, subject, html string) error

// AlertEngine runs the detection and delivery passes. Detection creates
// deduplicated pending alerts from scored games crossing subscription
// thresholds; delivery drains the pending queue through the configured
// channels with bounded retries.
type AlertEngine struct {
	DB          *gorm.DB
	Broadcaster AlertBroadcaster
	Push        PushSender
	Mail        Mailer
	BatchSize   int
	now         func() time.Time
}

func NewAlertEngine(db *gorm.DB, broadcaster AlertBroadcaster, push PushSender, mail Mailer) *AlertEngine {
	return &AlertEngine{
		DB:          db,
		Broadcaster: broadcaster,
		Push:        push,
		Mail:        mail,
		BatchSize:   defaultAlertBatchSize,
		now:         time.Now,
	}
}

// Run executes one full alert cycle: detect, then deliver.
func (e *AlertEngine) Run(ctx context.Context) (*JobResult, error) {
	result := &JobResult{Extra: map[string]interface{}{}}

	queued, err := e.detect(ctx, result)
	if err != nil {
		return result, err
	}
	result.Extra["alerts_queued"] = queued

	delivered, failed, err := e.deliver(ctx, result)
	if err != nil {
		return result, err
	}
	result.Extra["alerts_delivered"] = delivered
	result.Extra["alerts_failed"] = failed
	return result, nil
}

// detect scans scored games against active threshold subscriptions and
// enqueues a pending alert for each new crossing.
func (e *AlertEngine) detect(ctx context.Context, result *JobResult) (int, error) {
	var scored []models.GameFeatures
	err := e.DB.
		Where("ups_score IS NOT NULL AND ups_score >= ?", alertMinScore).
		Find(&scored).Error
	if err != nil {
		return 0, err
	}
	if len(scored) == 0 {
		return 0, nil
	}

	var subs []models.AlertSubscription
	err = e.DB.
		Where("active = ? AND subscription_type = ?", true, models.SubscriptionTypeUPSThreshold).
		Find(&subs).Error
	if err != nil {
		return 0, err
	}

	queued := 0
	for i := range scored {
		if err := ctx.Err(); err != nil {
			return queued, err
		}
		game := &scored[i]
		result.Processed++

		for k := range subs {
			sub := &subs[k]
			if *game.UPSScore < sub.UPSThreshold {
				continue
			}

			created, err := e.enqueue(game, sub)
			if err != nil {
				result.AddError("alert %s/%d: %v", game.GameID, sub.UserID, err)
				continue
			}
			if created {
				queued++
				result.Created++
				metrics.AlertsQueued.Inc()
			}
		}
	}
	return queued, nil
}

// enqueue creates the alert unless one already exists for the same game,
// user and type. Terminal failed alerts also block re-creation; re-arming
// them is an explicit operator action.
func (e *AlertEngine) enqueue(game *models.GameFeatures, sub *models.AlertSubscription) (bool, error) {
	var existing int64
	err := e.DB.Model(&models.QueuedAlert{}).
		Where("game_id = ? AND user_id = ? AND alert_type = ?", game.GameID, sub.UserID, models.AlertTypeUPSThreshold).
		Count(&existing).Error
	if err != nil {
		return false, err
	}
	if existing > 0 {
		return false, nil
	}

	priority := alertPriorityNormal
	if *game.UPSScore >= alertHighScore {
		priority = alertPriorityElevated
	}

	gameID := game.GameID
	userID := sub.UserID
	threshold := sub.UPSThreshold
	alert := &models.QueuedAlert{
		ID:         uuid.NewString(),
		AlertType:  models.AlertTypeUPSThreshold,
		Title:      fmt.Sprintf("Upset Watch: %s vs %s", game.Underdog, game.Favorite),
		Message:    formatAlertMessage(game),
		GameID:     &gameID,
		UserID:     &userID,
		UPSScore:   game.UPSScore,
		Threshold:  &threshold,
		Priority:   priority,
		Status:     models.AlertStatusPending,
		MaxRetries: models.DefaultAlertMaxRetries,
	}
	return true, e.DB.Create(alert).Error
}

func formatAlertMessage(game *models.GameFeatures) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s has a %.0f%% upset probability against %s.", game.Underdog, *game.UPSScore, game.Favorite)
	if game.Signals != nil && *game.Signals != "" && *game.Signals != "null" {
		fmt.Fprintf(&b, " Signals: %s", *game.Signals)
	}
	if game.GameStartTime != nil {
		fmt.Fprintf(&b, " Kickoff: %s.", game.GameStartTime.UTC().Format("Mon Jan 2 15:04 MST"))
	}
	return b.String()
}

// deliver drains pending alerts in priority-then-age order. Any one channel
// succeeding marks the alert sent; all channels failing costs a retry.
func (e *AlertEngine) deliver(ctx context.Context, result *JobResult) (delivered, failed int, err error) {
	batch := e.BatchSize
	if batch <= 0 {
		batch = defaultAlertBatchSize
	}

	var pending []models.QueuedAlert
	err = e.DB.
		Where("status = ?", models.AlertStatusPending).
		Order("priority DESC, created_at ASC").
		Limit(batch).
		Find(&pending).Error
	if err != nil {
		return 0, 0, err
	}

	for i := range pending {
		if err := ctx.Err(); err != nil {
			return delivered, failed, err
		}
		alert := &pending[i]

		method, deliveryErr := e.deliverOne(ctx, alert)
		if deliveryErr == nil {
			now := e.now().UTC()
			alert.Status = models.AlertStatusSent
			alert.DeliveryMethod = &method
			alert.SentAt = &now
			if err := e.DB.Save(alert).Error; err != nil {
				result.AddError("alert %s: %v", alert.ID, err)
				continue
			}
			delivered++
			result.Updated++
			continue
		}

		alert.RetryCount++
		msg := deliveryErr.Error()
		alert.LastError = &msg
		if alert.RetryCount >= alert.MaxRetries {
			alert.Status = models.AlertStatusFailed
			failed++
			config.Log.Errorf("Alert %s failed terminally after %d attempts: %v", alert.ID, alert.RetryCount, deliveryErr)
		}
		if err := e.DB.Save(alert).Error; err != nil {
			result.AddError("alert %s: %v", alert.ID, err)
		}
	}
	return delivered, failed, nil
}

// deliverOne attempts every enabled channel, returning the methods that
// succeeded or the last error when none did.
func (e *AlertEngine) deliverOne(ctx context.Context, alert *models.QueuedAlert) (string, error) {
	sub, user := e.lookupRecipient(alert)

	var methods []string
	var lastErr error

	if e.Broadcaster != nil && (sub == nil || sub.WebsocketEnabled) {
		gameID := ""
		if alert.GameID != nil {
			gameID = *alert.GameID
		}
		if err := e.Broadcaster.BroadcastAlert(gameID, alert); err == nil {
			methods = append(methods, "websocket")
			metrics.AlertsDelivered.WithLabelValues("websocket", "ok").Inc()
		} else {
			lastErr = err
			metrics.AlertsDelivered.WithLabelValues("websocket", "error").Inc()
		}
	}

	if e.Push != nil && (sub == nil || sub.PushEnabled) {
		if token, provider, ok := pushTarget(sub, user); ok {
			data := map[string]interface{}{"alert_id": alert.ID, "alert_type": alert.AlertType}
			if alert.GameID != nil {
				data["game_id"] = *alert.GameID
			}
			if err := e.Push.SendPush(ctx, token, provider, alert.Title, alert.Message, data); err == nil {
				methods = append(methods, "push")
				metrics.AlertsDelivered.WithLabelValues("push", "ok").Inc()
			} else {
				lastErr = err
				metrics.AlertsDelivered.WithLabelValues("push", "error").Inc()
			}
		}
	}

	if e.Mail != nil && sub != nil && sub.EmailEnabled && user != nil && user.Email != "" {
		html := fmt.Sprintf("<h2>%s</h2><p>%s</p>", alert.Title, alert.Message)
		if err := e.Mail(user.Email, alert.Title, html); err == nil {
			methods = append(methods, "email")
			metrics.AlertsDelivered.WithLabelValues("email", "ok").Inc()
		} else {
			lastErr = err
			metrics.AlertsDelivered.WithLabelValues("email", "error").Inc()
		}
	}

	if len(methods) > 0 {
		return strings.Join(methods, ","), nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no delivery channel available")
	}
	return "", lastErr
}

// lookupRecipient loads the alert's subscription and user context; either
// may be absent for system-wide alerts.
func (e *AlertEngine) lookupRecipient(alert *models.QueuedAlert) (*models.AlertSubscription, *models.User) {
	if alert.UserID == nil {
		return nil, nil
	}

	var sub models.AlertSubscription
	var subPtr *models.AlertSubscription
	err := e.DB.
		Where("user_id = ? AND subscription_type = ? AND active = ?", *alert.UserID, models.SubscriptionTypeUPSThreshold, true).
		First(&sub).Error
	if err == nil {
		subPtr = &sub
	}

	var user models.User
	var userPtr *models.User
	if err := e.DB.First(&user, *alert.UserID).Error; err == nil {
		userPtr = &user
	}
	return subPtr, userPtr
}

// pushTarget resolves the device token, preferring the subscription's own
// registration over the user's default device.
func pushTarget(sub *models.AlertSubscription, user *models.User) (token, provider string, ok bool) {
	if sub != nil && sub.PushToken != nil && *sub.PushToken != "" {
		provider = "expo"
		if sub.PushProvider != nil && *sub.PushProvider != "" {
			provider = *sub.PushProvider
		}
		return *sub.PushToken, provider, true
	}
	if user != nil && user.PushToken != nil && *user.PushToken != "" {
		provider = "expo"
		if user.PushProvider != nil && *user.PushProvider != "" {
			provider = *user.PushProvider
		}
		return *user.PushToken, provider, true
	}
	return "", "", false
}

// Rearm resets a terminally failed alert to pending with a fresh retry
// budget. Only failed alerts can be re-armed.
func (e *AlertEngine) Rearm(alertID string) (*models.QueuedAlert, error) {
	var alert models.QueuedAlert
	if err := e.DB.First(&alert, "id = ?", alertID).Error; err != nil {
		return nil, err
	}
	if alert.Status != models.AlertStatusFailed {
		return nil, fmt.Errorf("alert %s is %s, only failed alerts can be re-armed", alertID, alert.Status)
	}

	alert.Status = models.AlertStatusPending
	alert.RetryCount = 0
	alert.LastError = nil
	if err := e.DB.Save(&alert).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}
