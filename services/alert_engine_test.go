package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"upset-radar-api/models"
)

type recordingBroadcaster struct {
	calls int
	err   error
}

func (b *recordingBroadcaster) BroadcastAlert(gameID string, payload interface{}) error {
	b.calls++
	return b.err
}

type recordingPush struct {
	calls int
	err   error
}

func (p *recordingPush) SendPush(ctx context.Context, token, provider, title, body string, data map[string]interface{}) error {
	p.calls++
	return p.err
}

func seedAlertFixtures(t *testing.T, engine *AlertEngine, score, threshold float64) (models.User, models.AlertSubscription) {
	t.Helper()
	db := engine.DB

	user := models.User{Email: "fan@example.com", Password: "x", RoleID: models.RoleUser}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	token := "ExponentPushToken[abc]"
	sub := models.AlertSubscription{
		UserID:           user.UserID,
		SubscriptionType: models.SubscriptionTypeUPSThreshold,
		UPSThreshold:     threshold,
		Active:           true,
		WebsocketEnabled: true,
		PushEnabled:      true,
		PushToken:        &token,
	}
	if err := db.Create(&sub).Error; err != nil {
		t.Fatalf("seed subscription: %v", err)
	}

	features := models.GameFeatures{
		GameID:   "g1",
		Sport:    "NFL",
		Favorite: "KC",
		Underdog: "LV",
		UPSScore: &score,
	}
	if err := db.Create(&features).Error; err != nil {
		t.Fatalf("seed features: %v", err)
	}
	return user, sub
}

func TestAlertDetectionAndDedup(t *testing.T) {
	db := newTestDB(t)
	broadcaster := &recordingBroadcaster{}
	push := &recordingPush{}
	engine := NewAlertEngine(db, broadcaster, push, nil)

	seedAlertFixtures(t, engine, 72.5, 65)

	result, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Extra["alerts_queued"] != 1 {
		t.Fatalf("expected 1 alert queued, got %v", result.Extra["alerts_queued"])
	}

	var alerts []models.QueuedAlert
	if err := db.Find(&alerts).Error; err != nil {
		t.Fatalf("load alerts: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	alert := alerts[0]
	if alert.Priority != alertPriorityElevated {
		t.Errorf("score 72.5 should elevate priority, got %d", alert.Priority)
	}
	if alert.Status != models.AlertStatusSent {
		t.Errorf("delivered alert should be sent, got %s", alert.Status)
	}
	if alert.DeliveryMethod == nil {
		t.Error("delivery method must be recorded")
	}

	// A second cycle over the same scored game creates nothing new.
	if _, err := engine.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	var count int64
	db.Model(&models.QueuedAlert{}).Count(&count)
	if count != 1 {
		t.Errorf("dedup violated: %d alerts for one crossing", count)
	}
}

func TestAlertBelowSubscriptionThreshold(t *testing.T) {
	db := newTestDB(t)
	engine := NewAlertEngine(db, &recordingBroadcaster{}, &recordingPush{}, nil)

	// Score clears the engine minimum but not the user's threshold.
	seedAlertFixtures(t, engine, 58, 80)

	if _, err := engine.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	var count int64
	db.Model(&models.QueuedAlert{}).Count(&count)
	if count != 0 {
		t.Errorf("expected no alerts, got %d", count)
	}
}

func TestAlertNormalPriorityBelowHighBar(t *testing.T) {
	db := newTestDB(t)
	engine := NewAlertEngine(db, &recordingBroadcaster{}, &recordingPush{}, nil)

	seedAlertFixtures(t, engine, 62, 60)

	if _, err := engine.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	var alert models.QueuedAlert
	if err := db.First(&alert).Error; err != nil {
		t.Fatalf("load alert: %v", err)
	}
	if alert.Priority != alertPriorityNormal {
		t.Errorf("score 62 should get normal priority, got %d", alert.Priority)
	}
}

func TestAlertRetryTermination(t *testing.T) {
	db := newTestDB(t)
	broadcaster := &recordingBroadcaster{err: errors.New("socket down")}
	push := &recordingPush{err: errors.New("push down")}
	engine := NewAlertEngine(db, broadcaster, push, nil)

	seedAlertFixtures(t, engine, 75, 65)

	// Every cycle fails delivery; the alert must burn exactly max_retries
	// attempts and then stay failed.
	for i := 0; i < models.DefaultAlertMaxRetries+2; i++ {
		if _, err := engine.Run(context.Background()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	var alert models.QueuedAlert
	if err := db.First(&alert).Error; err != nil {
		t.Fatalf("load alert: %v", err)
	}
	if alert.Status != models.AlertStatusFailed {
		t.Fatalf("expected terminal failed, got %s", alert.Status)
	}
	if alert.RetryCount != models.DefaultAlertMaxRetries {
		t.Errorf("retry count = %d, want %d", alert.RetryCount, models.DefaultAlertMaxRetries)
	}
	if alert.LastError == nil {
		t.Error("last error must be retained")
	}
}

func TestAlertRearm(t *testing.T) {
	db := newTestDB(t)
	failing := &recordingBroadcaster{err: errors.New("down")}
	engine := NewAlertEngine(db, failing, &recordingPush{err: errors.New("down")}, nil)

	seedAlertFixtures(t, engine, 75, 65)
	for i := 0; i < models.DefaultAlertMaxRetries; i++ {
		if _, err := engine.Run(context.Background()); err != nil {
			t.Fatalf("run: %v", err)
		}
	}

	var alert models.QueuedAlert
	if err := db.First(&alert).Error; err != nil {
		t.Fatalf("load alert: %v", err)
	}
	if alert.Status != models.AlertStatusFailed {
		t.Fatalf("precondition: alert should be failed, got %s", alert.Status)
	}

	rearmed, err := engine.Rearm(alert.ID)
	if err != nil {
		t.Fatalf("rearm: %v", err)
	}
	if rearmed.Status != models.AlertStatusPending || rearmed.RetryCount != 0 {
		t.Errorf("rearm must reset to pending with zero retries, got %+v", rearmed)
	}

	// Re-arming a pending alert is refused.
	if _, err := engine.Rearm(alert.ID); err == nil {
		t.Error("expected error re-arming a non-failed alert")
	}

	// Channels recover; the re-armed alert delivers.
	failing.err = nil
	if _, err := engine.Run(context.Background()); err != nil {
		t.Fatalf("delivery run: %v", err)
	}
	var after models.QueuedAlert
	if err := db.First(&after, "id = ?", alert.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if after.Status != models.AlertStatusSent {
		t.Errorf("expected sent after rearm, got %s", after.Status)
	}
}

func TestAlertDeliveryPriorityOrder(t *testing.T) {
	db := newTestDB(t)
	broadcaster := &recordingBroadcaster{}
	engine := NewAlertEngine(db, broadcaster, nil, nil)
	engine.BatchSize = 1

	for i, priority := range []int{alertPriorityNormal, alertPriorityElevated} {
		alert := models.QueuedAlert{
			ID:         fmt.Sprintf("a%d", i),
			AlertType:  models.AlertTypeUPSThreshold,
			Title:      "t",
			Message:    "m",
			Priority:   priority,
			Status:     models.AlertStatusPending,
			MaxRetries: models.DefaultAlertMaxRetries,
		}
		if err := db.Create(&alert).Error; err != nil {
			t.Fatalf("seed alert: %v", err)
		}
	}

	if _, err := engine.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	// With a batch of one, the elevated alert must go first.
	var sent []models.QueuedAlert
	if err := db.Where("status = ?", models.AlertStatusSent).Find(&sent).Error; err != nil {
		t.Fatalf("load sent: %v", err)
	}
	if len(sent) != 1 || sent[0].ID != "a1" {
		t.Errorf("expected the elevated alert delivered first, got %+v", sent)
	}
}
