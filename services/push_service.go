package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

const (
	expoPushURL = "https://exp.host/--/api/v2/push/send"
	fcmSendURL  = "https://fcm.googleapis.com/fcm/send"
)

// PushService delivers push notifications through Expo or FCM depending on
// the provider registered with the device token. No pack library covers
// either wire format, so both are small JSON POSTs over one shared client.
type PushService struct {
	http   *http.Client
	fcmKey string
}

func NewPushService() *PushService {
	return &PushService{
		http:   &http.Client{Timeout: 15 * time.Second},
		fcmKey: os.Getenv("FCM_SERVER_KEY"),
	}
}

// SendPush routes a notification to the provider's endpoint.
func (s *PushService) SendPush(ctx context.Context, token, provider, title, body string, data map[string]interface{}) error {
	switch provider {
	case "expo", "":
		return s.sendExpo(ctx, token, title, body, data)
	case "fcm":
		return s.sendFCM(ctx, token, title, body, data)
	default:
		return fmt.Errorf("unknown push provider %q", provider)
	}
}

func (s *PushService) sendExpo(ctx context.Context, token, title, body string, data map[string]interface{}) error {
	payload := map[string]interface{}{
		"to":    token,
		"title": title,
		"body":  body,
		"sound": "default",
	}
	if len(data) > 0 {
		payload["data"] = data
	}
	return s.postJSON(ctx, expoPushURL, payload, nil)
}

func (s *PushService) sendFCM(ctx context.Context, token, title, body string, data map[string]interface{}) error {
	if s.fcmKey == "" {
		return fmt.Errorf("%w: fcm (set FCM_SERVER_KEY)", ErrSourceNotConfigured)
	}
	payload := map[string]interface{}{
		"to": token,
		"notification": map[string]string{
			"title": title,
			"body":  body,
		},
	}
	if len(data) > 0 {
		payload["data"] = data
	}
	headers := map[string]string{"Authorization": "key=" + s.fcmKey}
	return s.postJSON(ctx, fcmSendURL, payload, headers)
}

// SendWebhook posts a JSON payload to an arbitrary URL.
func (s *PushService) SendWebhook(ctx context.Context, url string, payload interface{}, headers map[string]string) error {
	return s.postJSON(ctx, url, payload, headers)
}

func (s *PushService) postJSON(ctx context.Context, url string, payload interface{}, headers map[string]string) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("push endpoint returned %d", resp.StatusCode)
	}
	return nil
}
