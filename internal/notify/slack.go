package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"crosslist/internal/domain/notification"
)

// severityColors maps severity to Slack attachment colors.
var severityColors = map[notification.Severity]string{
	notification.SeverityInfo:    "#2196F3",
	notification.SeverityWarning: "#FF9800",
	notification.SeverityError:   "#F44336",
	notification.SeveritySuccess: "#4CAF50",
}

// SlackWebhook posts notifications to a Slack incoming webhook.
type SlackWebhook struct {
	url    string
	client *http.Client
}

// NewSlackWebhook creates a Slack sink for the given webhook URL.
func NewSlackWebhook(url string) *SlackWebhook {
	return &SlackWebhook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Fields []slackField `json:"fields,omitempty"`
	Footer string       `json:"footer"`
	TS     int64        `json:"ts"`
}

type slackPayload struct {
	Attachments []slackAttachment `json:"attachments"`
}

// Send implements notification.Sink.
func (s *SlackWebhook) Send(ctx context.Context, n *notification.Notification) error {
	fields := make([]slackField, 0, len(n.Metadata))
	for key, value := range n.Metadata {
		fields = append(fields, slackField{
			Title: key,
			Value: fmt.Sprint(value),
			Short: true,
		})
	}

	payload := slackPayload{
		Attachments: []slackAttachment{{
			Color:  severityColors[n.Severity],
			Title:  n.Title,
			Text:   n.Message,
			Fields: fields,
			Footer: "crosslist reconciliation",
			TS:     time.Now().Unix(),
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("slack API error: %d", resp.StatusCode)
	}
	return nil
}
