package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crosslist/internal/domain/notification"
	"crosslist/pkg/logger"
)

type recordSink struct {
	sent []*notification.Notification
	err  error
}

func (s *recordSink) Send(ctx context.Context, n *notification.Notification) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, n)
	return nil
}

func sample() *notification.Notification {
	return notification.New(
		notification.TypeOutOfStock,
		notification.SeverityWarning,
		"Source item went out of stock",
		"Vintage camera is no longer available",
		map[string]any{"listings_ended": 2},
	)
}

func TestMulti_FansOut(t *testing.T) {
	a, b := &recordSink{}, &recordSink{}
	m := NewMulti(logger.Default(), a, b)

	err := m.Send(context.Background(), sample())

	require.NoError(t, err)
	assert.Len(t, a.sent, 1)
	assert.Len(t, b.sent, 1)
}

func TestMulti_FailingChannelDoesNotBlockOthers(t *testing.T) {
	failing := &recordSink{err: errors.New("smtp down")}
	healthy := &recordSink{}
	m := NewMulti(logger.Default(), failing, healthy)

	err := m.Send(context.Background(), sample())

	require.NoError(t, err, "fan-out never surfaces channel errors")
	assert.Len(t, healthy.sent, 1)
}

func TestSlackWebhook_PayloadShape(t *testing.T) {
	var got slackPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSlackWebhook(srv.URL)
	err := s.Send(context.Background(), sample())

	require.NoError(t, err)
	require.Len(t, got.Attachments, 1)
	att := got.Attachments[0]
	assert.Equal(t, severityColors[notification.SeverityWarning], att.Color)
	assert.Equal(t, "Source item went out of stock", att.Title)
	require.Len(t, att.Fields, 1)
	assert.Equal(t, "listings_ended", att.Fields[0].Title)
	assert.Equal(t, "2", att.Fields[0].Value)
}

func TestSlackWebhook_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewSlackWebhook(srv.URL)
	err := s.Send(context.Background(), sample())

	assert.ErrorContains(t, err, "slack API error: 500")
}
