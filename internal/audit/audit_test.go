package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/qbcart/internal/model"
)

type captureSink struct {
	queue  string
	bodies [][]byte
}

func (c *captureSink) Publish(_ context.Context, queue string, body []byte) bool {
	c.queue = queue
	c.bodies = append(c.bodies, body)
	return true
}

func TestNewEvent_CopiesNamesAndFormatsMinute(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 7, 42, 0, time.Local)
	user := &model.User{Username: "alice", Email: "a@example.com"}

	e := NewEvent(user, model.ActionAddedToCart, "Lamp", "added to cart", at)

	assert.Equal(t, "alice", e.User)
	assert.Equal(t, "a@example.com", e.Email)
	assert.Equal(t, "2024-05-01 09:07", e.DateTime)
}

func TestEncode_WireFieldNames(t *testing.T) {
	body, err := Encode(model.AuditEvent{User: "u", Action: model.ActionOrderPlaced, DateTime: "2024-05-01 09:07"})
	require.NoError(t, err)

	var raw map[string]string
	require.NoError(t, json.Unmarshal(body, &raw))
	for _, key := range []string{"user", "email", "action", "product", "comments", "date_time"} {
		assert.Contains(t, raw, key)
	}
	assert.Equal(t, "OP", raw["action"])
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"user":"u","email":"","action":"AC","product":"p","comments":"c","date_time":"2024-05-01 09:07"}`, false},
		{"unknown action", `{"user":"u","action":"ZZ"}`, true},
		{"missing user", `{"action":"AC"}`, true},
		{"not json", `hello`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidEvent)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPublisher_Record(t *testing.T) {
	sink := &captureSink{}
	p := NewPublisher(sink, "qbcartlog", slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 0, 0, time.Local) }

	p.Record(context.Background(), &model.User{Username: "bob"}, model.ActionOrderCancelled, "Lamp", "order cancelled")
	p.Record(context.Background(), &model.User{Username: "bob"}, model.Action("XX"), "Lamp", "bad")

	require.Len(t, sink.bodies, 1)
	assert.Equal(t, "qbcartlog", sink.queue)

	e, err := Decode(sink.bodies[0])
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02 03:04", e.DateTime)
	assert.Equal(t, model.ActionOrderCancelled, e.Action)
}
