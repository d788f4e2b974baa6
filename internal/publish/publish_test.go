package publish

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speters/genielink/genie"
)

type fakeClient struct {
	channel string
	msgs    [][]byte
}

func (c *fakeClient) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	c.channel = channel
	c.msgs = append(c.msgs, message.([]byte))
	return redis.NewIntResult(1, nil)
}

func (c *fakeClient) Close() error { return nil }

func TestEncode(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	b, err := encode("display", genie.NewFrame(genie.ReportObj, genie.Gauge, 2, 500), now)
	require.NoError(t, err)

	var m Message
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, Message{
		Link:    "display",
		Kind:    "report",
		Object:  "Gauge",
		Type:    uint8(genie.Gauge),
		Index:   2,
		Value:   500,
		Created: now,
	}, m)
}

func TestHandleFrame(t *testing.T) {
	fc := &fakeClient{}
	p := &Publisher{rdb: fc, channel: "genie:events"}

	require.NoError(t, p.HandleFrame(context.Background(), "display", genie.NewFrame(genie.ReportEvent, genie.WinButton, 0, 1)))
	assert.Equal(t, "genie:events", fc.channel)
	require.Len(t, fc.msgs, 1)
	assert.Contains(t, string(fc.msgs[0]), `"kind":"event"`)
	assert.Contains(t, string(fc.msgs[0]), `"object":"WinButton"`)
	assert.NoError(t, p.Close())
}

func TestNewUnreachable(t *testing.T) {
	_, err := New("127.0.0.1:1", 0, "genie:events")
	assert.Error(t, err)
}
