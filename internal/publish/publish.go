// Package publish forwards reported frames to a Redis channel as JSON.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/speters/genielink/genie"
)

// Message is the JSON document published for each frame
type Message struct {
	Link    string    `json:"link"`
	Kind    string    `json:"kind"`
	Object  string    `json:"object"`
	Type    uint8     `json:"type"`
	Index   uint8     `json:"index"`
	Value   uint16    `json:"value"`
	Created time.Time `json:"created"`
}

type client interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// Publisher sends frames to a Redis channel
type Publisher struct {
	rdb     client
	channel string
}

// New connects to Redis and checks the connection
func New(addr string, db int, channel string) (*Publisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           db,
		DialTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	log.Infof("Publishing frames to redis %s channel %s", addr, channel)
	return &Publisher{rdb: rdb, channel: channel}, nil
}

func encode(link string, f genie.Frame, now time.Time) ([]byte, error) {
	kind := "event"
	if f.Command() == genie.ReportObj {
		kind = "report"
	}
	return json.Marshal(Message{
		Link:    link,
		Kind:    kind,
		Object:  f.Object().String(),
		Type:    uint8(f.Object()),
		Index:   f.Index(),
		Value:   f.Data(),
		Created: now.UTC(),
	})
}

// HandleFrame publishes f. It satisfies link.Subscriber.
func (p *Publisher) HandleFrame(ctx context.Context, link string, f genie.Frame) error {
	b, err := encode(link, f, time.Now())
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, b).Err()
}

func (p *Publisher) Close() error {
	return p.rdb.Close()
}
