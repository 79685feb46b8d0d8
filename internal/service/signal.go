package service

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/dwellspace/dwell"
)

type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func (s *SignalService) Publish(ctx context.Context, channel string, event dwell.Event) error {

	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, channel, jsonstr).Err()
	if err != nil {
		return err
	}

	return nil
}

// Subscribe returns a channel of decoded events plus a disposer releasing
// the underlying pubsub connection. Undecodable payloads are dropped.
func (s *SignalService) Subscribe(ctx context.Context, channel string) (<-chan dwell.Event, func()) {

	subCtx, cancel := context.WithCancel(ctx)
	pubsub := s.rdb.Subscribe(subCtx, channel)
	events := make(chan dwell.Event, 16)

	go func() {
		defer close(events)
		for msg := range pubsub.Channel() {
			var event dwell.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}
			select {
			case events <- event:
			case <-subCtx.Done():
				return
			}
		}
	}()

	dispose := func() {
		cancel()
		pubsub.Close()
	}
	return events, dispose
}
