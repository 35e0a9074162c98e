package service

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/stelae/stelae"
)

// EditChannel is the redis pub/sub channel committed edits are announced on.
const EditChannel = "stelae:edits"

// SignalService fans committed edit events out to realtime listeners over
// redis pub/sub. Publishing is fire and forget; the database row is already
// committed when an event goes out.
type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func (s *SignalService) PublishEdit(ctx context.Context, event stelae.Event) error {
	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.rdb.Publish(ctx, EditChannel, jsonstr).Err()
}

// Subscribe opens a subscription on the edit channel. The caller owns the
// returned PubSub and must close it.
func (s *SignalService) Subscribe(ctx context.Context) *redis.PubSub {
	return s.rdb.Subscribe(ctx, EditChannel)
}
