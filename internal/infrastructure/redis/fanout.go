package redis

import (
	"context"
	"encoding/json"

	"engage-ws/internal/hub"

	"go.uber.org/zap"
)

// fanoutChannel carries group-broadcast envelopes between instances.
const fanoutChannel = "engage:fanout"

// Fanout implements hub.Fanout over Redis pub/sub.
type Fanout struct {
	client *RedisClient
	log    *zap.Logger
}

func NewFanout(client *RedisClient, log *zap.Logger) *Fanout {
	return &Fanout{client: client, log: log}
}

func (f *Fanout) Publish(ctx context.Context, env hub.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return f.client.client.Publish(ctx, fanoutChannel, data).Err()
}

// Subscribe applies remote envelopes until ctx is cancelled. The initial
// subscription is confirmed before returning so a dead bus surfaces at
// startup, where the caller downgrades to local-only mode.
func (f *Fanout) Subscribe(ctx context.Context, apply func(hub.Envelope)) error {
	sub := f.client.client.Subscribe(ctx, fanoutChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env hub.Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					f.log.Warn("dropping malformed fanout envelope", zap.Error(err))
					continue
				}
				apply(env)
			}
		}
	}()
	return nil
}
