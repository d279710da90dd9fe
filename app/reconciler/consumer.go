package reconciler

import (
	"context"
	"errors"
	"os"

	"go.uber.org/zap"

	"github.com/openscrutiny/tallyx/pkg/redis"
	"github.com/openscrutiny/tallyx/pkg/utils"
)

// setupConsumer joins the ballot stream as a consumer group member. The
// group means a fleet of reconcilers splits the messages instead of every
// replica reconciling after every ballot.
func (a *App) setupConsumer() error {
	name, _ := os.Hostname()
	if name == "" {
		name = "reconciler"
	}

	consumer, err := redis.NewStreamConsumer(a.RedisClient, redis.StreamConsumerConfig{
		Stream:   redis.StreamBallots,
		Group:    "reconciler",
		Consumer: utils.Env("CONSUMER_NAME", name),
		Logger:   a.Logger,
	})
	if err != nil {
		return err
	}

	a.Consumer = consumer
	return nil
}

// consumeStream blocks on the ballot stream until shutdown. Messages only
// flip the dirty flag; the actual pass happens on the next cron tick so a
// burst of postings costs one replay, not many.
func (a *App) consumeStream(ctx context.Context) {
	err := a.Consumer.Run(ctx, func(_ context.Context, msg redis.Message) error {
		a.dirty.Store(true)
		a.Logger.Debug("Ballot posting flagged for reconciliation",
			zap.Uint64("ballot_id", msg.GetBallotID()),
			zap.String("ballot_type", msg.GetString("ballot_type")))
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error("Ballot stream consumer stopped", zap.Error(err))
	}
}
