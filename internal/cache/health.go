package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sumitkumar2005/xeno-crm/internal/observability"
)

// NewHealthChecker pings Redis and checks that queueKey is either absent or a
// list. Anything else there would make every BRPOP of the stats worker fail.
func NewHealthChecker(client *redis.Client, queueKey string) observability.Checker {
	return observability.NewCheck("redis", func(ctx context.Context) error {
		if client == nil {
			return errors.New("redis client is nil")
		}

		pipe := client.Pipeline()
		ping := pipe.Ping(ctx)
		kind := pipe.Type(ctx, queueKey)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("redis unreachable: %w", err)
		}
		if err := ping.Err(); err != nil {
			return err
		}

		switch t := kind.Val(); t {
		case "none", "list":
			return nil
		default:
			return fmt.Errorf("stats queue %q holds a %s, want a list", queueKey, t)
		}
	})
}
