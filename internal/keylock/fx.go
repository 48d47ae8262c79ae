package keylock

import (
	"strings"

	"github.com/buildquote/matchline/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("keylock",
	fx.Provide(New),
	fx.Provide(ProvideLocker),
)

// ProvideLocker builds the distributed lock when redis is configured. A nil
// locker disables cross-replica locking; the unique index still holds.
func ProvideLocker(cfg config.Config) *Locker {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
	})
	return NewLocker(client)
}
