package pin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"
	"github.com/matenet/pin/adapters/store"
	"github.com/matenet/pin/config"
	"github.com/matenet/pin/ports"
	"github.com/redis/go-redis/v9"
)

const sessionDirName = "session"

// backing is the persisted store the session token lives in
type backing struct {
	store ports.Store
	redis *redis.Client
	close func() error
}

// openBacking picks Redis when REDIS_URL is set, otherwise a LevelDB
// database under the data directory
func openBacking(ctx context.Context, cfg config.Config, logger log.Logger) (*backing, error) {
	if cfg.RedisURL != "" {
		client, err := store.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		logger.Debug("Using redis session store")
		return &backing{store: store.NewRedisStore(client), redis: client, close: client.Close}, nil
	}

	dir := filepath.Join(cfg.DataDir, sessionDirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	db, err := store.OpenLevelDBStore(dir)
	if err != nil {
		return nil, err
	}
	logger.Debug("Using leveldb session store", "dir", dir)
	return &backing{store: db, close: db.Close}, nil
}
