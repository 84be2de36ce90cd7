package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crawford.app/podcastserver/internal/config"
	"crawford.app/podcastserver/pkg/storage"
	"github.com/meilisearch/meilisearch-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient connects to REDIS_URL. Without it, or when redis does not
// answer, it returns nil and upload cooldowns are disabled.
func NewRedisClient(ctx context.Context, cfg *config.Config) *redis.Client {
	if cfg.RedisURL == "" {
		zap.L().Warn("REDIS_URL not set, upload cooldowns disabled")
		return nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		zap.L().Warn("invalid REDIS_URL, upload cooldowns disabled", zap.Error(err))
		return nil
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		zap.L().Warn("redis unreachable, upload cooldowns disabled", zap.String("addr", opts.Addr), zap.Error(err))
		client.Close()
		return nil
	}

	zap.L().Info("redis connected", zap.String("addr", opts.Addr))
	return client
}

// NewSearchClient returns nil when MEILISEARCH_HOST is unset; search then runs
// against the database.
func NewSearchClient(cfg *config.Config) meilisearch.ServiceManager {
	host := strings.TrimSpace(cfg.MeiliSearchHost)
	if host == "" {
		return nil
	}
	if !strings.HasPrefix(host, "http") {
		host = "http://" + host + ":7700"
	}
	return meilisearch.New(host, meilisearch.WithAPIKey(cfg.MeiliMasterKey))
}

func NewStorage(cfg *config.Config) (storage.AssetStorage, error) {
	switch cfg.StorageDriver {
	case "cloudinary":
		return storage.NewCloudinaryStorage(storage.CloudinaryConfig{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		})
	case "local", "":
		return storage.NewLocalStorage(cfg.UploadDir, cfg.UploadURLPrefix)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
