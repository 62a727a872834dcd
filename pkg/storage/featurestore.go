package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ErikRydengard/BSI/pkg/common/logger"
	"github.com/ErikRydengard/BSI/pkg/common/models"
)

// ErrFeatureSetNotCached reports a cache miss; callers fall back to Postgres.
var ErrFeatureSetNotCached = errors.New("storage: feature set not cached")

// FeatureStore keeps hot episode feature sets in Redis so study tooling
// reads do not hit Postgres on every request.
type FeatureStore struct {
	client   *redis.Client
	cacheTTL time.Duration
}

func NewFeatureStore(client *redis.Client, cacheTTL time.Duration) *FeatureStore {
	return &FeatureStore{client: client, cacheTTL: cacheTTL}
}

func featureKey(episodeID string) string {
	return fmt.Sprintf("features:episode:%s", episodeID)
}

func (f *FeatureStore) Put(ctx context.Context, set models.EpisodeFeatureSet) error {
	data, err := json.Marshal(set)
	if err != nil {
		return err
	}
	key := featureKey(set.EpisodeID)
	if err := f.client.Set(ctx, key, data, f.cacheTTL).Err(); err != nil {
		return err
	}
	logger.Log.WithFields(map[string]interface{}{
		"key":  key,
		"size": len(data),
	}).Debug("Cached episode features")
	return nil
}

func (f *FeatureStore) Get(ctx context.Context, episodeID string) (models.EpisodeFeatureSet, error) {
	data, err := f.client.Get(ctx, featureKey(episodeID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.EpisodeFeatureSet{}, ErrFeatureSetNotCached
	}
	if err != nil {
		return models.EpisodeFeatureSet{}, err
	}

	var set models.EpisodeFeatureSet
	if err := json.Unmarshal(data, &set); err != nil {
		return models.EpisodeFeatureSet{}, err
	}
	return set, nil
}

func (f *FeatureStore) Invalidate(ctx context.Context, episodeIDs ...string) error {
	if len(episodeIDs) == 0 {
		return nil
	}
	keys := make([]string, len(episodeIDs))
	for i, id := range episodeIDs {
		keys[i] = featureKey(id)
	}
	return f.client.Del(ctx, keys...).Err()
}
