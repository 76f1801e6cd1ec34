package lesson

import (
	"fmt"
	"time"

	"github.com/studylane/sync-agent/internal/infrastructure/driver"
	"go.uber.org/zap"
)

// ViewCache holds server-derived view payloads the UI reads between
// refetches. Invalidation only deletes keys, repopulation happens on the
// next read through the platform
type ViewCache struct {
	store  driver.KeyValueDB
	ttl    time.Duration
	logger *zap.Logger
}

// NewViewCache create a ViewCache instance
func NewViewCache(store driver.KeyValueDB, ttl time.Duration, logger *zap.Logger) *ViewCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ViewCache{
		store:  store,
		ttl:    ttl,
		logger: logger,
	}
}

// GraphKey cache key of the graph-level view for one student
func GraphKey(graphID, studentID string) string {
	return fmt.Sprintf("views:graph:%s:student:%s", graphID, studentID)
}

// LessonKey cache key of the lesson-level view for one student
func LessonKey(lessonID, studentID string) string {
	return fmt.Sprintf("views:lesson:%s:student:%s", lessonID, studentID)
}

// Put store a view payload
func (vc *ViewCache) Put(key, payload string) {
	if err := vc.store.SetEX(key, payload, vc.ttl); err != nil {
		vc.logger.Error("failed to cache view", zap.String("cache.key", key), zap.Error(err))
	}
}

// Get read a cached view payload
func (vc *ViewCache) Get(key string) (string, bool) {
	payload, err := vc.store.Get(key)
	if err != nil {
		if err != driver.ErrKeyNotFound {
			vc.logger.Error("failed to read cached view", zap.String("cache.key", key), zap.Error(err))
		}
		return "", false
	}
	return payload, true
}

// Invalidate drop cached views so dependent components refetch
func (vc *ViewCache) Invalidate(keys ...string) {
	for _, key := range keys {
		if err := vc.store.Del(key); err != nil {
			vc.logger.Error("failed to invalidate view", zap.String("cache.key", key), zap.Error(err))
			continue
		}
		vc.logger.Debug("view invalidated", zap.String("cache.key", key))
	}
}
