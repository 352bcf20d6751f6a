// Package directory resolves user profiles (location, skills, categories)
// from the read-only profiles table, with a Redis read-through cache.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"handyhub-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const keyPrefix = "directory:profile:"

type Directory interface {
	Profile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
}

// DBDirectory reads profiles with gorm.
type DBDirectory struct {
	DB *gorm.DB
}

func (d *DBDirectory) Profile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	var p domain.Profile
	if err := d.DB.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("Failed to fetch profile: %w", err)
	}
	return &p, nil
}

// CachedDirectory caches Next's answers in Redis for TTL. Cache failures
// fall through to Next.
type CachedDirectory struct {
	Next   Directory
	Client *redis.Client
	TTL    time.Duration
}

func (d *CachedDirectory) Profile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	key := keyPrefix + userID.String()
	if d.Client != nil {
		b, err := d.Client.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var p domain.Profile
			if jerr := json.Unmarshal(b, &p); jerr == nil {
				return &p, nil
			}
		case !errors.Is(err, redis.Nil):
			log.Warn().Err(err).Str("key", key).Msg("profile cache read failed")
		}
	}

	p, err := d.Next.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if d.Client != nil {
		if b, jerr := json.Marshal(p); jerr == nil {
			if serr := d.Client.Set(ctx, key, b, d.TTL).Err(); serr != nil {
				log.Warn().Err(serr).Str("key", key).Msg("profile cache write failed")
			}
		}
	}
	return p, nil
}

// Invalidate drops the cached profile for userID.
func (d *CachedDirectory) Invalidate(ctx context.Context, userID uuid.UUID) error {
	if d.Client == nil {
		return nil
	}
	return d.Client.Del(ctx, keyPrefix+userID.String()).Err()
}
