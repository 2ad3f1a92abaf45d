package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"drivingschool_backend/internals/features/users/auth/model"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RevokedTokenStore remembers logged-out access tokens until they expire.
type RevokedTokenStore interface {
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
	// Purge drops entries whose expiry is before the given instant.
	Purge(ctx context.Context, before time.Time) (int64, error)
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

/* =========================================================
   GORM (token_blacklist table)
========================================================= */

type GormRevokedTokenStore struct {
	DB *gorm.DB
}

func NewGormRevokedTokenStore(db *gorm.DB) *GormRevokedTokenStore {
	return &GormRevokedTokenStore{DB: db}
}

func (s *GormRevokedTokenStore) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	row := model.TokenBlacklist{TokenHash: HashToken(token), ExpiredAt: expiresAt.UTC()}
	return s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
}

func (s *GormRevokedTokenStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	var row model.TokenBlacklist
	err := s.DB.WithContext(ctx).
		Select("id").
		Where("token_hash = ?", HashToken(token)).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *GormRevokedTokenStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).
		Unscoped().
		Where("expired_at < ?", before.UTC()).
		Delete(&model.TokenBlacklist{})
	return res.RowsAffected, res.Error
}

/* =========================================================
   Redis (shared across instances, TTL does the purge)
========================================================= */

type RedisRevokedTokenStore struct {
	Client redis.UniversalClient
	Prefix string
	Now    func() time.Time
}

func NewRedisRevokedTokenStore(client redis.UniversalClient) *RedisRevokedTokenStore {
	return &RedisRevokedTokenStore{
		Client: client,
		Prefix: "drivingschool:revoked:",
		Now:    time.Now,
	}
}

func (s *RedisRevokedTokenStore) key(token string) string {
	return s.Prefix + HashToken(token)
}

func (s *RedisRevokedTokenStore) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.Now())
	if ttl <= 0 {
		return nil
	}
	return s.Client.Set(ctx, s.key(token), 1, ttl).Err()
}

func (s *RedisRevokedTokenStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := s.Client.Exists(ctx, s.key(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisRevokedTokenStore) Purge(context.Context, time.Time) (int64, error) {
	return 0, nil
}
