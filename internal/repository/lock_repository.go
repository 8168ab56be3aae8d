package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/logsmarket001/api-fidelity-trust/internal/apperrors"
)

type LockRepository interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (*DistributedLock, error)
	ReleaseLock(ctx context.Context, lock *DistributedLock) error
	IsLocked(ctx context.Context, key string) (bool, error)
}

type DistributedLock struct {
	Key        string
	Value      string
	TTL        time.Duration
	AcquiredAt time.Time
}

type lockRepository struct {
	client *redis.Client
}

func NewLockRepository(client *redis.Client) LockRepository {
	return &lockRepository{
		client: client,
	}
}

const (
	lockPrefix = "lock:"
	lockScript = `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
)

func (r *lockRepository) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*DistributedLock, error) {
	lockKey := lockPrefix + key
	lockValue := uuid.New().String()

	result, err := r.client.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		return nil, apperrors.Dependency("failed to acquire lock", err)
	}

	if !result {
		return nil, apperrors.Conflict("lock already acquired for key: %s", key)
	}

	return &DistributedLock{
		Key:        lockKey,
		Value:      lockValue,
		TTL:        ttl,
		AcquiredAt: time.Now(),
	}, nil
}

// ReleaseLock deletes the lock only if we still hold it.
func (r *lockRepository) ReleaseLock(ctx context.Context, lock *DistributedLock) error {
	result, err := r.client.Eval(ctx, lockScript, []string{lock.Key}, lock.Value).Result()
	if err != nil {
		return apperrors.Dependency("failed to release lock", err)
	}

	if result.(int64) == 0 {
		return fmt.Errorf("lock not found or already released: %s", lock.Key)
	}

	return nil
}

func (r *lockRepository) IsLocked(ctx context.Context, key string) (bool, error) {
	lockKey := lockPrefix + key
	exists, err := r.client.Exists(ctx, lockKey).Result()
	if err != nil {
		return false, apperrors.Dependency("failed to check lock existence", err)
	}

	return exists > 0, nil
}

// AccountLockManager serializes ledger operations per account
type AccountLockManager struct {
	lockRepo LockRepository
}

func NewAccountLockManager(lockRepo LockRepository) *AccountLockManager {
	return &AccountLockManager{
		lockRepo: lockRepo,
	}
}

func (m *AccountLockManager) LockAccount(ctx context.Context, userID string, ttl time.Duration) (*DistributedLock, error) {
	lockKey := fmt.Sprintf("account:%s", userID)
	return m.lockRepo.AcquireLock(ctx, lockKey, ttl)
}

func (m *AccountLockManager) ReleaseLock(ctx context.Context, lock *DistributedLock) error {
	return m.lockRepo.ReleaseLock(ctx, lock)
}

// IsAccountLocked reports whether a ledger operation currently holds the
// account's lock.
func (m *AccountLockManager) IsAccountLocked(ctx context.Context, userID string) (bool, error) {
	return m.lockRepo.IsLocked(ctx, fmt.Sprintf("account:%s", userID))
}

// IdempotencyRepository caches responses keyed by client idempotency key
type IdempotencyRepository interface {
	Set(ctx context.Context, key string, response interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, out interface{}) (bool, error)
	Delete(ctx context.Context, key string) error
}

type idempotencyRepository struct {
	client *redis.Client
}

func NewIdempotencyRepository(client *redis.Client) IdempotencyRepository {
	return &idempotencyRepository{
		client: client,
	}
}

const idempotencyPrefix = "idempotency:"

func (r *idempotencyRepository) Set(ctx context.Context, key string, response interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to encode idempotency response: %w", err)
	}

	if err := r.client.Set(ctx, idempotencyPrefix+key, payload, ttl).Err(); err != nil {
		return apperrors.Dependency("failed to set idempotency key", err)
	}

	return nil
}

func (r *idempotencyRepository) Get(ctx context.Context, key string, out interface{}) (bool, error) {
	result, err := r.client.Get(ctx, idempotencyPrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, apperrors.Dependency("failed to get idempotency response", err)
	}

	if err := json.Unmarshal(result, out); err != nil {
		return false, fmt.Errorf("failed to decode idempotency response: %w", err)
	}

	return true, nil
}

func (r *idempotencyRepository) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, idempotencyPrefix+key).Err(); err != nil {
		return apperrors.Dependency("failed to delete idempotency key", err)
	}

	return nil
}
