package lock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	consul "github.com/hashicorp/consul/api"
)

var ErrLockNotAcquired = errors.New("lock: not acquired")

// Consul holds keys as Consul session locks so exclusion spans replicas.
type Consul struct {
	client   *consul.Client
	prefix   string
	waitTime time.Duration
	logger   *slog.Logger
}

func NewConsul(client *consul.Client, prefix string, waitTime time.Duration, logger *slog.Logger) *Consul {
	return &Consul{
		client:   client,
		prefix:   prefix,
		waitTime: waitTime,
		logger:   logger,
	}
}

// Acquire takes the Consul lock for key. Keys are hashed because they
// embed credentials and arbitrary user ids.
func (c *Consul) Acquire(ctx context.Context, key string) (func(), error) {
	sum := sha256.Sum256([]byte(key))
	kvKey := path.Join(c.prefix, hex.EncodeToString(sum[:]))

	lk, err := c.client.LockOpts(c.options(kvKey))
	if err != nil {
		return nil, fmt.Errorf("lock: prepare %s: %w", kvKey, err)
	}

	stop := make(chan struct{})
	var stopOnce sync.Once
	halt := func() { stopOnce.Do(func() { close(stop) }) }

	go func() {
		select {
		case <-ctx.Done():
			halt()
		case <-stop:
		}
	}()

	lost, err := lk.Lock(stop)
	if err != nil {
		halt()
		return nil, fmt.Errorf("lock: acquire %s: %w", kvKey, err)
	}
	if lost == nil {
		// waitTime elapsed or stop fired before the lock was granted
		halt()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrLockNotAcquired
	}

	var release sync.Once
	return func() {
		release.Do(func() {
			halt()
			if err := lk.Unlock(); err != nil {
				c.logger.Warn("CONSUL_UNLOCK_FAILED", "key", kvKey, "err", err)
			}
		})
	}, nil
}

// options bounds a single attempt by waitTime; without LockTryOnce the
// client keeps polling until stop closes.
func (c *Consul) options(kvKey string) *consul.LockOptions {
	return &consul.LockOptions{
		Key:          kvKey,
		SessionTTL:   "15s",
		LockWaitTime: c.waitTime,
		LockTryOnce:  true,
	}
}
