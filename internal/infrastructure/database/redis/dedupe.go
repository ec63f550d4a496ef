package redis

import (
	"context"
	"time"

	"github.com/turtacn/EduLoan-Engine/pkg/errors"
)

// Deduper remembers keys for a fixed window. It backs settlement callback
// de-duplication: a bank may deliver the same callback more than once.
type Deduper struct {
	client *Client
	ttl    time.Duration
}

func NewDeduper(client *Client, ttl time.Duration) *Deduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Deduper{client: client, ttl: ttl}
}

// FirstSeen atomically records key and reports whether it was new.
func (d *Deduper) FirstSeen(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.client.Key("dedupe", key), time.Now().UTC().Format(time.RFC3339), d.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "failed to record dedupe key")
	}
	return ok, nil
}

// Forget drops key so a later delivery is processed again.
func (d *Deduper) Forget(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, d.client.Key("dedupe", key)).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to drop dedupe key")
	}
	return nil
}

//Personal.AI order the ending
