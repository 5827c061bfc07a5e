package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/emilythestrangee/kaen/internal/models"
)

// Redis stores each post's collection as one JSON value.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

func (r *Redis) Get(ctx context.Context, postID int) ([]models.Comment, bool, error) {
	data, err := r.client.Get(ctx, Key(postID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get post %d: %w", postID, err)
	}

	var comments []models.Comment
	if err := json.Unmarshal(data, &comments); err != nil {
		// A value we cannot read is as good as a miss.
		_ = r.client.Del(ctx, Key(postID)).Err()
		return nil, false, nil
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	return comments, true, nil
}

func (r *Redis) Set(ctx context.Context, postID int, comments []models.Comment) error {
	data, err := json.Marshal(clone(comments))
	if err != nil {
		return fmt.Errorf("encode comments of post %d: %w", postID, err)
	}
	if err := r.client.Set(ctx, Key(postID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set post %d: %w", postID, err)
	}
	return nil
}

func (r *Redis) Generation(ctx context.Context, postID int) (uint64, error) {
	gen, err := generationOf(r.client.Get(ctx, GenerationKey(postID)))
	if err != nil {
		return 0, fmt.Errorf("redis generation post %d: %w", postID, err)
	}
	return gen, nil
}

// Fill writes under WATCH on the generation key, so an Invalidate racing
// with it aborts the transaction.
func (r *Redis) Fill(ctx context.Context, postID int, gen uint64, comments []models.Comment) (bool, error) {
	data, err := json.Marshal(clone(comments))
	if err != nil {
		return false, fmt.Errorf("encode comments of post %d: %w", postID, err)
	}

	stored := false
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := generationOf(tx.Get(ctx, GenerationKey(postID)))
		if err != nil {
			return err
		}
		if cur != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, Key(postID), data, r.ttl)
			return nil
		})
		if err == nil {
			stored = true
		}
		return err
	}, GenerationKey(postID))
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis fill post %d: %w", postID, err)
	}
	return stored, nil
}

func (r *Redis) Invalidate(ctx context.Context, postID int) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, Key(postID))
		pipe.Incr(ctx, GenerationKey(postID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis del post %d: %w", postID, err)
	}
	return nil
}

func generationOf(cmd *redis.StringCmd) (uint64, error) {
	gen, err := cmd.Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}
