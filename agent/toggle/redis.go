package toggle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	fieldForceOldVersion = "policy_force_old_version"
	fieldRefundErrorRate = "refund_api_error_rate"
	fieldFabricatedPfx   = "fabricated_order_status:"
)

// RedisSource reads toggles from a Redis hash on every snapshot so another process can
// flip scenarios mid-run. Fields missing from the hash keep the fallback value.
type RedisSource struct {
	client   redis.UniversalClient
	key      string
	fallback Reader
}

var _ Reader = (*RedisSource)(nil)

func NewRedisSource(client redis.UniversalClient, key string, fallback Reader) (*RedisSource, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("toggle hash key is required")
	}
	if fallback == nil {
		fallback = NewStore(Toggles{})
	}
	return &RedisSource{client: client, key: key, fallback: fallback}, nil
}

// DialRedis parses a redis:// url and verifies the connection.
func DialRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, errors.New("redis url is empty")
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func (r *RedisSource) Snapshot(ctx context.Context) Toggles {
	base := r.fallback.Snapshot(ctx)

	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		log.Warn().Err(err).Str("key", r.key).Msg("toggle hash unavailable, using fallback toggles")
		return base
	}
	return overlay(base, fields)
}

// Publish replaces the toggle hash with t.
func (r *RedisSource) Publish(ctx context.Context, t Toggles) error {
	values := map[string]any{
		fieldForceOldVersion: strconv.FormatBool(t.PolicyForceOldVersion),
		fieldRefundErrorRate: strconv.FormatFloat(t.RefundAPIErrorRate, 'f', -1, 64),
	}
	for userID, status := range t.FabricatedOrderStatus {
		values[fieldFabricatedPfx+userID] = status
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.key)
	pipe.HSet(ctx, r.key, values)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish toggles: %w", err)
	}
	return nil
}

func overlay(base Toggles, fields map[string]string) Toggles {
	out := base.Clone()
	for field, raw := range fields {
		switch {
		case field == fieldForceOldVersion:
			v, err := strconv.ParseBool(strings.TrimSpace(raw))
			if err != nil {
				log.Warn().Str("field", field).Str("value", raw).Msg("ignoring malformed toggle")
				continue
			}
			out.PolicyForceOldVersion = v
		case field == fieldRefundErrorRate:
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				log.Warn().Str("field", field).Str("value", raw).Msg("ignoring malformed toggle")
				continue
			}
			out.RefundAPIErrorRate = clampRate(v)
		case strings.HasPrefix(field, fieldFabricatedPfx):
			userID := strings.TrimPrefix(field, fieldFabricatedPfx)
			if userID == "" {
				continue
			}
			if out.FabricatedOrderStatus == nil {
				out.FabricatedOrderStatus = map[string]string{}
			}
			if strings.TrimSpace(raw) == "" {
				delete(out.FabricatedOrderStatus, userID)
				continue
			}
			out.FabricatedOrderStatus[userID] = raw
		}
	}
	return out
}
