package utils

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

const (
	// Redis only has string type, there is no boolean or int, so we use "1" to represent true
	RedisTrue  = "1"
	RedisFalse = "0"

	DefaultRedisKeyDelimiter = ":"
)

// GetRedisClient connects to the redis specified by env and pings it once.
func GetRedisClient(ctx context.Context) (*redis.Client, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT")),
		Password: os.Getenv("REDIS_PASSWD"),
		DB:       0, // use default DB
	})
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		return nil, errors.Wrap(err, "ping redis")
	}
	return redisClient, nil
}

// RedisKeyParser builds namespaced keys like "following_info:user:company".
// Ids containing the delimiter are rejected, otherwise two different id
// tuples could encode to the same key.
type RedisKeyParser struct {
	delimiter string
}

func NewRedisKeyParser(delimiter string) RedisKeyParser {
	return RedisKeyParser{delimiter: delimiter}
}

func (r RedisKeyParser) ValidateId(id string) bool {
	return id != "" && !strings.Contains(id, r.delimiter)
}

func (r RedisKeyParser) EncodeKey(prefix string, ids ...string) (string, error) {
	for _, id := range ids {
		if !r.ValidateId(id) {
			return "", fmt.Errorf("invalid redis key id %q with delimiter %q", id, r.delimiter)
		}
	}
	return strings.Join(append([]string{prefix}, ids...), r.delimiter), nil
}

// DecodeKey splits key back into its ids, the prefix must match.
func (r RedisKeyParser) DecodeKey(prefix string, key string) ([]string, error) {
	splits := strings.Split(key, r.delimiter)
	if len(splits) < 2 || splits[0] != prefix {
		return nil, fmt.Errorf("invalid key: %s", key)
	}
	return splits[1:], nil
}
