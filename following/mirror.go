package following

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Luismorlan/insighthub/utils"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

const (
	DefaultMirrorTTL = time.Hour

	followingSetPrefix  = "following"
	followingAllPrefix  = "following_all"
	followingInfoPrefix = "following_info"
	followingSyncPrefix = "following_synced"

	// Watched transactions are retried this many times when a concurrent
	// writer touches the user's keys.
	maxReplaceAttempts = 3
)

// Mirror is the fast read path for following data. It is a projection of the
// durable rows and can be rebuilt from them at any time.
type Mirror interface {
	// Companies returns the auto summarize company set. warm is false when the
	// mirror holds nothing for the user, which is different from an empty set.
	Companies(ctx context.Context, userId string) (companyIds []string, warm bool, err error)
	// Info returns the info blob of one following, ok is false when absent.
	Info(ctx context.Context, userId string, companyId string) (info *Info, ok bool, err error)
	Put(ctx context.Context, userId string, info Info) error
	Remove(ctx context.Context, userId string, companyId string) error
	// Replace swaps the user's whole mirror for snapshot, readers see either
	// the old or the new content and never a mix.
	Replace(ctx context.Context, userId string, snapshot []Info) error
	// Invalidate marks the user's mirror cold so the next read rebuilds it.
	Invalidate(ctx context.Context, userId string) error
}

// RedisMirror keeps, per user:
//
//	following:{user}            set of auto summarize company ids
//	following_all:{user}        set of every followed company id
//	following_info:{user}:{id}  json Info blob
//	following_synced:{user}     marker, present once the mirror is warm
type RedisMirror struct {
	client *redis.Client
	keys   utils.RedisKeyParser
	ttl    time.Duration
}

func NewRedisMirror(client *redis.Client, ttl time.Duration) *RedisMirror {
	if ttl <= 0 {
		ttl = DefaultMirrorTTL
	}
	return &RedisMirror{
		client: client,
		keys:   utils.NewRedisKeyParser(utils.DefaultRedisKeyDelimiter),
		ttl:    ttl,
	}
}

type userKeys struct {
	set, all, synced string
}

func (m *RedisMirror) userKeys(userId string) (userKeys, error) {
	set, err := m.keys.EncodeKey(followingSetPrefix, userId)
	if err != nil {
		return userKeys{}, err
	}
	all, _ := m.keys.EncodeKey(followingAllPrefix, userId)
	synced, _ := m.keys.EncodeKey(followingSyncPrefix, userId)
	return userKeys{set: set, all: all, synced: synced}, nil
}

func (m *RedisMirror) infoKey(userId string, companyId string) (string, error) {
	return m.keys.EncodeKey(followingInfoPrefix, userId, companyId)
}

func (m *RedisMirror) Companies(ctx context.Context, userId string) ([]string, bool, error) {
	keys, err := m.userKeys(userId)
	if err != nil {
		return nil, false, err
	}

	var exists *redis.IntCmd
	var members *redis.StringSliceCmd
	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		exists = pipe.Exists(ctx, keys.synced)
		members = pipe.SMembers(ctx, keys.set)
		return nil
	})
	if err != nil {
		return nil, false, errors.Wrap(err, "read following set")
	}
	if exists.Val() == 0 {
		return nil, false, nil
	}
	return members.Val(), true, nil
}

func (m *RedisMirror) Info(ctx context.Context, userId string, companyId string) (*Info, bool, error) {
	key, err := m.infoKey(userId, companyId)
	if err != nil {
		return nil, false, err
	}
	raw, err := m.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "read following info")
	}

	var info Info
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, false, errors.Wrapf(err, "decode following info %s", key)
	}
	return &info, true, nil
}

func (m *RedisMirror) Put(ctx context.Context, userId string, info Info) error {
	keys, err := m.userKeys(userId)
	if err != nil {
		return err
	}
	infoKey, err := m.infoKey(userId, info.CompanyId)
	if err != nil {
		return err
	}
	blob, err := json.Marshal(info)
	if err != nil {
		return err
	}

	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, infoKey, blob, m.ttl)
		pipe.SAdd(ctx, keys.all, info.CompanyId)
		if info.AutoSummarize {
			pipe.SAdd(ctx, keys.set, info.CompanyId)
		} else {
			pipe.SRem(ctx, keys.set, info.CompanyId)
		}
		pipe.Expire(ctx, keys.set, m.ttl)
		pipe.Expire(ctx, keys.all, m.ttl)
		return nil
	})
	return errors.Wrap(err, "put following info")
}

func (m *RedisMirror) Remove(ctx context.Context, userId string, companyId string) error {
	keys, err := m.userKeys(userId)
	if err != nil {
		return err
	}
	infoKey, err := m.infoKey(userId, companyId)
	if err != nil {
		return err
	}

	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, keys.set, companyId)
		pipe.SRem(ctx, keys.all, companyId)
		pipe.Del(ctx, infoKey)
		return nil
	})
	return errors.Wrap(err, "remove following info")
}

func (m *RedisMirror) Replace(ctx context.Context, userId string, snapshot []Info) error {
	keys, err := m.userKeys(userId)
	if err != nil {
		return err
	}

	blobs := make(map[string][]byte, len(snapshot))
	for _, info := range snapshot {
		k, err := m.infoKey(userId, info.CompanyId)
		if err != nil {
			return err
		}
		if blobs[k], err = json.Marshal(info); err != nil {
			return err
		}
	}

	replace := func(tx *redis.Tx) error {
		// Stale info blobs are only reachable through the all set, read it
		// under WATCH so a concurrent Put aborts and retries this replace.
		previous, err := tx.SMembers(ctx, keys.all).Result()
		if err != nil && err != redis.Nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			stale := []string{keys.set, keys.all}
			for _, companyId := range previous {
				if k, err := m.infoKey(userId, companyId); err == nil {
					stale = append(stale, k)
				}
			}
			pipe.Del(ctx, stale...)

			for _, info := range snapshot {
				k, _ := m.infoKey(userId, info.CompanyId)
				pipe.Set(ctx, k, blobs[k], m.ttl)
				pipe.SAdd(ctx, keys.all, info.CompanyId)
				if info.AutoSummarize {
					pipe.SAdd(ctx, keys.set, info.CompanyId)
				}
			}
			pipe.Expire(ctx, keys.set, m.ttl)
			pipe.Expire(ctx, keys.all, m.ttl)
			pipe.Set(ctx, keys.synced, utils.RedisTrue, m.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxReplaceAttempts; i++ {
		if err = m.client.Watch(ctx, replace, keys.all); err != redis.TxFailedErr {
			return err
		}
	}
	return err
}

func (m *RedisMirror) Invalidate(ctx context.Context, userId string) error {
	keys, err := m.userKeys(userId)
	if err != nil {
		return err
	}
	return errors.Wrap(m.client.Del(ctx, keys.synced).Err(), "invalidate following mirror")
}
