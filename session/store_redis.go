package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions in Redis with a TTL, so multiple storefront
// instances can share one session pool. The TTL should match the
// absolute session timeout; the idle timeout is still enforced by the
// Monitor on every request.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a session store on the given client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultAbsoluteTimeout
	}
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(token string) string {
	return fmt.Sprintf("shopfront:session:%s", token)
}

func (s *RedisStore) Get(token string) (Session, bool) {
	data, err := s.client.Get(context.Background(), redisKey(token)).Bytes()
	if err != nil {
		return Session{}, false
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, false
	}
	return sess, true
}

func (s *RedisStore) Put(token string, sess Session) {
	data, err := json.Marshal(sess)
	if err != nil {
		return
	}
	_ = s.client.Set(context.Background(), redisKey(token), data, s.ttl).Err()
}

func (s *RedisStore) Delete(token string) {
	_ = s.client.Del(context.Background(), redisKey(token)).Err()
}
