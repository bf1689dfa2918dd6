// Package redis connects the job engine to a Redis server.
//
// Redis is optional: when REDIS_URL is set, queue rate-limit windows are kept
// in Redis (see ratelimit.RedisStore) so several engine processes share the
// same per-queue budget, and the readiness probe pings the server.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	store, err := ratelimit.NewRedisStore(client)
package redis
