// Package redis connects the session service to Redis.
//
// It wraps the go-redis client with a retrying Connect and a Healthcheck
// suitable for readiness probes. Configuration comes from the Config struct,
// usually populated from the environment through pkg/config:
//
//	cfg, err := config.Load[redis.Config]()
//	if err != nil {
//		return err
//	}
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err // ErrRedisNotReady after all attempts failed
//	}
//	defer client.Close()
//
//	ready := redis.Healthcheck(client)
//	if err := ready(ctx); err != nil {
//		// not ready
//	}
//
// Either REDIS_URL or REDIS_HOST/REDIS_PORT/REDIS_USERNAME/REDIS_PASSWORD/REDIS_DB
// must be set; the URL wins when both are present.
package redis
