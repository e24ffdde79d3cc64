package conn

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis describes where bars are published. More than one address selects cluster mode.
type Redis struct {
	Addrs       []string      `yaml:"addrs" env:"ADDRS" envSeparator:","`
	Username    string        `yaml:"username" env:"USERNAME"`
	Password    string        `yaml:"password" env:"PASSWORD"`
	DB          int           `yaml:"db" env:"DB"`
	Channel     string        `yaml:"channel" env:"CHANNEL"`
	DialTimeout time.Duration `yaml:"dial_timeout" env:"DIAL_TIMEOUT"`
	PoolSize    int           `yaml:"pool_size" env:"POOL_SIZE"`
}

func (r Redis) Enabled() bool {
	return len(r.Addrs) != 0
}

func (r Redis) options() *redis.UniversalOptions {
	timeout := r.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &redis.UniversalOptions{
		Addrs:        r.Addrs,
		Username:     r.Username,
		Password:     r.Password,
		DB:           r.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		PoolSize:     r.PoolSize,
	}
}

// OpenRedis connects and pings.
func OpenRedis(ctx context.Context, r Redis) (redis.UniversalClient, error) {
	client := redis.NewUniversalClient(r.options())
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
