package redis

import (
	radix "github.com/mediocregopher/radix/v3"

	"github.com/example/goshop/internal/config"
)

// New 创建 Redis 连接池。调用方持有句柄并在退出时 Close。
func New(cfg *config.RedisConfig) (radix.Client, error) {
	size := cfg.PoolSize
	if size <= 0 {
		size = 10
	}
	return radix.NewPool("tcp", cfg.Addr, size)
}
