package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Ventana deslizante sobre un sorted set: descarta marcas viejas, cuenta y
// solo registra el intento si queda cupo. Devuelve 1 si se permite.
const redisOTPAllowScript = `
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", now - window)
if redis.call("ZCARD", KEYS[1]) >= max then
  return 0
end
redis.call("ZADD", KEYS[1], now, ARGV[4])
redis.call("PEXPIRE", KEYS[1], window)
return 1
`

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type redisOTPRateLimiter struct {
	client redisEvaler
	window time.Duration
	max    int
	prefix string
	now    func() time.Time
}

// NewRedisOTPRateLimiter comparte el límite entre réplicas del servicio.
func NewRedisOTPRateLimiter(client redisEvaler, window time.Duration, max int) OTPRateLimiter {
	if client == nil {
		return nil
	}
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &redisOTPRateLimiter{
		client: client,
		window: window,
		max:    max,
		prefix: "login:otp:rl:",
		now:    time.Now,
	}
}

// Allow falla abierto si Redis no responde: el login no depende de Redis.
func (l *redisOTPRateLimiter) Allow(key string) bool {
	if l == nil || l.client == nil {
		return true
	}
	normalizedKey := strings.ToLower(strings.TrimSpace(key))
	if normalizedKey == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	now := l.now
	if now == nil {
		now = time.Now
	}
	nowMs := now().UnixMilli()
	windowMs := l.window.Milliseconds()
	if windowMs <= 0 {
		windowMs = time.Minute.Milliseconds()
	}
	member := strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()

	allowed, err := l.client.Eval(ctx, redisOTPAllowScript, []string{l.prefix + normalizedKey},
		nowMs, windowMs, l.max, member).Int()
	if err != nil {
		return true
	}
	return allowed == 1
}
