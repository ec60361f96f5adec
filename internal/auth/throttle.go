package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrThrottled = errors.New("too many failed login attempts")

// atomic INCR, set the window expiry on the first hit
var incrExpireScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// LoginThrottle counts failed password logins per email in fixed Redis
// windows. A nil throttle, or one without Redis, never blocks. Redis errors
// fail open.
type LoginThrottle struct {
	Redis  *redis.Client
	Max    int
	Window time.Duration
}

func NewLoginThrottle(rdb *redis.Client, max int, window time.Duration) *LoginThrottle {
	return &LoginThrottle{Redis: rdb, Max: max, Window: window}
}

func throttleKey(email string) string {
	return "rl:login:" + email
}

func (t *LoginThrottle) enabled() bool {
	return t != nil && t.Redis != nil && t.Max > 0 && t.Window > 0
}

// Check returns ErrThrottled, with the time left in the window, once email
// has used up its failed attempts.
func (t *LoginThrottle) Check(ctx context.Context, email string) (time.Duration, error) {
	if !t.enabled() {
		return 0, nil
	}
	key := throttleKey(email)
	v, err := t.Redis.Get(ctx, key).Result()
	if err != nil {
		return 0, nil
	}
	if n, _ := strconv.Atoi(v); n < t.Max {
		return 0, nil
	}
	ttl, _ := t.Redis.PTTL(ctx, key).Result()
	if ttl < 0 {
		ttl = 0
	}
	return ttl, ErrThrottled
}

// Fail records one failed attempt and returns the count in the window.
func (t *LoginThrottle) Fail(ctx context.Context, email string) int {
	if !t.enabled() {
		return 0
	}
	n, err := incrExpireScript.Run(ctx, t.Redis, []string{throttleKey(email)}, t.Window.Milliseconds()).Int()
	if err != nil {
		return 0
	}
	return n
}

// Reset clears the counter after a successful login.
func (t *LoginThrottle) Reset(ctx context.Context, email string) {
	if !t.enabled() {
		return
	}
	_ = t.Redis.Del(ctx, throttleKey(email)).Err()
}
