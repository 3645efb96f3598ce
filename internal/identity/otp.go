// AngelaMos | 2026
// otp.go

package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/planejarpatrimonio/backend/internal/core"
)

const otpDigits = 6

// OTPStore keeps one pending code per (type, email). Issuing a new code
// replaces the previous one and a code can be consumed once.
type OTPStore struct {
	redis redis.Cmdable
	ttl   time.Duration
}

func NewOTPStore(rdb redis.Cmdable, ttl time.Duration) *OTPStore {
	return &OTPStore{redis: rdb, ttl: ttl}
}

func otpKey(t OTPType, email string) string {
	return "otp:" + string(t) + ":" + strings.ToLower(email)
}

func (s *OTPStore) Issue(ctx context.Context, t OTPType, email string) (string, error) {
	code, err := core.NumericCode(otpDigits)
	if err != nil {
		return "", err
	}

	err = s.redis.Set(ctx, otpKey(t, email), core.HashToken(code), s.ttl).Err()
	if err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}

	return code, nil
}

// Consume reports whether code matches the pending one, removing it on a
// match.
func (s *OTPStore) Consume(
	ctx context.Context,
	t OTPType,
	email, code string,
) (bool, error) {
	key := otpKey(t, email)

	stored, err := s.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load otp: %w", err)
	}

	if !core.CompareTokenHash(strings.TrimSpace(code), stored) {
		return false, nil
	}

	deleted, err := s.redis.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("consume otp: %w", err)
	}

	return deleted == 1, nil
}
