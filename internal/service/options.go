package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/d60-Lab/free99/config"
	"github.com/d60-Lab/free99/internal/model"
	"github.com/d60-Lab/free99/internal/repository"
)

var tracer = otel.Tracer("github.com/d60-Lab/free99/internal/service")

// Options 业务规则开关，对应 config.MarketConfig
type Options struct {
	AllowedEmailDomain      string
	VerificationTTL         time.Duration
	MaxVerificationAttempts int
	RequireVerified         bool

	// Now 可在测试中替换；默认 UTC 当前时间
	Now func() time.Time
}

func OptionsFromConfig(c config.MarketConfig) Options {
	return Options{
		AllowedEmailDomain:      c.AllowedEmailDomain,
		VerificationTTL:         c.VerificationTTL,
		MaxVerificationAttempts: c.MaxVerificationAttempts,
		RequireVerified:         c.RequireVerified,
	}
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

// ProfileSource resolves user ids to display profiles; missing users are omitted.
type ProfileSource interface {
	Profiles(ctx context.Context, ids []string) (map[string]model.UserProfile, error)
}

// requireUser 查找操作者；RequireVerified 打开时拒绝未验证用户
func requireUser(ctx context.Context, users repository.UserRepository, opts Options, userID string) (*model.User, error) {
	u, err := users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if opts.RequireVerified && !u.IsVerified {
		return nil, ErrForbidden
	}
	return u, nil
}
