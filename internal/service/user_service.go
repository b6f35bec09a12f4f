package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/d60-Lab/free99/internal/model"
	"github.com/d60-Lab/free99/internal/repository"
	"github.com/d60-Lab/free99/pkg/logger"
)

const (
	codeDigits             = 6
	defaultVerificationTTL = 15 * time.Minute
)

// CodeSender 投递邮箱验证码
type CodeSender interface {
	SendVerificationCode(ctx context.Context, email, code string) error
}

// LogCodeSender 只把验证码写进日志，本地开发用
type LogCodeSender struct{}

func (LogCodeSender) SendVerificationCode(_ context.Context, email, code string) error {
	logger.Info("verification code issued", zap.String("email", email), zap.String("code", code))
	return nil
}

type RegisterInput struct {
	FullName         string
	Email            string
	ResidenceHall    string
	PickupPreference string
}

type AuthResult struct {
	AccessToken string      `json:"access_token"`
	User        *model.User `json:"user"`
}

// UserService 用户目录：注册、邮箱验证、登录与查询
type UserService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	VerifyEmail(ctx context.Context, email, code string) (*model.User, error)
	Login(ctx context.Context, email string) (*AuthResult, error)

	GetUser(ctx context.Context, id string) (*model.User, error)
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	IsVerified(ctx context.Context, id string) (bool, error)
}

type userService struct {
	users  repository.UserRepository
	tokens *TokenIssuer
	sender CodeSender
	opts   Options
}

func NewUserService(users repository.UserRepository, tokens *TokenIssuer, sender CodeSender, opts Options) UserService {
	if sender == nil {
		sender = LogCodeSender{}
	}
	return &userService{users: users, tokens: tokens, sender: sender, opts: opts}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailAllowed 判断邮箱是否属于允许的校园域名。
// domain 以 "." 开头时按后缀匹配（".edu"），否则匹配该域名及其子域名。
func EmailAllowed(email, domain string) bool {
	email = normalizeEmail(email)
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	host := email[at+1:]
	d := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "@")
	switch {
	case d == "":
		return true
	case strings.HasPrefix(d, "."):
		return strings.HasSuffix(host, d)
	default:
		return host == d || strings.HasSuffix(host, "."+d)
	}
}

func (s *userService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := normalizeEmail(in.Email)
	if !EmailAllowed(email, s.opts.AllowedEmailDomain) {
		return nil, invalid(ErrEmailDomain)
	}
	if strings.TrimSpace(in.FullName) == "" {
		return nil, invalid(errors.New("full_name is required"))
	}

	u, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		// 已注册的邮箱直接返回原用户
		if !u.IsVerified {
			if err := s.issueCode(ctx, u); err != nil {
				return nil, err
			}
		}
		return s.authResult(u)
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	u = &model.User{
		ID:               uuid.New().String(),
		FullName:         strings.TrimSpace(in.FullName),
		Email:            email,
		ResidenceHall:    strings.TrimSpace(in.ResidenceHall),
		PickupPreference: strings.TrimSpace(in.PickupPreference),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if !errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, fmt.Errorf("create user: %w", err)
		}
		// 并发注册同一邮箱：读回胜出的那条
		if u, err = s.users.GetByEmail(ctx, email); err != nil {
			return nil, err
		}
		return s.authResult(u)
	}
	if err := s.issueCode(ctx, u); err != nil {
		return nil, err
	}
	logger.Info("user registered", zap.String("user_id", u.ID))
	return s.authResult(u)
}

func (s *userService) issueCode(ctx context.Context, u *model.User) error {
	code, err := generateCode(codeDigits)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash code: %w", err)
	}
	ttl := s.opts.VerificationTTL
	if ttl <= 0 {
		ttl = defaultVerificationTTL
	}
	now := s.opts.now()
	tok := &model.VerificationToken{
		UserID:    u.ID,
		CodeHash:  string(hash),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.users.CreateVerificationToken(ctx, tok); err != nil {
		return fmt.Errorf("store verification token: %w", err)
	}
	if err := s.sender.SendVerificationCode(ctx, u.Email, code); err != nil {
		logger.Warn("send verification code failed", zap.String("user_id", u.ID), zap.Error(err))
	}
	return nil
}

func generateCode(n int) (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	num, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", n, num.Int64()), nil
}

func (s *userService) VerifyEmail(ctx context.Context, email, code string) (*model.User, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if u.IsVerified {
		return u, nil
	}
	tok, err := s.users.LatestVerificationToken(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if s.opts.MaxVerificationAttempts > 0 && tok.Attempts >= s.opts.MaxVerificationAttempts {
		return nil, invalid(ErrTooManyAttempts)
	}
	if !s.opts.now().Before(tok.ExpiresAt) {
		return nil, invalid(ErrCodeExpired)
	}
	if bcrypt.CompareHashAndPassword([]byte(tok.CodeHash), []byte(strings.TrimSpace(code))) != nil {
		if err := s.users.IncrementTokenAttempts(ctx, tok.ID); err != nil {
			return nil, err
		}
		return nil, invalid(ErrCodeMismatch)
	}
	if err := s.users.MarkVerified(ctx, u.ID); err != nil {
		return nil, err
	}
	u.IsVerified = true
	logger.Info("email verified", zap.String("user_id", u.ID))
	return u, nil
}

func (s *userService) Login(ctx context.Context, email string) (*AuthResult, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	return s.authResult(u)
}

func (s *userService) authResult(u *model.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &AuthResult{AccessToken: token, User: u}, nil
}

func (s *userService) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *userService) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.users.GetByEmail(ctx, normalizeEmail(email))
}

func (s *userService) IsVerified(ctx context.Context, id string) (bool, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return u.IsVerified, nil
}
