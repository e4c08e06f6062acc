package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"fortirent-auth/internal/core/auth"
	"fortirent-auth/internal/domain"
	"fortirent-auth/internal/events"
	"fortirent-auth/pkg/utils"
)

// ResetRequestedMessage 无论邮箱是否存在都返回同一句，防止账号枚举
const ResetRequestedMessage = "If an account with that email exists, a password reset link has been sent."

const resetSendFailed = "Failed to send password reset link. Please try again later."

// TokenIssuer 由 *auth.JWTer 实现
type TokenIssuer interface {
	IssueSession(uid, email, role string) (string, error)
	IssueReset(uid string) (string, error)
	ParseSession(token string) (*auth.SessionClaims, error)
	ParseReset(token string) (*auth.ResetClaims, error)
}

// Notifier 由 internal/mailer 的各实现满足
type Notifier interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

// TokenLedger 记录已用过的一次性令牌
type TokenLedger interface {
	IsUsed(ctx context.Context, jti string) (bool, error)
	MarkUsed(ctx context.Context, jti string, ttl time.Duration) (bool, error)
	// Release 撤销占用；写库失败后令牌仍可再用
	Release(ctx context.Context, jti string) error
}

type Throttle interface {
	Allow(ctx context.Context, subject string, limit int, window time.Duration) (bool, error)
}

type AuthService struct {
	users    domain.UserRepository
	hasher   utils.PasswordHasher
	tokens   TokenIssuer
	notifier Notifier
	policy   Policy
	log      *zap.Logger

	ledger   TokenLedger
	throttle Throttle
	events   events.Publisher
	now      func() time.Time
	resetTTL time.Duration
}

type Option func(*AuthService)

func WithClock(now func() time.Time) Option { return func(s *AuthService) { s.now = now } }
func WithLedger(l TokenLedger) Option        { return func(s *AuthService) { s.ledger = l } }
func WithThrottle(t Throttle) Option         { return func(s *AuthService) { s.throttle = t } }
func WithEvents(p events.Publisher) Option   { return func(s *AuthService) { s.events = p } }

// WithResetTTL 只影响邮件里的有效期文案，真正的过期由令牌决定
func WithResetTTL(d time.Duration) Option { return func(s *AuthService) { s.resetTTL = d } }

func NewAuthService(users domain.UserRepository, hasher utils.PasswordHasher, tokens TokenIssuer,
	notifier Notifier, policy Policy, log *zap.Logger, opts ...Option) *AuthService {
	s := &AuthService{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		notifier: notifier,
		policy:   policy,
		log:      log,
		events:   events.Nop{},
		now:      time.Now,
		resetTTL: time.Hour,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type RegisterInput struct {
	FullName        string
	Email           string
	PhoneNumber     string
	Role            string
	Password        string
	ConfirmPassword string
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (_ *domain.PublicUser, err error) {
	defer observe("register", &err)

	fullName := strings.TrimSpace(in.FullName)
	email := domain.NormalizeEmail(in.Email)
	phone := strings.TrimSpace(in.PhoneNumber)
	role := domain.Role(strings.TrimSpace(in.Role))

	if fullName == "" || email == "" || phone == "" || role == "" || in.Password == "" || in.ConfirmPassword == "" {
		return nil, Validation("Please fill all the fields")
	}
	if in.Password != in.ConfirmPassword {
		return nil, Validation("Passwords do not match")
	}
	if !role.SelfService() {
		return nil, Validation("Stakeholder must be 'Landlord' or 'Tenant'")
	}
	if len(in.Password) < s.policy.MinPasswordLength {
		return nil, Validation(fmt.Sprintf("Password must be at least %d characters.", s.policy.MinPasswordLength))
	}
	if err := s.policy.tooLong(in.Password); err != nil {
		return nil, err
	}

	// 预检查只为给出友好提示，并发下以唯一索引为准
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, Conflict("Email already in use")
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, Internal("Server error during registration.", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, Internal("Server error during registration.", err)
	}
	now := s.now()
	u := &domain.User{
		ID:                utils.NewID(),
		FullName:          fullName,
		Email:             email,
		PhoneNumber:       phone,
		Role:              role,
		PasswordHash:      hash,
		PasswordChangedAt: &now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, Conflict("Email already in use")
		}
		return nil, Internal("Server error during registration.", err)
	}
	s.publish(ctx, events.UserRegistered, u)
	return u.Public(), nil
}

type Session struct {
	Token string
	User  *domain.PublicUser
}

func (s *AuthService) Login(ctx context.Context, email, password string) (_ *Session, err error) {
	defer observe("login", &err)

	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, Validation("Email and password are required")
	}
	u, err := s.users.FindCredentialsByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, NotFound("User not found")
	}
	if err != nil {
		return nil, Internal("Server error during login.", err)
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		return nil, Unauthorized("Invalid credentials")
	}
	if s.policy.Expired(u.PasswordAge(s.now())) {
		return nil, PasswordExpired(fmt.Sprintf(
			"Your password has expired (%d days). Please reset your password to continue.", s.policy.maxAgeDays()))
	}
	tok, err := s.tokens.IssueSession(u.ID, u.Email, string(u.Role))
	if err != nil {
		return nil, Internal("Server error during login.", err)
	}
	return &Session{Token: tok, User: u.Public()}, nil
}

func (s *AuthService) FindUserIDByCredentials(ctx context.Context, email, password, role string) (_ string, err error) {
	defer observe("find_id", &err)

	email = domain.NormalizeEmail(email)
	role = strings.TrimSpace(role)
	if email == "" || password == "" || role == "" {
		return "", Validation("All fields are required")
	}
	u, err := s.users.FindCredentialsByEmailAndRole(ctx, email, domain.Role(role))
	if errors.Is(err, domain.ErrUserNotFound) {
		return "", NotFound("User not found with provided credentials")
	}
	if err != nil {
		return "", Internal("Server error.", err)
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		return "", Unauthorized("Incorrect password")
	}
	return u.ID, nil
}

// Authenticate 校验会话令牌并加载当前用户；供中间件使用
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.PublicUser, error) {
	if strings.TrimSpace(token) == "" {
		return nil, Unauthorized("Not authorized, no token")
	}
	claims, err := s.tokens.ParseSession(token)
	if errors.Is(err, auth.ErrTokenExpired) {
		return nil, Unauthorized("Session expired, please log in again")
	}
	if err != nil {
		return nil, Unauthorized("Not authorized, token failed")
	}
	u, err := s.users.FindByID(ctx, claims.UID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, Unauthorized("Not authorized, user not found")
	}
	if err != nil {
		return nil, Internal("Server error.", err)
	}
	return u.Public(), nil
}

func (s *AuthService) GetCurrentUser(identity *domain.PublicUser) (*domain.PublicUser, error) {
	if identity == nil || identity.ID == "" {
		return nil, Unauthorized("User data not available after authentication.")
	}
	return identity, nil
}

// RequestPasswordReset 返回的文案与邮箱是否存在无关
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (_ string, err error) {
	defer observe("reset_request", &err)

	email = domain.NormalizeEmail(email)
	if email == "" {
		return "", Validation("Email is required.")
	}
	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		s.log.Info("password reset requested for unknown email")
		return ResetRequestedMessage, nil
	}
	if err != nil {
		return "", Internal(resetSendFailed, err)
	}

	if s.throttle != nil && s.policy.ResetThrottleLimit > 0 {
		ok, terr := s.throttle.Allow(ctx, "reset:"+u.ID, s.policy.ResetThrottleLimit, s.policy.ResetThrottleWindow)
		if terr != nil {
			// 限流存储不可用时放行
			s.log.Warn("reset throttle unavailable", zap.Error(terr))
		} else if !ok {
			s.log.Info("password reset throttled", zap.String("uid", u.ID))
			return ResetRequestedMessage, nil
		}
	}

	tok, err := s.tokens.IssueReset(u.ID)
	if err != nil {
		return "", Internal(resetSendFailed, err)
	}
	msg, err := buildResetMessage(u.FullName, resetLink(s.policy.ResetBaseURL, tok), humanDuration(s.resetTTL))
	if err != nil {
		return "", Internal(resetSendFailed, err)
	}
	if err := s.notifier.Send(ctx, u.Email, msg.Subject, msg.Text, msg.HTML); err != nil {
		return "", Delivery(resetSendFailed, err)
	}
	return ResetRequestedMessage, nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword, confirmPassword string) (err error) {
	defer observe("reset", &err)

	if newPassword == "" || confirmPassword == "" {
		return Validation("Both password fields are required.")
	}
	if newPassword != confirmPassword {
		return Validation("Passwords do not match.")
	}
	if len(newPassword) < s.policy.MinPasswordLength {
		return Validation(fmt.Sprintf("Password must be at least %d characters.", s.policy.MinPasswordLength))
	}
	if err := s.policy.tooLong(newPassword); err != nil {
		return err
	}

	claims, err := s.tokens.ParseReset(token)
	if errors.Is(err, auth.ErrTokenExpired) {
		return TokenExpired("Reset link expired. Please request a new one.")
	}
	if err != nil {
		return TokenInvalid("Invalid reset token. Please request a new one.")
	}
	if s.ledger != nil {
		used, lerr := s.ledger.IsUsed(ctx, claims.ID)
		if lerr != nil {
			return Internal("Failed to reset password. Please try again later.", lerr)
		}
		if used {
			return TokenInvalid("Invalid reset token. Please request a new one.")
		}
	}

	u, err := s.users.FindCredentialsByID(ctx, claims.UID, s.policy.HistorySize)
	if errors.Is(err, domain.ErrUserNotFound) {
		return NotFound("User not found or token is invalid.")
	}
	if err != nil {
		return Internal("Failed to reset password. Please try again later.", err)
	}

	claimed := false
	err = s.setPassword(ctx, u, newPassword, func() error {
		if s.ledger == nil {
			return nil
		}
		// 写库前占用令牌；并发重放只有一个能成功
		ttl := time.Minute
		if claims.ExpiresAt != nil {
			if d := claims.ExpiresAt.Time.Sub(s.now()); d > ttl {
				ttl = d
			}
		}
		first, lerr := s.ledger.MarkUsed(ctx, claims.ID, ttl)
		if lerr != nil {
			return Internal("Failed to reset password. Please try again later.", lerr)
		}
		if !first {
			return TokenInvalid("Invalid reset token. Please request a new one.")
		}
		claimed = true
		return nil
	})
	if err != nil {
		if claimed {
			if rerr := s.ledger.Release(ctx, claims.ID); rerr != nil {
				s.log.Warn("release reset token failed", zap.String("uid", u.ID), zap.Error(rerr))
			}
		}
		return err
	}
	s.publish(ctx, events.UserPasswordReset, u)
	return nil
}

type ChangePasswordInput struct {
	CurrentPassword    string
	NewPassword        string
	ConfirmNewPassword string
}

func (s *AuthService) ChangePassword(ctx context.Context, userID string, in ChangePasswordInput) (err error) {
	defer observe("change_password", &err)

	if userID == "" {
		return Unauthorized("Not authorized")
	}
	if in.CurrentPassword == "" || in.NewPassword == "" || in.ConfirmNewPassword == "" {
		return Validation("All password fields are required.")
	}
	if in.NewPassword != in.ConfirmNewPassword {
		return Validation("New password and confirm password do not match.")
	}
	if len(in.NewPassword) < s.policy.MinPasswordLength {
		return Validation(fmt.Sprintf("New password must be at least %d characters long.", s.policy.MinPasswordLength))
	}
	if err := s.policy.tooLong(in.NewPassword); err != nil {
		return err
	}

	u, err := s.users.FindCredentialsByID(ctx, userID, s.policy.HistorySize)
	if errors.Is(err, domain.ErrUserNotFound) {
		return NotFound("User not found.")
	}
	if err != nil {
		return Internal("Server error during password change.", err)
	}
	if !s.hasher.Verify(in.CurrentPassword, u.PasswordHash) {
		return Unauthorized("Incorrect current password.")
	}
	if err := s.setPassword(ctx, u, in.NewPassword, nil); err != nil {
		return err
	}
	s.publish(ctx, events.UserPasswordChanged, u)
	return nil
}

// setPassword 复用检查 -> 哈希 -> 写库（同时追加历史）；beforeWrite 可为空
func (s *AuthService) setPassword(ctx context.Context, u *domain.User, plain string, beforeWrite func() error) error {
	previous := append([]string{u.PasswordHash}, u.PasswordHistory...)
	if IsReused(s.hasher, plain, previous) {
		return Validation(s.policy.reuseMessage())
	}
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		return Internal("Failed to update password.", err)
	}
	if beforeWrite != nil {
		if err := beforeWrite(); err != nil {
			return err
		}
	}
	change := domain.PasswordChange{Hash: hash, ChangedAt: s.now(), Keep: s.policy.HistorySize}
	if err := s.users.UpdatePassword(ctx, u.ID, change); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return NotFound("User not found.")
		}
		return Internal("Failed to update password.", err)
	}
	return nil
}

type ProfileInput struct {
	FullName    *string
	Email       *string
	PhoneNumber *string
}

type ProfileResult struct {
	User *domain.PublicUser
	// Token 仅在邮箱变更时重新签发（会话声明里带 email）
	Token string
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (_ *ProfileResult, err error) {
	defer observe("update_profile", &err)

	if userID == "" {
		return nil, Unauthorized("Not authorized")
	}
	cur, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, NotFound("User not found.")
	}
	if err != nil {
		return nil, Internal("Server error during profile update.", err)
	}

	var patch domain.ProfilePatch
	var problems []string
	if in.FullName != nil {
		v := strings.TrimSpace(*in.FullName)
		switch {
		case v == "":
			problems = append(problems, "Full name cannot be empty")
		case v != cur.FullName:
			patch.FullName = &v
		}
	}
	if in.Email != nil {
		v := domain.NormalizeEmail(*in.Email)
		switch {
		case v == "":
			problems = append(problems, "Email cannot be empty")
		case v != cur.Email:
			patch.Email = &v
		}
	}
	if in.PhoneNumber != nil {
		v := strings.TrimSpace(*in.PhoneNumber)
		switch {
		case v == "":
			problems = append(problems, "Phone number cannot be empty")
		case v != cur.PhoneNumber:
			patch.PhoneNumber = &v
		}
	}
	if len(problems) > 0 {
		return nil, Validations(problems)
	}
	if patch.Empty() {
		return &ProfileResult{User: cur.Public()}, nil
	}

	if patch.Email != nil {
		other, err := s.users.FindByEmail(ctx, *patch.Email)
		if err == nil && other.ID != userID {
			return nil, Conflict("Email already in use by another account.")
		}
		if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
			return nil, Internal("Server error during profile update.", err)
		}
	}

	updated, err := s.users.UpdateProfile(ctx, userID, patch)
	switch {
	case errors.Is(err, domain.ErrEmailTaken):
		return nil, Conflict("Email already in use by another account.")
	case errors.Is(err, domain.ErrUserNotFound):
		return nil, NotFound("User not found.")
	case err != nil:
		return nil, Internal("Server error during profile update.", err)
	}

	res := &ProfileResult{User: updated.Public()}
	if patch.Email != nil {
		tok, err := s.tokens.IssueSession(updated.ID, updated.Email, string(updated.Role))
		if err != nil {
			return nil, Internal("Server error during profile update.", err)
		}
		res.Token = tok
	}
	s.publish(ctx, events.UserProfileUpdated, updated)
	return res, nil
}

// publish 事件失败只记日志
func (s *AuthService) publish(ctx context.Context, subject string, u *domain.User) {
	ev := events.AccountEvent{UserID: u.ID, Email: u.Email, Role: string(u.Role), At: s.now()}
	if err := s.events.Publish(ctx, subject, ev); err != nil {
		s.log.Warn("publish event failed", zap.String("subject", subject), zap.Error(err))
	}
}

func humanDuration(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "1 hour"
	case d > time.Hour && d%time.Hour == 0:
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	case d >= time.Minute && d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	default:
		return d.String()
	}
}
