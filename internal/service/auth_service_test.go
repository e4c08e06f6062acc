package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fortirent-auth/internal/core/auth"
	"fortirent-auth/internal/domain"
	"fortirent-auth/internal/repo"
	"fortirent-auth/pkg/utils"
)

const day = 24 * time.Hour

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type sentMail struct{ to, subject, text, html string }

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *fakeNotifier) Send(_ context.Context, to, subject, text, html string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMail{to, subject, text, html})
	return nil
}

func (n *fakeNotifier) lastToken(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.sent)
	text := n.sent[len(n.sent)-1].text
	i := strings.Index(text, "/reset-password/")
	require.GreaterOrEqual(t, i, 0)
	tok := text[i+len("/reset-password/"):]
	if nl := strings.IndexByte(tok, '\n'); nl >= 0 {
		tok = tok[:nl]
	}
	return tok
}

type fakeLedger struct {
	mu   sync.Mutex
	used map[string]bool
}

func (l *fakeLedger) IsUsed(_ context.Context, jti string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.used[jti], nil
}

func (l *fakeLedger) MarkUsed(_ context.Context, jti string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.used[jti] {
		return false, nil
	}
	l.used[jti] = true
	return true, nil
}

func (l *fakeLedger) Release(_ context.Context, jti string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.used, jti)
	return nil
}

// failingPasswordWrites 密码写库失败，其余照常
type failingPasswordWrites struct {
	*repo.MemoryUserRepo
	fail bool
}

func (r *failingPasswordWrites) UpdatePassword(ctx context.Context, id string, c domain.PasswordChange) error {
	if r.fail {
		return errors.New("db: connection reset")
	}
	return r.MemoryUserRepo.UpdatePassword(ctx, id, c)
}

type fakeThrottle struct{ allow bool }

func (f fakeThrottle) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return f.allow, nil
}

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *fakePublisher) Publish(_ context.Context, subject string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type fixture struct {
	svc      *AuthService
	users    *repo.MemoryUserRepo
	jwt      *auth.JWTer
	clock    *fakeClock
	notifier *fakeNotifier
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	users := repo.NewMemoryUserRepo()
	j := &auth.JWTer{
		Secret:     []byte("fixture-secret"),
		Issuer:     "fortirent",
		SessionTTL: 7 * day,
		ResetTTL:   time.Hour,
		Now:        clock.Now,
	}
	n := &fakeNotifier{}
	policy := DefaultPolicy()
	policy.ResetBaseURL = "http://localhost:5173"
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	svc := NewAuthService(users, utils.BcryptHasher{}, j, n, policy, zap.NewNop(), opts...)
	return &fixture{svc: svc, users: users, jwt: j, clock: clock, notifier: n}
}

func validRegistration() RegisterInput {
	return RegisterInput{
		FullName:        "A B",
		Email:           "a@b.com",
		PhoneNumber:     "1",
		Role:            "Tenant",
		Password:        "LongPass1!",
		ConfirmPassword: "LongPass1!",
	}
}

func (f *fixture) register(t *testing.T) *domain.PublicUser {
	t.Helper()
	u, err := f.svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	return u
}

func (f *fixture) storedHash(t *testing.T, id string) string {
	t.Helper()
	u, err := f.users.FindCredentialsByID(context.Background(), id, 0)
	require.NoError(t, err)
	return u.PasswordHash
}

func userCount(t *testing.T, r *repo.MemoryUserRepo) int64 {
	t.Helper()
	_, total, err := r.List(context.Background(), domain.ListFilter{Limit: 100})
	require.NoError(t, err)
	return total
}

func TestRegisterRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mismatch := validRegistration()
	mismatch.ConfirmPassword = "LongPass2!"
	_, err := f.svc.Register(ctx, mismatch)
	require.Equal(t, KindValidation, KindOf(err))
	require.Equal(t, "Passwords do not match", PublicMessage(err))

	for _, role := range []string{"Admin", "Owner", "tenant"} {
		in := validRegistration()
		in.Role = role
		_, err = f.svc.Register(ctx, in)
		require.Equal(t, KindValidation, KindOf(err), role)
	}

	missing := validRegistration()
	missing.PhoneNumber = "  "
	_, err = f.svc.Register(ctx, missing)
	require.Equal(t, KindValidation, KindOf(err))

	short := validRegistration()
	short.Password, short.ConfirmPassword = "short", "short"
	_, err = f.svc.Register(ctx, short)
	require.Equal(t, KindValidation, KindOf(err))

	require.Zero(t, userCount(t, f.users))
}

func TestRegisterStoresHashNotPlaintext(t *testing.T) {
	f := newFixture(t)
	u := f.register(t)

	require.Equal(t, "a@b.com", u.Email)
	require.Equal(t, domain.RoleTenant, u.Role)
	require.NotNil(t, u.PasswordChangedAt)

	hash := f.storedHash(t, u.ID)
	require.NotEqual(t, "LongPass1!", hash)
	require.True(t, utils.BcryptHasher{}.Verify("LongPass1!", hash))
}

func TestRegisterDuplicateEmailIsConflict(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	dup := validRegistration()
	dup.Email = "  A@B.COM "
	_, err := f.svc.Register(context.Background(), dup)
	require.Equal(t, KindConflict, KindOf(err))
	require.EqualValues(t, 1, userCount(t, f.users))
}

func TestRegisterConcurrentSameEmail(t *testing.T) {
	f := newFixture(t)
	const n = 4
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Register(context.Background(), validRegistration())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, conflict int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case KindOf(err) == KindConflict:
			conflict++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, n-1, conflict)
}

func TestLoginScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t)

	_, err := f.svc.Login(ctx, "a@b.com", "WrongPass1!")
	require.Equal(t, KindUnauthorized, KindOf(err))

	s, err := f.svc.Login(ctx, "A@B.com", "LongPass1!")
	require.NoError(t, err)
	require.Equal(t, "a@b.com", s.User.Email)

	claims, err := f.jwt.ParseSession(s.Token)
	require.NoError(t, err)
	require.Equal(t, "Tenant", claims.Role)
	require.Equal(t, s.User.ID, claims.UID)
	require.Equal(t, "a@b.com", claims.Email)
}

func TestLoginErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Login(ctx, "nobody@b.com", "LongPass1!")
	require.Equal(t, KindNotFound, KindOf(err))

	_, err = f.svc.Login(ctx, "", "LongPass1!")
	require.Equal(t, KindValidation, KindOf(err))
}

func TestLoginPasswordExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t)

	f.clock.Advance(89 * day)
	_, err := f.svc.Login(ctx, "a@b.com", "LongPass1!")
	require.NoError(t, err)

	f.clock.Advance(2 * day)
	_, err = f.svc.Login(ctx, "a@b.com", "LongPass1!")
	require.Equal(t, KindPasswordExpired, KindOf(err))
	require.Equal(t, "PASSWORD_EXPIRED", KindOf(err).Code())

	// 重置后可以重新登录
	_, err = f.svc.RequestPasswordReset(ctx, "a@b.com")
	require.NoError(t, err)
	require.NoError(t, f.svc.ResetPassword(ctx, f.notifier.lastToken(t), "BrandNew123!", "BrandNew123!"))
	_, err = f.svc.Login(ctx, "a@b.com", "BrandNew123!")
	require.NoError(t, err)
}

func TestLoginWrongPasswordBeatsExpiry(t *testing.T) {
	f := newFixture(t)
	f.register(t)
	f.clock.Advance(120 * day)

	_, err := f.svc.Login(context.Background(), "a@b.com", "WrongPass1!")
	require.Equal(t, KindUnauthorized, KindOf(err))
}

func TestFindUserIDByCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t)

	_, err := f.svc.FindUserIDByCredentials(ctx, "a@b.com", "LongPass1!", "Landlord")
	require.Equal(t, KindNotFound, KindOf(err))

	_, err = f.svc.FindUserIDByCredentials(ctx, "a@b.com", "WrongPass1!", "Tenant")
	require.Equal(t, KindUnauthorized, KindOf(err))

	_, err = f.svc.FindUserIDByCredentials(ctx, "a@b.com", "LongPass1!", "")
	require.Equal(t, KindValidation, KindOf(err))

	id, err := f.svc.FindUserIDByCredentials(ctx, "a@b.com", "LongPass1!", "Tenant")
	require.NoError(t, err)
	require.Equal(t, u.ID, id)
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t)

	s, err := f.svc.Login(ctx, "a@b.com", "LongPass1!")
	require.NoError(t, err)

	me, err := f.svc.Authenticate(ctx, s.Token)
	require.NoError(t, err)
	require.Equal(t, u.ID, me.ID)

	reset, err := f.jwt.IssueReset(u.ID)
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, reset)
	require.Equal(t, KindUnauthorized, KindOf(err))

	_, err = f.svc.Authenticate(ctx, "")
	require.Equal(t, KindUnauthorized, KindOf(err))

	f.clock.Advance(6 * day)
	_, err = f.svc.Authenticate(ctx, s.Token)
	require.NoError(t, err)

	f.clock.Advance(2 * day)
	_, err = f.svc.Authenticate(ctx, s.Token)
	require.Equal(t, KindUnauthorized, KindOf(err))
}

func TestGetCurrentUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetCurrentUser(nil)
	require.Equal(t, KindUnauthorized, KindOf(err))

	u := &domain.PublicUser{ID: "u1"}
	got, err := f.svc.GetCurrentUser(u)
	require.NoError(t, err)
	require.Same(t, u, got)
}

func TestRequestPasswordResetDoesNotEnumerate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t)

	unknown, err := f.svc.RequestPasswordReset(ctx, "ghost@b.com")
	require.NoError(t, err)
	require.Empty(t, f.notifier.sent)

	known, err := f.svc.RequestPasswordReset(ctx, "a@b.com")
	require.NoError(t, err)
	require.Equal(t, unknown, known)
	require.Equal(t, ResetRequestedMessage, known)

	require.Len(t, f.notifier.sent, 1)
	m := f.notifier.sent[0]
	require.Equal(t, "a@b.com", m.to)
	require.Equal(t, "FortiRent Password Reset Request", m.subject)
	require.Contains(t, m.text, "http://localhost:5173/reset-password/")
	require.Contains(t, m.html, "1 hour")

	claims, err := f.jwt.ParseReset(f.notifier.lastToken(t))
	require.NoError(t, err)
	require.Equal(t, u.ID, claims.UID)

	_, err = f.svc.RequestPasswordReset(ctx, " ")
	require.Equal(t, KindValidation, KindOf(err))
}

func TestRequestPasswordResetSendFailure(t *testing.T) {
	f := newFixture(t)
	f.register(t)
	f.notifier.err = errors.New("smtp: 550 mailbox unavailable")

	_, err := f.svc.RequestPasswordReset(context.Background(), "a@b.com")
	require.Equal(t, KindDelivery, KindOf(err))
	require.Equal(t, "INTERNAL_ERROR", KindOf(err).Code())
	require.NotContains(t, PublicMessage(err), "smtp")
}

func TestRequestPasswordResetThrottled(t *testing.T) {
	f := newFixture(t, WithThrottle(fakeThrottle{allow: false}))
	f.register(t)

	msg, err := f.svc.RequestPasswordReset(context.Background(), "a@b.com")
	require.NoError(t, err)
	require.Equal(t, ResetRequestedMessage, msg)
	require.Empty(t, f.notifier.sent)
}

func TestResetPasswordTokenFailuresAreDistinct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t)

	_, err := f.svc.RequestPasswordReset(ctx, "a@b.com")
	require.NoError(t, err)
	tok := f.notifier.lastToken(t)

	invalid := f.svc.ResetPassword(ctx, tok+"x", "BrandNew123!", "BrandNew123!")
	require.Equal(t, KindTokenInvalid, KindOf(invalid))

	f.clock.Advance(2 * time.Hour)
	expired := f.svc.ResetPassword(ctx, tok, "BrandNew123!", "BrandNew123!")
	require.Equal(t, KindTokenExpired, KindOf(expired))

	require.NotEqual(t, PublicMessage(invalid), PublicMessage(expired))
	require.Contains(t, PublicMessage(expired), "expired")
}

func TestResetPasswordRejectsSessionToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t)
	s, err := f.svc.Login(ctx, "a@b.com", "LongPass1!")
	require.NoError(t, err)

	err = f.svc.ResetPassword(ctx, s.Token, "BrandNew123!", "BrandNew123!")
	require.Equal(t, KindTokenInvalid, KindOf(err))
}

func TestResetPasswordValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.ResetPassword(ctx, "whatever", "BrandNew123!", "BrandNew124!")
	require.Equal(t, KindValidation, KindOf(err))

	err = f.svc.ResetPassword(ctx, "whatever", "short", "short")
	require.Equal(t, KindValidation, KindOf(err))
}

func TestResetPasswordUnknownUser(t *testing.T) {
	f := newFixture(t)
	tok, err := f.jwt.IssueReset("gone")
	require.NoError(t, err)

	err = f.svc.ResetPassword(context.Background(), tok, "BrandNew123!", "BrandNew123!")
	require.Equal(t, KindNotFound, KindOf(err))
}

func TestResetPasswordUpdatesCredentials(t *testing.T) {
	pub := &fakePublisher{}
	f := newFixture(t, WithEvents(pub))
	ctx := context.Background()
	u := f.register(t)
	f.clock.Advance(time.Minute)

	_, err := f.svc.RequestPasswordReset(ctx, "a@b.com")
	require.NoError(t, err)
	require.NoError(t, f.svc.ResetPassword(ctx, f.notifier.lastToken(t), "BrandNew123!", "BrandNew123!"))

	_, err = f.svc.Login(ctx, "a@b.com", "LongPass1!")
	require.Equal(t, KindUnauthorized, KindOf(err))
	s, err := f.svc.Login(ctx, "a@b.com", "BrandNew123!")
	require.NoError(t, err)
	require.True(t, s.User.PasswordChangedAt.After(*u.PasswordChangedAt))

	require.Equal(t, []string{"user.registered", "user.password_reset"}, pub.subjects)
}

func TestResetPasswordRejectsCurrentPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t)

	_, err := f.svc.RequestPasswordReset(ctx, "a@b.com")
	require.NoError(t, err)
	err = f.svc.ResetPassword(ctx, f.notifier.lastToken(t), "LongPass1!", "LongPass1!")
	require.Equal(t, KindValidation, KindOf(err))
	require.Contains(t, PublicMessage(err), "last 5 passwords")
}

func TestResetTokenIsSingleUse(t *testing.T) {
	f := newFixture(t, WithLedger(&fakeLedger{used: map[string]bool{}}))
	ctx := context.Background()
	f.register(t)

	_, err := f.svc.RequestPasswordReset(ctx, "a@b.com")
	require.NoError(t, err)
	tok := f.notifier.lastToken(t)

	require.NoError(t, f.svc.ResetPassword(ctx, tok, "BrandNew123!", "BrandNew123!"))
	err = f.svc.ResetPassword(ctx, tok, "Another123!", "Another123!")
	require.Equal(t, KindTokenInvalid, KindOf(err))
}

func TestChangePasswordTooShortKeepsHash(t *testing.T) {
	f := newFixture(t)
	u := f.register(t)
	before := f.storedHash(t, u.ID)

	err := f.svc.ChangePassword(context.Background(), u.ID, ChangePasswordInput{
		CurrentPassword: "LongPass1!", NewPassword: "short1!", ConfirmNewPassword: "short1!",
	})
	require.Equal(t, KindValidation, KindOf(err))
	require.Equal(t, before, f.storedHash(t, u.ID))
}

func TestChangePasswordErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t)

	err := f.svc.ChangePassword(ctx, u.ID, ChangePasswordInput{
		CurrentPassword: "WrongPass1!", NewPassword: "BrandNew123!", ConfirmNewPassword: "BrandNew123!",
	})
	require.Equal(t, KindUnauthorized, KindOf(err))

	err = f.svc.ChangePassword(ctx, u.ID, ChangePasswordInput{
		CurrentPassword: "LongPass1!", NewPassword: "BrandNew123!", ConfirmNewPassword: "BrandNew124!",
	})
	require.Equal(t, KindValidation, KindOf(err))

	err = f.svc.ChangePassword(ctx, "ghost", ChangePasswordInput{
		CurrentPassword: "LongPass1!", NewPassword: "BrandNew123!", ConfirmNewPassword: "BrandNew123!",
	})
	require.Equal(t, KindNotFound, KindOf(err))

	err = f.svc.ChangePassword(ctx, "", ChangePasswordInput{})
	require.Equal(t, KindUnauthorized, KindOf(err))
}

func TestChangePasswordHistoryWindow(t *testing.T) {
	f := newFixture(t)
	f.svc.policy.HistorySize = 2
	ctx := context.Background()
	u := f.register(t)

	change := func(cur, next string) error {
		return f.svc.ChangePassword(ctx, u.ID, ChangePasswordInput{
			CurrentPassword: cur, NewPassword: next, ConfirmNewPassword: next,
		})
	}
	require.NoError(t, change("LongPass1!", "SecondPass1!"))

	err := change("SecondPass1!", "LongPass1!")
	require.Equal(t, KindValidation, KindOf(err))
	require.Equal(t, "Password cannot be the same as any of your last 2 passwords.", PublicMessage(err))

	require.NoError(t, change("SecondPass1!", "ThirdPass1!"))
	// 第一个密码已经滑出窗口
	require.NoError(t, change("ThirdPass1!", "LongPass1!"))
}

func TestUpdateProfileOnlyFullName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t)

	name := "  Alice B "
	res, err := f.svc.UpdateProfile(ctx, u.ID, ProfileInput{FullName: &name})
	require.NoError(t, err)
	require.Equal(t, "Alice B", res.User.FullName)
	require.Equal(t, "a@b.com", res.User.Email)
	require.Equal(t, "1", res.User.PhoneNumber)
	require.Empty(t, res.Token)

	// 仍可用原密码登录，会话不受影响
	_, err = f.svc.Login(ctx, "a@b.com", "LongPass1!")
	require.NoError(t, err)
}

func TestUpdateProfileNoChangeSkipsWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t)
	before, err := f.users.FindByID(ctx, u.ID)
	require.NoError(t, err)

	same := "A B"
	sameEmail := "A@B.com"
	res, err := f.svc.UpdateProfile(ctx, u.ID, ProfileInput{FullName: &same, Email: &sameEmail})
	require.NoError(t, err)
	require.Equal(t, before.UpdatedAt, res.User.UpdatedAt)
	require.Empty(t, res.Token)
}

func TestUpdateProfileEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t)

	other := validRegistration()
	other.Email = "c@d.com"
	_, err := f.svc.Register(ctx, other)
	require.NoError(t, err)

	taken := "C@D.com"
	_, err = f.svc.UpdateProfile(ctx, u.ID, ProfileInput{Email: &taken})
	require.Equal(t, KindConflict, KindOf(err))

	fresh := "new@b.com"
	res, err := f.svc.UpdateProfile(ctx, u.ID, ProfileInput{Email: &fresh})
	require.NoError(t, err)
	require.Equal(t, "new@b.com", res.User.Email)
	require.NotEmpty(t, res.Token)

	claims, err := f.jwt.ParseSession(res.Token)
	require.NoError(t, err)
	require.Equal(t, "new@b.com", claims.Email)
	require.Equal(t, u.ID, claims.UID)
}

func TestUpdateProfileValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t)

	empty, blank := "", "  "
	_, err := f.svc.UpdateProfile(ctx, u.ID, ProfileInput{FullName: &empty, PhoneNumber: &blank})
	require.Equal(t, KindValidation, KindOf(err))
	require.Equal(t, "Full name cannot be empty, Phone number cannot be empty", PublicMessage(err))

	name := "X"
	_, err = f.svc.UpdateProfile(ctx, "ghost", ProfileInput{FullName: &name})
	require.Equal(t, KindNotFound, KindOf(err))
}

func TestPasswordLengthUpperBound(t *testing.T) {
	cases := []struct {
		n  int
		ok bool
	}{
		{72, true},
		{73, false},
		{80, false},
	}
	for _, c := range cases {
		pw := "Aa1!" + strings.Repeat("x", c.n-4)
		require.Len(t, pw, c.n)
		ctx := context.Background()

		// Register
		f := newFixture(t)
		in := validRegistration()
		in.Password, in.ConfirmPassword = pw, pw
		_, err := f.svc.Register(ctx, in)
		if c.ok {
			require.NoError(t, err, c.n)
			_, err = f.svc.Login(ctx, "a@b.com", pw)
			require.NoError(t, err, c.n)
		} else {
			require.Equal(t, KindValidation, KindOf(err), c.n)
			require.Contains(t, PublicMessage(err), "at most 72 bytes")
			require.Zero(t, userCount(t, f.users))
		}

		// ResetPassword
		f = newFixture(t)
		u := f.register(t)
		before := f.storedHash(t, u.ID)
		_, err = f.svc.RequestPasswordReset(ctx, "a@b.com")
		require.NoError(t, err)
		err = f.svc.ResetPassword(ctx, f.notifier.lastToken(t), pw, pw)
		if c.ok {
			require.NoError(t, err, c.n)
		} else {
			require.Equal(t, KindValidation, KindOf(err), c.n)
			require.Equal(t, before, f.storedHash(t, u.ID))
		}

		// ChangePassword
		f = newFixture(t)
		u = f.register(t)
		before = f.storedHash(t, u.ID)
		err = f.svc.ChangePassword(ctx, u.ID, ChangePasswordInput{
			CurrentPassword: "LongPass1!", NewPassword: pw, ConfirmNewPassword: pw,
		})
		if c.ok {
			require.NoError(t, err, c.n)
		} else {
			require.Equal(t, KindValidation, KindOf(err), c.n)
			require.Equal(t, before, f.storedHash(t, u.ID))
		}
	}
}

func TestResetTokenSurvivesFailedWrite(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	users := &failingPasswordWrites{MemoryUserRepo: repo.NewMemoryUserRepo()}
	j := &auth.JWTer{Secret: []byte("fixture-secret"), Issuer: "fortirent", SessionTTL: 7 * day, ResetTTL: time.Hour, Now: clock.Now}
	n := &fakeNotifier{}
	ledger := &fakeLedger{used: map[string]bool{}}
	policy := DefaultPolicy()
	policy.ResetBaseURL = "http://localhost:5173"
	svc := NewAuthService(users, utils.BcryptHasher{}, j, n, policy, zap.NewNop(), WithClock(clock.Now), WithLedger(ledger))
	ctx := context.Background()

	_, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)
	_, err = svc.RequestPasswordReset(ctx, "a@b.com")
	require.NoError(t, err)
	tok := n.lastToken(t)

	users.fail = true
	err = svc.ResetPassword(ctx, tok, "BrandNew123!", "BrandNew123!")
	require.Equal(t, KindInternal, KindOf(err))
	require.Empty(t, ledger.used)

	// 库恢复后同一链接仍然有效，且只能用一次
	users.fail = false
	require.NoError(t, svc.ResetPassword(ctx, tok, "BrandNew123!", "BrandNew123!"))
	err = svc.ResetPassword(ctx, tok, "Another123!", "Another123!")
	require.Equal(t, KindTokenInvalid, KindOf(err))
}
