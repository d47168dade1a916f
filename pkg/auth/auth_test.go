package auth

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/grovetools/invoicedash/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// deferredProvider answers its first subscription only when release is
// called, like a remote identity service.
type deferredProvider struct {
	mu         sync.Mutex
	current    *User
	fn         func(*User)
	subs       int
	unsubs     int
	subscribed chan struct{}
}

func newDeferredProvider() *deferredProvider {
	return &deferredProvider{subscribed: make(chan struct{}, 1)}
}

func (p *deferredProvider) OnAuthStateChanged(fn func(*User)) func() {
	p.mu.Lock()
	p.subs++
	p.fn = fn
	p.mu.Unlock()
	p.subscribed <- struct{}{}
	return func() {
		p.mu.Lock()
		p.unsubs++
		p.mu.Unlock()
	}
}

func (p *deferredProvider) CurrentUser() *User {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *deferredProvider) release(u *User) {
	p.mu.Lock()
	fn := p.fn
	p.mu.Unlock()
	fn(u)
}

func (p *deferredProvider) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subs, p.unsubs
}

func TestMatch(t *testing.T) {
	g := NewGuard(NewStaticProvider(nil), WithLogger(quietLogger()))

	tests := []struct {
		path string
		name string
	}{
		{"/", "Dashboard"},
		{"", "Dashboard"},
		{"/invoice", "Invoice"},
		{"/invoice/", "Invoice"},
		{"/settings?tab=profile", "Settings"},
		{"/beneficiaries#top", "Beneficiary Management"},
		{"/login", "Login"},
		{"/nope", "NotFound"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.name, g.Match(tt.path).Name)
		})
	}
}

func TestBeforeEachSignedOut(t *testing.T) {
	g := NewGuard(NewStaticProvider(nil), WithLogger(quietLogger()))
	ctx := context.Background()

	d, err := g.BeforeEach(ctx, "/invoice")
	require.NoError(t, err)
	assert.False(t, d.Allow)
	assert.Equal(t, "/login", d.Redirect)
	assert.True(t, errors.Is(d.Err(), errors.ErrCodeUnauthenticated))

	for _, path := range []string{"/login", "/signup", "/does-not-exist"} {
		d, err := g.BeforeEach(ctx, path)
		require.NoError(t, err)
		assert.True(t, d.Allow, path)
		assert.NoError(t, d.Err())
	}
}

func TestBeforeEachTracksSignIn(t *testing.T) {
	p := NewStaticProvider(nil)
	g := NewGuard(p, WithLogger(quietLogger()), WithLoginPath("/signin"))
	ctx := context.Background()

	d, err := g.BeforeEach(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, "/signin", d.Redirect)

	p.SignIn(User{ID: "u1", Email: "a@example.test"})
	d, err = g.BeforeEach(ctx, "/")
	require.NoError(t, err)
	assert.True(t, d.Allow)
	require.NotNil(t, d.User)
	assert.Equal(t, "u1", d.User.ID)

	p.SignOut()
	d, err = g.BeforeEach(ctx, "/overview")
	require.NoError(t, err)
	assert.False(t, d.Allow)
}

func TestFirstNavigationWaitsForAuthState(t *testing.T) {
	p := newDeferredProvider()
	g := NewGuard(p, WithLogger(quietLogger()))

	done := make(chan Decision, 1)
	go func() {
		d, err := g.BeforeEach(context.Background(), "/accounts")
		assert.NoError(t, err)
		done <- d
	}()

	select {
	case <-done:
		t.Fatal("navigation resolved before the auth state was known")
	case <-time.After(50 * time.Millisecond):
	}

	select {
	case <-p.subscribed:
	case <-time.After(time.Second):
		t.Fatal("guard never subscribed")
	}
	p.release(&User{ID: "u1"})

	select {
	case d := <-done:
		assert.True(t, d.Allow)
	case <-time.After(time.Second):
		t.Fatal("navigation never resolved")
	}
	subs, unsubs := p.counts()
	assert.Equal(t, 1, subs)
	assert.Equal(t, 1, unsubs)

	// Later navigations read the current user and do not subscribe again
	d, err := g.BeforeEach(context.Background(), "/accounts")
	require.NoError(t, err)
	assert.False(t, d.Allow)
	subs, _ = p.counts()
	assert.Equal(t, 1, subs)
}

func TestFirstNavigationCancelled(t *testing.T) {
	g := NewGuard(newDeferredProvider(), WithLogger(quietLogger()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := g.BeforeEach(ctx, "/")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStaticProviderCallbacks(t *testing.T) {
	p := NewStaticProvider(&User{ID: "u1"})

	var seen []*User
	unsub := p.OnAuthStateChanged(func(u *User) { seen = append(seen, u) })
	require.Len(t, seen, 1)
	assert.Equal(t, "u1", seen[0].ID)

	p.SignOut()
	require.Len(t, seen, 2)
	assert.Nil(t, seen[1])

	unsub()
	p.SignIn(User{ID: "u2"})
	assert.Len(t, seen, 2)
	assert.Equal(t, "u2", p.CurrentUser().ID)
}

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("s3cret")
	token, err := IssueToken(secret, User{ID: "u1", Email: "a@example.test", Name: "Ada"}, time.Hour)
	require.NoError(t, err)

	u, err := ParseToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, &User{ID: "u1", Email: "a@example.test", Name: "Ada"}, u)

	_, err = ParseToken([]byte("other"), token)
	assert.Error(t, err)

	_, err = ParseToken(secret, "not.a.token")
	assert.Error(t, err)
}

func TestTokenProvider(t *testing.T) {
	secret := []byte("s3cret")
	token, err := IssueToken(secret, User{ID: "u1"}, time.Hour)
	require.NoError(t, err)

	p := NewTokenProvider(secret, token)
	require.NotNil(t, p.CurrentUser())
	assert.Equal(t, "u1", p.CurrentUser().ID)

	// Past expiry there is no user
	p.WithClock(func() time.Time { return time.Now().Add(2 * time.Hour) })
	assert.Nil(t, p.CurrentUser())
	p.WithClock(time.Now)

	var last *User
	calls := 0
	p.OnAuthStateChanged(func(u *User) {
		calls++
		last = u
	})
	assert.Equal(t, 1, calls)
	require.NotNil(t, last)

	p.SetToken("")
	assert.Equal(t, 2, calls)
	assert.Nil(t, last)

	g := NewGuard(p, WithLogger(quietLogger()))
	d, err := g.BeforeEach(context.Background(), "/")
	require.NoError(t, err)
	assert.False(t, d.Allow)
}
