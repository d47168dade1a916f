package auth

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// listeners holds auth state callbacks.
type listeners struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(*User)
}

func (l *listeners) add(fn func(*User)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func(*User))
	}
	id := l.next
	l.next++
	l.fns[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.fns, id)
	}
}

func (l *listeners) fire(u *User) {
	l.mu.Lock()
	fns := make([]func(*User), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()
	for _, fn := range fns {
		fn(copyUser(u))
	}
}

func copyUser(u *User) *User {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}

// StaticProvider is an in-memory identity.
type StaticProvider struct {
	mu        sync.RWMutex
	user      *User
	listeners listeners
}

// NewStaticProvider starts signed in as user, or signed out when nil.
func NewStaticProvider(user *User) *StaticProvider {
	return &StaticProvider{user: copyUser(user)}
}

// OnAuthStateChanged calls fn now with the current user and again on every
// sign in or sign out.
func (p *StaticProvider) OnAuthStateChanged(fn func(*User)) func() {
	unsub := p.listeners.add(fn)
	fn(p.CurrentUser())
	return unsub
}

// CurrentUser returns the signed-in user or nil.
func (p *StaticProvider) CurrentUser() *User {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return copyUser(p.user)
}

// SignIn replaces the current user.
func (p *StaticProvider) SignIn(u User) {
	p.mu.Lock()
	p.user = &u
	p.mu.Unlock()
	p.listeners.fire(&u)
}

// SignOut clears the current user.
func (p *StaticProvider) SignOut() {
	p.mu.Lock()
	p.user = nil
	p.mu.Unlock()
	p.listeners.fire(nil)
}

// Claims are the identity token claims.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for u valid for ttl.
func IssueToken(secret []byte, u User, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: u.Email,
		Name:  u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("error while generating token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies an HS256 token and returns its user.
func ParseToken(secret []byte, tokenString string, opts ...jwt.ParserOption) (*User, error) {
	var claims Claims
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	parsed, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("error while validating token: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("token is invalid")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return &User{ID: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
}

// TokenProvider derives the user from a signed token. An invalid or
// expired token means nobody is signed in.
type TokenProvider struct {
	secret []byte
	now    func() time.Time

	mu        sync.RWMutex
	token     string
	listeners listeners
}

// NewTokenProvider verifies tokens with secret.
func NewTokenProvider(secret []byte, token string) *TokenProvider {
	return &TokenProvider{secret: secret, token: token, now: time.Now}
}

// WithClock replaces time.Now for expiry checks.
func (p *TokenProvider) WithClock(now func() time.Time) *TokenProvider {
	p.now = now
	return p
}

// OnAuthStateChanged calls fn now with the current user and again after
// every SetToken.
func (p *TokenProvider) OnAuthStateChanged(fn func(*User)) func() {
	unsub := p.listeners.add(fn)
	fn(p.CurrentUser())
	return unsub
}

// CurrentUser verifies the token at call time.
func (p *TokenProvider) CurrentUser() *User {
	p.mu.RLock()
	token := p.token
	p.mu.RUnlock()
	if token == "" {
		return nil
	}
	u, err := ParseToken(p.secret, token, jwt.WithTimeFunc(p.now))
	if err != nil {
		return nil
	}
	return u
}

// SetToken replaces the token; an empty token signs out.
func (p *TokenProvider) SetToken(token string) {
	p.mu.Lock()
	p.token = token
	p.mu.Unlock()
	p.listeners.fire(p.CurrentUser())
}
