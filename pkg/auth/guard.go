// Package auth gates dashboard navigation on the signed-in user.
package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/grovetools/invoicedash/errors"
	"github.com/grovetools/invoicedash/logging"
	"github.com/sirupsen/logrus"
)

// User is the signed-in identity.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// IdentityProvider reports the current user and its changes.
// OnAuthStateChanged must eventually call fn with the current user.
type IdentityProvider interface {
	OnAuthStateChanged(fn func(*User)) (unsubscribe func())
	CurrentUser() *User
}

// Route is a navigable page.
type Route struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	RequiresAuth bool   `json:"requiresAuth"`
}

// NotFound matches any path no other route claims.
var NotFound = Route{Path: "/:pathMatch(.*)*", Name: "NotFound"}

// DefaultRoutes is the dashboard route table.
var DefaultRoutes = []Route{
	{Path: "/login", Name: "Login"},
	{Path: "/signup", Name: "Signup"},
	{Path: "/", Name: "Dashboard", RequiresAuth: true},
	{Path: "/invoice", Name: "Invoice", RequiresAuth: true},
	{Path: "/accounts", Name: "Accounts", RequiresAuth: true},
	{Path: "/beneficiaries", Name: "Beneficiary Management", RequiresAuth: true},
	{Path: "/overview", Name: "Overview", RequiresAuth: true},
	{Path: "/help", Name: "Help Center", RequiresAuth: true},
	{Path: "/settings", Name: "Settings", RequiresAuth: true},
}

// Decision is the outcome of a navigation check.
type Decision struct {
	Route    Route  `json:"route"`
	Allow    bool   `json:"allow"`
	Redirect string `json:"redirect,omitempty"`
	User     *User  `json:"user,omitempty"`
}

// Err returns an UNAUTHENTICATED error for a redirect, nil otherwise.
func (d Decision) Err() error {
	if d.Allow {
		return nil
	}
	return errors.Unauthenticated(d.Route.Path, d.Redirect)
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithRoutes replaces DefaultRoutes.
func WithRoutes(routes []Route) GuardOption {
	return func(g *Guard) { g.routes = routes }
}

// WithLoginPath sets the redirect target ("/login").
func WithLoginPath(path string) GuardOption {
	return func(g *Guard) { g.loginPath = path }
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Entry) GuardOption {
	return func(g *Guard) { g.logger = logger }
}

// Guard decides navigations. The first navigation waits for the provider's
// initial auth state; later ones read CurrentUser directly.
type Guard struct {
	provider  IdentityProvider
	routes    []Route
	loginPath string
	logger    *logrus.Entry

	once      sync.Once
	ready     chan struct{}
	mu        sync.Mutex
	checked   bool
	firstUser *User
	unsub     func()
}

// NewGuard creates a guard over provider.
func NewGuard(provider IdentityProvider, opts ...GuardOption) *Guard {
	g := &Guard{
		provider:  provider,
		routes:    DefaultRoutes,
		loginPath: "/login",
		ready:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = logging.NewLogger("auth")
	}
	return g
}

// Match returns the route for path, or NotFound.
func (g *Guard) Match(path string) Route {
	path = normalize(path)
	for _, r := range g.routes {
		if r.Path == path {
			return r
		}
	}
	return NotFound
}

// BeforeEach decides whether navigating to path may proceed. Routes that
// require auth redirect to the login path when nobody is signed in. The
// only error is ctx ending while the first auth state is awaited.
func (g *Guard) BeforeEach(ctx context.Context, path string) (Decision, error) {
	route := g.Match(path)

	g.mu.Lock()
	checked := g.checked
	g.mu.Unlock()

	var user *User
	if checked {
		user = g.provider.CurrentUser()
	} else {
		g.once.Do(g.subscribe)
		select {
		case <-ctx.Done():
			return Decision{Route: route}, ctx.Err()
		case <-g.ready:
		}
		g.mu.Lock()
		user = g.firstUser
		if g.unsub != nil {
			g.unsub()
			g.unsub = nil
		}
		g.mu.Unlock()
	}

	d := Decision{Route: route, Allow: true, User: user}
	if route.RequiresAuth && user == nil {
		d.Allow = false
		d.Redirect = g.loginPath
	}

	g.logger.WithFields(logrus.Fields{
		"path":     route.Path,
		"allow":    d.Allow,
		"redirect": d.Redirect,
	}).Debug("Navigation checked")
	return d, nil
}

func (g *Guard) subscribe() {
	unsub := g.provider.OnAuthStateChanged(func(u *User) {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.checked {
			return
		}
		g.checked = true
		g.firstUser = u
		close(g.ready)
	})

	g.mu.Lock()
	if g.checked {
		// Already answered; no need to keep listening
		g.mu.Unlock()
		unsub()
		return
	}
	g.unsub = unsub
	g.mu.Unlock()
}

func normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			return "/"
		}
	}
	return path
}
