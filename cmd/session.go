package cmd

import (
	"context"
	"os"
	"os/user"

	"github.com/grovetools/invoicedash/config"
	"github.com/grovetools/invoicedash/internal/seed"
	"github.com/grovetools/invoicedash/pkg/auth"
	"github.com/grovetools/invoicedash/pkg/dashboard"
	"github.com/grovetools/invoicedash/pkg/realtime"
	"github.com/grovetools/invoicedash/pkg/store"
	"github.com/sirupsen/logrus"
)

// session is a connected dashboard: transport, stores and the glue
// between them.
type session struct {
	client     *realtime.Client
	invoices   *store.InvoiceStore
	activities *store.ActivityStore
	dashboard  *dashboard.Dashboard
}

// newSession wires the stores to a realtime client built from cfg. The
// client is not connected yet.
func newSession(ctx context.Context, cfg *config.Config, logger *logrus.Entry) (*session, error) {
	ids, err := store.NewSnowflakeIDs(int64(cfg.Store.IDNode))
	if err != nil {
		return nil, err
	}

	client := realtime.NewClient(realtime.OptionsFromConfig(cfg.Client), logger)
	invoices := store.NewInvoiceStore(ctx,
		store.WithSeed(seed.Invoices),
		store.WithSeedDelay(cfg.Store.SeedDelay()),
		store.WithIDGenerator(ids),
		store.WithLogger(logger),
	)
	activities := store.NewActivityStore(store.WithMaxActivities(cfg.Store.MaxActivities))

	d := dashboard.New(client, invoices, activities, dashboard.WithLogger(logger))
	d.Bind()

	return &session{
		client:     client,
		invoices:   invoices,
		activities: activities,
		dashboard:  d,
	}, nil
}

// identityProvider verifies the token in auth.token_env when a secret is
// configured. Without one the local user is always signed in.
func identityProvider(cfg *config.Config) auth.IdentityProvider {
	if cfg.Auth.TokenSecret != "" {
		return auth.NewTokenProvider([]byte(cfg.Auth.TokenSecret), os.Getenv(cfg.Auth.TokenEnv))
	}
	return auth.NewStaticProvider(localUser())
}

func localUser() *auth.User {
	u := &auth.User{ID: "local", Name: "local", Email: "local@localhost"}
	if cur, err := user.Current(); err == nil {
		u.ID = cur.Uid
		u.Name = cur.Username
		u.Email = cur.Username + "@localhost"
	}
	return u
}

func newGuard(cfg *config.Config, logger *logrus.Entry) *auth.Guard {
	return auth.NewGuard(identityProvider(cfg),
		auth.WithLoginPath(cfg.Auth.LoginPath),
		auth.WithLogger(logger),
	)
}
