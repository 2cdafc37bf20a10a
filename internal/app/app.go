// Package app wires the process-wide controllers. Everything is built once
// by constructor injection; there are no package-level singletons.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/presensia/presensia-core/config"
	"github.com/presensia/presensia-core/internal/apperr"
	authdomain "github.com/presensia/presensia-core/internal/auth/domain"
	"github.com/presensia/presensia-core/internal/auth/repository"
	authservice "github.com/presensia/presensia-core/internal/auth/service"
	coursesservice "github.com/presensia/presensia-core/internal/courses/service"
	"github.com/presensia/presensia-core/internal/gateway"
	"github.com/presensia/presensia-core/internal/kvstore"
	"github.com/presensia/presensia-core/internal/logging"
	"github.com/presensia/presensia-core/internal/refresh"
	"github.com/presensia/presensia-core/internal/storage/postgres"
	usersservice "github.com/presensia/presensia-core/internal/users/service"
)

// Backends are the remote and local stores the controllers run on.
type Backends struct {
	Identity gateway.IdentityProvider
	Store    gateway.DocumentStore
	// Plain holds the profile cache and preferences; Secure holds the token.
	Plain  kvstore.Store
	Secure kvstore.Store
}

type App struct {
	Config   *config.Config
	Log      logging.Sink
	Registry *prometheus.Registry

	Gateway *gateway.Gateway
	Session *authservice.SessionService
	Users   *usersservice.UsersService
	Courses *coursesservice.CoursesService
	Refresh *refresh.Scheduler

	// Pool is set for the postgres backend.
	Pool *pgxpool.Pool

	closers []func() error
	stop    []func()
}

// New opens the backends selected by cfg and wires the controllers on them.
func New(ctx context.Context, cfg *config.Config, log logging.Sink) (*App, error) {
	var (
		b       Backends
		pool    *pgxpool.Pool
		closers []func() error
	)
	fail := func(err error) (*App, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		return nil, err
	}

	switch cfg.Gateway.Backend {
	case config.BackendFirebase:
		fb, err := gateway.NewFirebaseApp(ctx, &cfg.Firebase)
		if err != nil {
			return fail(err)
		}
		authClient, err := fb.Auth(ctx)
		if err != nil {
			return fail(fmt.Errorf("firebase auth client: %w", err))
		}
		fs, err := fb.Firestore(ctx)
		if err != nil {
			return fail(fmt.Errorf("firestore client: %w", err))
		}
		closers = append(closers, fs.Close)
		b.Identity = gateway.NewFirebaseIdentity(authClient, cfg.Firebase.APIKey)
		b.Store = gateway.NewFirestoreStore(fs)

	case config.BackendPostgres:
		p, err := postgres.NewPool(ctx, &cfg.Database)
		if err != nil {
			return fail(err)
		}
		pool = p
		closers = append(closers, func() error { p.Close(); return nil })
		store := gateway.NewPostgresStore(p)
		if err := store.EnsureSchema(ctx); err != nil {
			return fail(fmt.Errorf("ensure documents schema: %w", err))
		}
		// Accounts stay in process memory; postgres only holds documents.
		b.Identity = gateway.NewMemoryIdentity()
		b.Store = store

	default:
		b.Identity = gateway.NewMemoryIdentity()
		b.Store = gateway.NewMemoryStore()
	}

	switch cfg.Cache.Driver {
	case config.CacheRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return fail(fmt.Errorf("redis ping: %w", err))
		}
		closers = append(closers, client.Close)
		b.Plain = kvstore.NewRedisStore(client, kvstore.WithPrefix("presensia:"))
	default:
		bs, err := kvstore.OpenBadger(kvstore.BadgerConfig{Path: cfg.Cache.BadgerPath})
		if err != nil {
			return fail(err)
		}
		closers = append(closers, bs.Close)
		b.Plain = bs
	}

	secure, err := kvstore.NewSecureStore(ctx, b.Plain, kvstore.WithSecret(cfg.Cache.Secret))
	if err != nil {
		return fail(err)
	}
	closers = append(closers, func() error { secure.Purge(); return nil })
	b.Secure = secure

	a, err := Assemble(cfg, log, b)
	if err != nil {
		return fail(err)
	}
	a.Pool = pool
	a.closers = closers
	return a, nil
}

// Assemble wires controllers over already-open backends.
func Assemble(cfg *config.Config, log logging.Sink, b Backends) (*App, error) {
	if log == nil {
		log = logging.Nop()
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	loc := apperr.NewLocalizer(apperr.MustCatalog(), cfg.App.Locale)
	gw := gateway.New(b.Identity, b.Store,
		gateway.WithTimeout(cfg.Gateway.Timeout),
		gateway.WithLogger(log),
		gateway.WithMetrics(gateway.NewMetrics(reg)),
		gateway.WithLocalizer(loc),
	)

	profiles := repository.NewProfileRepository(gw)
	session := authservice.NewSessionService(gw, profiles,
		repository.NewProfileCache(b.Plain),
		repository.NewTokenStore(b.Secure),
		authservice.WithLogger(log),
		authservice.WithPreferences(repository.NewPreferences(b.Plain)),
	)
	users := usersservice.NewUsersService(gw, profiles, session, usersservice.WithLogger(log))
	courses := coursesservice.NewCoursesService(gw, coursesservice.WithLogger(log))

	a := &App{
		Config:   cfg,
		Log:      log,
		Registry: reg,
		Gateway:  gw,
		Session:  session,
		Users:    users,
		Courses:  courses,
	}

	schedule := cfg.App.RefreshSchedule
	if schedule == "" {
		schedule = refresh.DefaultSchedule
	}
	sched, err := refresh.NewScheduler(schedule, session, []refresh.Task{
		{Name: "users", Run: func(ctx context.Context) error { _, err := users.FetchAll(ctx); return err }},
		{Name: "courses", Run: func(ctx context.Context) error { _, err := courses.FetchAll(ctx); return err }},
	}, refresh.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", schedule, err)
	}
	a.Refresh = sched
	return a, nil
}

// Start brings the session up and hydrates both mirrors whenever it becomes
// authenticated. ctx must live as long as the app.
func (a *App) Start(ctx context.Context) {
	remove := a.Session.OnChange(func(state authservice.State, _ *authdomain.UserProfile) {
		if state != authservice.StateAuthenticated {
			return
		}
		if err := a.Hydrate(ctx); err != nil {
			a.Log.Warn(logging.TagSession, "mirror hydration failed", logging.Err(err))
		}
	})
	a.stop = append(a.stop, remove, a.Session.Start(ctx))
	a.Refresh.Start()
}

// Hydrate loads the users and courses mirrors concurrently. Both loads run
// to completion; the first failure is returned.
func (a *App) Hydrate(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error {
		_, err := a.Users.FetchAll(ctx)
		return err
	})
	g.Go(func() error {
		_, err := a.Courses.FetchAll(ctx)
		return err
	})
	return g.Wait()
}

// Close stops the refresh schedule and the session subscription, then
// releases the backends in reverse order of opening.
func (a *App) Close(ctx context.Context) error {
	if a.Refresh != nil {
		a.Refresh.Stop(ctx)
	}
	for i := len(a.stop) - 1; i >= 0; i-- {
		a.stop[i]()
	}
	a.stop = nil
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
