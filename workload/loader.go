package workload

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

const (
	logMsgCityLoaded    = "city loaded"
	logMsgCityPreloaded = "city preloaded"

	logAttrUsers    = "users"
	logAttrVehicles = "vehicles"
	logAttrRides    = "rides"
)

var (
	// ErrNegativeCount is returned when a load size is negative.
	ErrNegativeCount = errors.New("load sizes must not be negative")
)

// LoadConfig sizes the initial data set. Counts are totals, divided across cities with at least one per city.
type LoadConfig struct {
	Cities   []string
	Users    int
	Vehicles int
	Rides    int
	Threads  int
	Seed     int64
}

// LoadResult counts the entities created by Load.
type LoadResult struct {
	Users    uint64
	Vehicles uint64
	Rides    uint64
}

// Loader populates the data store with users, vehicles owned by them and historical rides.
type Loader struct {
	connector Connector
	executor  *RetryingExecutor
	obs       observer
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader) error

// NewLoader creates a Loader whose writes run through executor.
func NewLoader(connector Connector, executor *RetryingExecutor, options ...LoaderOption) (*Loader, error) {
	if connector == nil {
		return nil, ErrNilConnector
	}

	if executor == nil {
		var err error
		if executor, err = NewRetryingExecutor(SentinelClassifier); err != nil {
			return nil, err
		}
	}

	l := &Loader{connector: connector, executor: executor}
	for _, option := range options {
		if err := option(l); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// WithLoaderLogger sets the logger for per-city progress.
func WithLoaderLogger(logger Logger) LoaderOption {
	return func(l *Loader) error {
		l.obs.logger = logger
		return nil
	}
}

// WithLoaderContextualLogger sets a context-aware logger, preferred over WithLoaderLogger.
func WithLoaderContextualLogger(logger ContextualLogger) LoaderOption {
	return func(l *Loader) error {
		l.obs.contextualLogger = logger
		return nil
	}
}

// Load distributes the cities over cfg.Threads goroutines, each with its own session.
// The first error cancels the remaining cities.
func (l *Loader) Load(ctx context.Context, cfg LoadConfig) (LoadResult, error) {
	if len(cfg.Cities) == 0 {
		return LoadResult{}, ErrNoCities
	}

	if cfg.Users < 0 || cfg.Vehicles < 0 || cfg.Rides < 0 {
		return LoadResult{}, ErrNegativeCount
	}

	threads := min(max(cfg.Threads, 1), len(cfg.Cities))
	perThread := (len(cfg.Cities) + threads - 1) / threads

	var users, vehicles, rides atomic.Uint64
	g, gctx := errgroup.WithContext(ctx)

	for start := 0; start < len(cfg.Cities); start += perThread {
		chunk := cfg.Cities[start:min(start+perThread, len(cfg.Cities))]
		seed := DeriveSeed(cfg.Seed, fmt.Sprintf("loader-%d", start))

		g.Go(func() error {
			session, err := l.connector.Connect(gctx)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close(false) }()

			city := cityLoader{
				session:  session,
				executor: l.executor,
				rng:      rand.New(rand.NewSource(seed)), //nolint:gosec // workload randomness
				gen:      NewGenerator(seed),
			}

			for _, name := range chunk {
				n, err := city.load(gctx, name, perCity(cfg.Users, len(cfg.Cities)),
					perCity(cfg.Vehicles, len(cfg.Cities)), perCity(cfg.Rides, len(cfg.Cities)))
				users.Add(n.Users)
				vehicles.Add(n.Vehicles)
				rides.Add(n.Rides)
				if err != nil {
					return errors.Join(err, fmt.Errorf("loading %s", name))
				}

				l.obs.info(gctx, logMsgCityLoaded, logAttrCity, name,
					logAttrUsers, n.Users, logAttrVehicles, n.Vehicles, logAttrRides, n.Rides)
			}

			return nil
		})
	}

	err := g.Wait()

	return LoadResult{Users: users.Load(), Vehicles: vehicles.Load(), Rides: rides.Load()}, err
}

func perCity(total, cities int) int {
	return max(1, total/cities)
}

type cityLoader struct {
	session  Session
	executor *RetryingExecutor
	rng      *rand.Rand
	gen      *Generator
}

func (c cityLoader) load(ctx context.Context, city string, numUsers, numVehicles, numRides int) (LoadResult, error) {
	var result LoadResult

	users := make([]UserHandle, 0, numUsers)
	for range numUsers {
		user, err := Execute(ctx, c.executor, func(ctx context.Context) (UserHandle, error) {
			return c.session.CreateUser(ctx, city)
		})
		if err != nil {
			return result, err
		}
		users = append(users, user)
		result.Users++
	}

	vehicles := make([]VehicleHandle, 0, numVehicles)
	for range numVehicles {
		owner := users[c.rng.Intn(len(users))]
		kind := c.gen.VehicleKind()
		metadata := c.gen.VehicleMetadata(kind)
		status := c.gen.VehicleStatus()

		vehicle, err := Execute(ctx, c.executor, func(ctx context.Context) (VehicleHandle, error) {
			return c.session.CreateVehicle(ctx, city, owner, kind, metadata, status)
		})
		if err != nil {
			return result, err
		}
		vehicles = append(vehicles, vehicle)
		result.Vehicles++
	}

	for range numRides {
		rider := users[c.rng.Intn(len(users))]
		vehicle := vehicles[c.rng.Intn(len(vehicles))]

		_, err := Execute(ctx, c.executor, func(ctx context.Context) (RideHandle, error) {
			return c.session.CreateRide(ctx, city, rider, vehicle)
		})
		if err != nil {
			return result, err
		}
		result.Rides++
	}

	return result, nil
}

// PreloadCache fills cache with up to limit users, vehicles and active rides per city.
// Every city must have users and vehicles, otherwise ErrMissingFixtures is returned.
func PreloadCache(ctx context.Context, connector Connector, cache *HandleCache, cities []string, limit int, logger Logger) error {
	if connector == nil {
		return ErrNilConnector
	}

	if len(cities) == 0 {
		return ErrNoCities
	}

	session, err := connector.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = session.Close(false) }()

	obs := observer{logger: logger}
	for _, city := range cities {
		users, err := session.ListUsers(ctx, city, limit)
		if err != nil {
			return err
		}

		vehicles, err := session.ListVehicles(ctx, city, limit)
		if err != nil {
			return err
		}

		if len(users) == 0 || len(vehicles) == 0 {
			return errors.Join(ErrMissingFixtures, fmt.Errorf("city %q has %d users and %d vehicles", city, len(users), len(vehicles)))
		}

		rides, err := session.ListActiveRides(ctx, city, limit)
		if err != nil {
			return err
		}

		cache.AddUsers(city, users...)
		cache.AddVehicles(city, vehicles...)
		cache.PushRides(city, rides...)

		obs.debug(ctx, logMsgCityPreloaded, logAttrCity, city,
			logAttrUsers, len(users), logAttrVehicles, len(vehicles), logAttrRides, len(rides))
	}

	return nil
}
