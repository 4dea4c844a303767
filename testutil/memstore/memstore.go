// Package memstore is an in-memory workload.DataStore and workload.Connector.
// It backs the workload tests and the CLI's dry-run mode.
package memstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/movr-workload-go/workload"
)

// Operation names passed to a FailureInjector.
const (
	OpConnect            = "connect"
	OpCreateUser         = "create_user"
	OpCreateVehicle      = "create_vehicle"
	OpCreateRide         = "create_ride"
	OpListUsers          = "list_users"
	OpListVehicles       = "list_vehicles"
	OpListActiveRides    = "list_active_rides"
	OpStartRide          = "start_ride"
	OpEndRide            = "end_ride"
	OpRecordLocationPing = "record_location_ping"
)

var (
	// ErrUnknownVehicle is returned for a vehicle handle the store did not create.
	ErrUnknownVehicle = errors.New("unknown vehicle")

	// ErrUnknownRide is returned for a ride handle the store did not create.
	ErrUnknownRide = errors.New("unknown ride")

	// ErrRideEnded is returned when ending a ride twice.
	ErrRideEnded = errors.New("ride already ended")

	// ErrSessionClosed is returned when a closed session is used.
	ErrSessionClosed = errors.New("session closed")
)

// FailureInjector is consulted before every operation; a non-nil error is returned instead of executing it.
type FailureInjector func(op string) error

// Vehicle is a stored vehicle.
type Vehicle struct {
	City     string
	ID       uuid.UUID
	OwnerID  uuid.UUID
	Kind     string
	Status   string
	Metadata map[string]string
}

// Ride is a stored ride.
type Ride struct {
	City      string
	ID        uuid.UUID
	RiderID   uuid.UUID
	VehicleID uuid.UUID
	Started   time.Time
	Ended     time.Time
	Active    bool
}

// Ping is a stored location ping.
type Ping struct {
	City      string
	RideID    uuid.UUID
	Lat, Long float64
}

// Store keeps all entities in maps guarded by one mutex.
type Store struct {
	mu       sync.Mutex
	users    map[string][]workload.UserHandle
	vehicles map[uuid.UUID]*Vehicle
	rides    map[uuid.UUID]*Ride
	pings    []Ping

	inject   FailureInjector
	delay    time.Duration
	connects atomic.Int64
	discards atomic.Int64
}

// Option configures a Store.
type Option func(*Store)

// WithFailureInjector makes operations fail on demand.
func WithFailureInjector(inject FailureInjector) Option {
	return func(s *Store) {
		s.inject = inject
	}
}

// WithDelay makes every operation take at least d, or until its context is done.
func WithDelay(d time.Duration) Option {
	return func(s *Store) {
		s.delay = d
	}
}

// New creates an empty Store.
func New(options ...Option) *Store {
	s := &Store{
		users:    make(map[string][]workload.UserHandle),
		vehicles: make(map[uuid.UUID]*Vehicle),
		rides:    make(map[uuid.UUID]*Ride),
	}

	for _, option := range options {
		option(s)
	}

	return s
}

// Connect implements workload.Connector.
func (s *Store) Connect(ctx context.Context) (workload.Session, error) {
	if err := s.before(ctx, OpConnect); err != nil {
		return nil, err
	}
	s.connects.Add(1)

	return &session{store: s}, nil
}

// Connects returns the number of successful Connect calls.
func (s *Store) Connects() int64 {
	return s.connects.Load()
}

// Discards returns the number of sessions closed with discard set.
func (s *Store) Discards() int64 {
	return s.discards.Load()
}

// UserCount returns the number of users of a city.
func (s *Store) UserCount(city string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.users[city])
}

// Vehicles returns copies of all vehicles of a city.
func (s *Store) Vehicles(city string) []Vehicle {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Vehicle
	for _, v := range s.vehicles {
		if v.City == city {
			out = append(out, *v)
		}
	}

	return out
}

// Rides returns copies of all rides of a city.
func (s *Store) Rides(city string) []Ride {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Ride
	for _, r := range s.rides {
		if r.City == city {
			out = append(out, *r)
		}
	}

	return out
}

// Pings returns a copy of all location pings.
func (s *Store) Pings() []Ping {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Ping, len(s.pings))
	copy(out, s.pings)

	return out
}

func (s *Store) before(ctx context.Context, op string) error {
	if s.delay > 0 {
		if err := workload.ContextSleeper(ctx, s.delay); err != nil {
			return err
		}
	}

	if s.inject != nil {
		if err := s.inject(op); err != nil {
			return err
		}
	}

	return ctx.Err()
}

// session is a workload.Session over a Store.
type session struct {
	store  *Store
	closed atomic.Bool
}

func (c *session) Close(discard bool) error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrSessionClosed
	}

	if discard {
		c.store.discards.Add(1)
	}

	return nil
}

func (c *session) begin(ctx context.Context, op string) error {
	if c.closed.Load() {
		return ErrSessionClosed
	}

	return c.store.before(ctx, op)
}

func (c *session) CreateUser(ctx context.Context, city string) (workload.UserHandle, error) {
	if err := c.begin(ctx, OpCreateUser); err != nil {
		return workload.UserHandle{}, err
	}

	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	user := workload.UserHandle{City: city, ID: uuid.New()}
	s.users[city] = append(s.users[city], user)

	return user, nil
}

func (c *session) CreateVehicle(
	ctx context.Context,
	city string,
	owner workload.UserHandle,
	kind string,
	metadata map[string]string,
	status string,
) (workload.VehicleHandle, error) {
	if err := c.begin(ctx, OpCreateVehicle); err != nil {
		return workload.VehicleHandle{}, err
	}

	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	v := &Vehicle{City: city, ID: uuid.New(), OwnerID: owner.ID, Kind: kind, Status: status, Metadata: metadata}
	s.vehicles[v.ID] = v

	return workload.VehicleHandle{City: city, ID: v.ID}, nil
}

func (c *session) CreateRide(
	ctx context.Context,
	city string,
	rider workload.UserHandle,
	vehicle workload.VehicleHandle,
) (workload.RideHandle, error) {
	if err := c.begin(ctx, OpCreateRide); err != nil {
		return workload.RideHandle{}, err
	}

	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vehicles[vehicle.ID]; !ok {
		return workload.RideHandle{}, ErrUnknownVehicle
	}

	now := time.Now()
	r := &Ride{City: city, ID: uuid.New(), RiderID: rider.ID, VehicleID: vehicle.ID, Started: now, Ended: now}
	s.rides[r.ID] = r

	return workload.RideHandle{City: city, ID: r.ID, VehicleID: vehicle.ID}, nil
}

func (c *session) ListUsers(ctx context.Context, city string, limit int) ([]workload.UserHandle, error) {
	if err := c.begin(ctx, OpListUsers); err != nil {
		return nil, err
	}

	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	users := s.users[city]
	out := make([]workload.UserHandle, min(limit, len(users)))
	copy(out, users)

	return out, nil
}

func (c *session) ListVehicles(ctx context.Context, city string, limit int) ([]workload.VehicleHandle, error) {
	if err := c.begin(ctx, OpListVehicles); err != nil {
		return nil, err
	}

	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []workload.VehicleHandle
	for _, v := range s.vehicles {
		if len(out) == limit {
			break
		}
		if v.City == city {
			out = append(out, workload.VehicleHandle{City: city, ID: v.ID})
		}
	}

	return out, nil
}

func (c *session) ListActiveRides(ctx context.Context, city string, limit int) ([]workload.RideHandle, error) {
	if err := c.begin(ctx, OpListActiveRides); err != nil {
		return nil, err
	}

	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []workload.RideHandle
	for _, r := range s.rides {
		if len(out) == limit {
			break
		}
		if r.City == city && r.Active {
			out = append(out, workload.RideHandle{City: city, ID: r.ID, VehicleID: r.VehicleID})
		}
	}

	return out, nil
}

func (c *session) StartRide(
	ctx context.Context,
	city string,
	rider workload.UserHandle,
	vehicle workload.VehicleHandle,
) (workload.RideHandle, error) {
	if err := c.begin(ctx, OpStartRide); err != nil {
		return workload.RideHandle{}, err
	}

	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vehicles[vehicle.ID]
	if !ok {
		return workload.RideHandle{}, ErrUnknownVehicle
	}

	if v.Status != workload.VehicleAvailable {
		return workload.RideHandle{}, workload.ErrVehicleUnavailable
	}

	v.Status = workload.VehicleInUse
	r := &Ride{City: city, ID: uuid.New(), RiderID: rider.ID, VehicleID: vehicle.ID, Started: time.Now(), Active: true}
	s.rides[r.ID] = r

	return workload.RideHandle{City: city, ID: r.ID, VehicleID: vehicle.ID}, nil
}

func (c *session) EndRide(ctx context.Context, _ string, ride workload.RideHandle) error {
	if err := c.begin(ctx, OpEndRide); err != nil {
		return err
	}

	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rides[ride.ID]
	if !ok {
		return ErrUnknownRide
	}

	if !r.Active {
		return ErrRideEnded
	}

	r.Active = false
	r.Ended = time.Now()
	if v, ok := s.vehicles[r.VehicleID]; ok {
		v.Status = workload.VehicleAvailable
	}

	return nil
}

func (c *session) RecordLocationPing(ctx context.Context, city string, ride workload.RideHandle, lat, long float64) error {
	if err := c.begin(ctx, OpRecordLocationPing); err != nil {
		return err
	}

	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pings = append(s.pings, Ping{City: city, RideID: ride.ID, Lat: lat, Long: long})

	return nil
}
