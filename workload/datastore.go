package workload

import (
	"context"

	"github.com/google/uuid"
)

// UserHandle references a user created by the data store.
type UserHandle struct {
	City string
	ID   uuid.UUID
}

// VehicleHandle references a vehicle created by the data store.
type VehicleHandle struct {
	City string
	ID   uuid.UUID
}

// RideHandle references a ride. Ending a ride requires the handle returned by starting it.
type RideHandle struct {
	City      string
	ID        uuid.UUID
	VehicleID uuid.UUID
}

// DataStore is the persistence collaborator of the simulation.
// Each call is one all-or-nothing attempt; retrying is the caller's business.
type DataStore interface {
	CreateUser(ctx context.Context, city string) (UserHandle, error)
	CreateVehicle(ctx context.Context, city string, owner UserHandle, kind string, metadata map[string]string, status string) (VehicleHandle, error)
	CreateRide(ctx context.Context, city string, rider UserHandle, vehicle VehicleHandle) (RideHandle, error)
	ListUsers(ctx context.Context, city string, limit int) ([]UserHandle, error)
	ListVehicles(ctx context.Context, city string, limit int) ([]VehicleHandle, error)
	ListActiveRides(ctx context.Context, city string, limit int) ([]RideHandle, error)

	// StartRide marks the vehicle in use in the same transaction that creates the ride.
	StartRide(ctx context.Context, city string, rider UserHandle, vehicle VehicleHandle) (RideHandle, error)

	// EndRide marks the vehicle available in the same transaction that completes the ride.
	EndRide(ctx context.Context, city string, ride RideHandle) error

	RecordLocationPing(ctx context.Context, city string, ride RideHandle, lat, long float64) error
}

// Session is a DataStore bound to one connection.
// Close(true) discards the connection instead of returning it to a pool,
// so the next Connect may be balanced onto another node.
type Session interface {
	DataStore
	Close(discard bool) error
}

// Connector hands out sessions.
type Connector interface {
	Connect(ctx context.Context) (Session, error)
}
