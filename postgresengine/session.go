package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/movr-workload-go/postgresengine/internal/adapters"
	"github.com/AntonStoeckl/movr-workload-go/workload"
)

// historicalRideDuration is the length of rides created by the loader.
const historicalRideDuration = 20 * time.Minute

// Session is a workload.Session bound to one pooled connection.
// A Session is not safe for concurrent use; every worker owns its own.
type Session struct {
	engine *Engine
	conn   adapters.DBConn
	gen    *workload.Generator
	closed atomic.Bool
}

// CreateUser inserts a user with a generated name, address and credit card.
func (s *Session) CreateUser(ctx context.Context, city string) (user workload.UserHandle, err error) {
	obs, ctx := s.engine.startOperation(ctx, operationCreateUser, city)
	defer func() { obs.finish(err) }()

	if err = s.checkOpen(); err != nil {
		return workload.UserHandle{}, err
	}

	id := uuid.New()

	sqlQuery, err := s.engine.queries.insertUser(city, id, s.gen.Person())
	if err != nil {
		return workload.UserHandle{}, err
	}

	if _, err = s.exec(ctx, s.conn, operationCreateUser, sqlQuery); err != nil {
		return workload.UserHandle{}, err
	}

	return workload.UserHandle{City: city, ID: id}, nil
}

// CreateVehicle inserts a vehicle at a generated location.
func (s *Session) CreateVehicle(
	ctx context.Context,
	city string,
	owner workload.UserHandle,
	kind string,
	metadata map[string]string,
	status string,
) (vehicle workload.VehicleHandle, err error) {
	obs, ctx := s.engine.startOperation(ctx, operationCreateVehicle, city)
	defer func() { obs.finish(err) }()

	if err = s.checkOpen(); err != nil {
		return workload.VehicleHandle{}, err
	}

	id := uuid.New()

	sqlQuery, err := s.engine.queries.insertVehicle(
		city, id, owner, kind, metadata, status, s.gen.Address(), time.Now().UTC(),
	)
	if err != nil {
		return workload.VehicleHandle{}, err
	}

	if _, err = s.exec(ctx, s.conn, operationCreateVehicle, sqlQuery); err != nil {
		return workload.VehicleHandle{}, err
	}

	return workload.VehicleHandle{City: city, ID: id}, nil
}

// CreateRide inserts a completed historical ride.
func (s *Session) CreateRide(
	ctx context.Context,
	city string,
	rider workload.UserHandle,
	vehicle workload.VehicleHandle,
) (ride workload.RideHandle, err error) {
	obs, ctx := s.engine.startOperation(ctx, operationCreateRide, city)
	defer func() { obs.finish(err) }()

	if err = s.checkOpen(); err != nil {
		return workload.RideHandle{}, err
	}

	id := uuid.New()
	end := time.Now().UTC()

	sqlQuery, err := s.engine.queries.insertRide(
		city, id, rider, vehicle,
		s.gen.Address(), s.gen.Address(),
		end.Add(-historicalRideDuration), end,
		s.gen.Revenue(),
	)
	if err != nil {
		return workload.RideHandle{}, err
	}

	if _, err = s.exec(ctx, s.conn, operationCreateRide, sqlQuery); err != nil {
		return workload.RideHandle{}, err
	}

	return workload.RideHandle{City: city, ID: id, VehicleID: vehicle.ID}, nil
}

// ListUsers returns up to limit users of a city.
func (s *Session) ListUsers(ctx context.Context, city string, limit int) (users []workload.UserHandle, err error) {
	obs, ctx := s.engine.startOperation(ctx, operationListUsers, city)
	defer func() { obs.finish(err) }()

	if err = s.checkOpen(); err != nil {
		return nil, err
	}

	sqlQuery, err := s.engine.queries.selectUsers(city, limit)
	if err != nil {
		return nil, err
	}

	err = s.query(ctx, operationListUsers, sqlQuery, func(rows adapters.DBRows) error {
		var user workload.UserHandle
		id, scanErr := scanCityAndID(rows, &user.City)
		if scanErr != nil {
			return scanErr
		}
		user.ID = id
		users = append(users, user)

		return nil
	})

	return users, err
}

// ListVehicles returns up to limit available vehicles of a city.
func (s *Session) ListVehicles(ctx context.Context, city string, limit int) (vehicles []workload.VehicleHandle, err error) {
	obs, ctx := s.engine.startOperation(ctx, operationListVehicles, city)
	defer func() { obs.finish(err) }()

	if err = s.checkOpen(); err != nil {
		return nil, err
	}

	sqlQuery, err := s.engine.queries.selectAvailableVehicles(city, limit)
	if err != nil {
		return nil, err
	}

	err = s.query(ctx, operationListVehicles, sqlQuery, func(rows adapters.DBRows) error {
		var vehicle workload.VehicleHandle
		id, scanErr := scanCityAndID(rows, &vehicle.City)
		if scanErr != nil {
			return scanErr
		}
		vehicle.ID = id
		vehicles = append(vehicles, vehicle)

		return nil
	})

	return vehicles, err
}

// ListActiveRides returns up to limit rides of a city that have not ended.
func (s *Session) ListActiveRides(ctx context.Context, city string, limit int) (rides []workload.RideHandle, err error) {
	obs, ctx := s.engine.startOperation(ctx, operationListActiveRides, city)
	defer func() { obs.finish(err) }()

	if err = s.checkOpen(); err != nil {
		return nil, err
	}

	sqlQuery, err := s.engine.queries.selectActiveRides(city, limit)
	if err != nil {
		return nil, err
	}

	err = s.query(ctx, operationListActiveRides, sqlQuery, func(rows adapters.DBRows) error {
		var ride workload.RideHandle
		var id, vehicleID string

		if scanErr := rows.Scan(&ride.City, &id, &vehicleID); scanErr != nil {
			return scanErr
		}

		var parseErr error
		if ride.ID, parseErr = uuid.Parse(id); parseErr != nil {
			return parseErr
		}
		if ride.VehicleID, parseErr = uuid.Parse(vehicleID); parseErr != nil {
			return parseErr
		}

		rides = append(rides, ride)

		return nil
	})

	return rides, err
}

// StartRide marks the vehicle in use and inserts an active ride in one transaction.
func (s *Session) StartRide(
	ctx context.Context,
	city string,
	rider workload.UserHandle,
	vehicle workload.VehicleHandle,
) (ride workload.RideHandle, err error) {
	obs, ctx := s.engine.startOperation(ctx, operationStartRide, city)
	defer func() { obs.finish(err) }()

	if err = s.checkOpen(); err != nil {
		return workload.RideHandle{}, err
	}

	id := uuid.New()

	claimVehicle, err := s.engine.queries.claimVehicle(city, vehicle.ID)
	if err != nil {
		return workload.RideHandle{}, err
	}

	insertRide, err := s.engine.queries.insertRide(
		city, id, rider, vehicle, s.gen.Address(), "", time.Now().UTC(), time.Time{}, 0,
	)
	if err != nil {
		return workload.RideHandle{}, err
	}

	err = s.inTransaction(ctx, func(tx adapters.DBTx) error {
		rowsAffected, txErr := s.exec(ctx, tx, operationStartRide, claimVehicle)
		if txErr != nil {
			return txErr
		}
		if rowsAffected == 0 {
			return errors.Join(ErrVehicleUnavailable, fmt.Errorf("vehicle %s in %s", vehicle.ID, city))
		}

		_, txErr = s.exec(ctx, tx, operationStartRide, insertRide)

		return txErr
	})
	if err != nil {
		return workload.RideHandle{}, err
	}

	return workload.RideHandle{City: city, ID: id, VehicleID: vehicle.ID}, nil
}

// EndRide completes the ride and marks its vehicle available in one transaction.
func (s *Session) EndRide(ctx context.Context, city string, ride workload.RideHandle) (err error) {
	obs, ctx := s.engine.startOperation(ctx, operationEndRide, city)
	defer func() { obs.finish(err) }()

	if err = s.checkOpen(); err != nil {
		return err
	}

	completeRide, err := s.engine.queries.completeRide(ride, s.gen.Address(), time.Now().UTC(), s.gen.Revenue())
	if err != nil {
		return err
	}

	updateVehicle, err := s.engine.queries.updateVehicleStatus(ride.City, ride.VehicleID, workload.VehicleAvailable)
	if err != nil {
		return err
	}

	return s.inTransaction(ctx, func(tx adapters.DBTx) error {
		rowsAffected, txErr := s.exec(ctx, tx, operationEndRide, completeRide)
		if txErr != nil {
			return txErr
		}
		if rowsAffected == 0 {
			return ErrRideNotActive
		}

		_, txErr = s.exec(ctx, tx, operationEndRide, updateVehicle)

		return txErr
	})
}

// RecordLocationPing appends a location of the ride's vehicle to the location history.
func (s *Session) RecordLocationPing(
	ctx context.Context,
	city string,
	ride workload.RideHandle,
	lat, long float64,
) (err error) {
	obs, ctx := s.engine.startOperation(ctx, operationLocationPing, city)
	defer func() { obs.finish(err) }()

	if err = s.checkOpen(); err != nil {
		return err
	}

	sqlQuery, err := s.engine.queries.insertLocationPing(city, ride, time.Now().UTC(), lat, long)
	if err != nil {
		return err
	}

	_, err = s.exec(ctx, s.conn, operationLocationPing, sqlQuery)

	return err
}

// Close returns the connection to the pool, or closes it if discard is set.
// Closing twice is a no-op.
func (s *Session) Close(discard bool) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	if err := s.conn.Release(discard); err != nil {
		s.engine.logWarn(context.Background(), logMsgReleaseFailed, err)
		return err
	}

	return nil
}

func (s *Session) checkOpen() error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	return nil
}

// exec runs one statement and returns the number of affected rows.
func (s *Session) exec(ctx context.Context, q adapters.DBQuerier, operation string, sqlQuery sqlQueryString) (int64, error) {
	start := time.Now()
	result, err := q.Exec(ctx, sqlQuery)
	s.engine.logQueryWithDuration(ctx, sqlQuery, operation, time.Since(start))

	if err != nil {
		return 0, errors.Join(ErrExecFailed, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Join(ErrExecFailed, err)
	}

	return rowsAffected, nil
}

// query runs a query and calls scan once per row.
func (s *Session) query(
	ctx context.Context,
	operation string,
	sqlQuery sqlQueryString,
	scan func(rows adapters.DBRows) error,
) error {
	start := time.Now()
	rows, err := s.conn.Query(ctx, sqlQuery)
	s.engine.logQueryWithDuration(ctx, sqlQuery, operation, time.Since(start))

	if err != nil {
		return errors.Join(ErrQueryFailed, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		if err = scan(rows); err != nil {
			return errors.Join(ErrScanningRowFailed, err)
		}
	}

	if err = rows.Err(); err != nil {
		return errors.Join(ErrQueryFailed, err)
	}

	return nil
}

// inTransaction runs fn in a transaction that is rolled back if fn fails.
func (s *Session) inTransaction(ctx context.Context, fn func(tx adapters.DBTx) error) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return errors.Join(ErrTransactionFailed, err)
	}

	if err = fn(tx); err != nil {
		if rollbackErr := tx.Rollback(context.WithoutCancel(ctx)); rollbackErr != nil {
			s.engine.logWarn(ctx, logMsgRollback, rollbackErr)
		}

		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return errors.Join(ErrTransactionFailed, err)
	}

	return nil
}

func scanCityAndID(rows adapters.DBRows, city *string) (uuid.UUID, error) {
	var id string
	if err := rows.Scan(city, &id); err != nil {
		return uuid.Nil, err
	}

	return uuid.Parse(id)
}
