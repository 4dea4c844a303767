package workload

import (
	"context"
	"errors"
)

// Action is one simulated client operation.
type Action uint8

const (
	// ActionGetVehicles lists vehicles of a city, like a user loading the app's map screen.
	ActionGetVehicles Action = iota

	// ActionAddUser signs up a new user.
	ActionAddUser

	// ActionAddVehicle registers a vehicle owned by a known user.
	ActionAddVehicle

	// ActionStartRide picks a rider and a vehicle and starts a ride.
	ActionStartRide

	// ActionEndRide pings the final location of an active ride and ends it.
	ActionEndRide

	// ActionUpdateLocation records a location ping for an active ride.
	ActionUpdateLocation

	// ActionListActiveRides lists rides that have not ended yet.
	ActionListActiveRides
)

// Actions returns every defined action in declaration order.
func Actions() []Action {
	return []Action{
		ActionGetVehicles,
		ActionAddUser,
		ActionAddVehicle,
		ActionStartRide,
		ActionEndRide,
		ActionUpdateLocation,
		ActionListActiveRides,
	}
}

// String returns the label under which latencies of the action are recorded.
func (a Action) String() string {
	switch a {
	case ActionGetVehicles:
		return "get vehicles"
	case ActionAddUser:
		return "add user"
	case ActionAddVehicle:
		return "add vehicle"
	case ActionStartRide:
		return "start ride"
	case ActionEndRide:
		return "end ride"
	case ActionUpdateLocation:
		return "update location"
	case ActionListActiveRides:
		return "list active rides"
	default:
		return "unknown"
	}
}

// errNothingToDo means an action found no participants, e.g. no active ride to end.
// Such iterations count but are neither recorded nor treated as failures.
var errNothingToDo = errors.New("no candidates for action")

// actionHandler performs one action for a city.
// stop is the worker's stop signal; it is only checked between sub-steps.
type actionHandler func(w *Worker, stop context.Context, city string) error

var actionHandlers = map[Action]actionHandler{
	ActionGetVehicles:     (*Worker).getVehicles,
	ActionAddUser:         (*Worker).addUser,
	ActionAddVehicle:      (*Worker).addVehicle,
	ActionStartRide:       (*Worker).startRide,
	ActionEndRide:         (*Worker).endRide,
	ActionUpdateLocation:  (*Worker).updateLocation,
	ActionListActiveRides: (*Worker).listActiveRides,
}

func (w *Worker) getVehicles(stop context.Context, city string) error {
	ctx, cancel := w.operationContext(stop)
	defer cancel()

	return w.executor.Run(ctx, func(ctx context.Context) error {
		_, err := w.session.ListVehicles(ctx, city, w.cfg.ListLimit)
		return err
	})
}

func (w *Worker) listActiveRides(stop context.Context, city string) error {
	ctx, cancel := w.operationContext(stop)
	defer cancel()

	return w.executor.Run(ctx, func(ctx context.Context) error {
		_, err := w.session.ListActiveRides(ctx, city, w.cfg.ListLimit)
		return err
	})
}

func (w *Worker) addUser(stop context.Context, city string) error {
	ctx, cancel := w.operationContext(stop)
	defer cancel()

	user, err := Execute(ctx, w.executor, func(ctx context.Context) (UserHandle, error) {
		return w.session.CreateUser(ctx, city)
	})
	if err != nil {
		return err
	}

	w.cache.AddUsers(city, user)

	return nil
}

func (w *Worker) addVehicle(stop context.Context, city string) error {
	owner, ok := w.cache.RandomUser(city, w.rng)
	if !ok {
		return errNothingToDo
	}

	kind := w.gen.VehicleKind()
	metadata := w.gen.VehicleMetadata(kind)
	status := w.gen.VehicleStatus()

	ctx, cancel := w.operationContext(stop)
	defer cancel()

	vehicle, err := Execute(ctx, w.executor, func(ctx context.Context) (VehicleHandle, error) {
		return w.session.CreateVehicle(ctx, city, owner, kind, metadata, status)
	})
	if err != nil {
		return err
	}

	w.cache.AddVehicles(city, vehicle)

	return nil
}

func (w *Worker) startRide(stop context.Context, city string) error {
	rider, ok := w.cache.RandomUser(city, w.rng)
	if !ok {
		return errNothingToDo
	}
	vehicle, ok := w.cache.RandomVehicle(city, w.rng)
	if !ok {
		return errNothingToDo
	}

	if err := stop.Err(); err != nil {
		return err
	}

	ctx, cancel := w.operationContext(stop)
	defer cancel()

	ride, err := Execute(ctx, w.executor, func(ctx context.Context) (RideHandle, error) {
		return w.session.StartRide(ctx, city, rider, vehicle)
	})
	if errors.Is(err, ErrVehicleUnavailable) {
		return errNothingToDo
	}
	if err != nil {
		return err
	}

	w.cache.PushRides(city, ride)

	return nil
}

func (w *Worker) endRide(stop context.Context, city string) error {
	ride, ok := w.cache.PopRide(city)
	if !ok {
		return errNothingToDo
	}

	if err := w.pingLocation(stop, city, ride); err != nil {
		w.requeueRide(city, ride, err)
		return err
	}

	if err := stop.Err(); err != nil {
		w.cache.PushRides(city, ride)
		return err
	}

	ctx, cancel := w.operationContext(stop)
	defer cancel()

	err := w.executor.Run(ctx, func(ctx context.Context) error {
		return w.session.EndRide(ctx, city, ride)
	})
	if err != nil {
		w.requeueRide(city, ride, err)
		return err
	}

	return nil
}

func (w *Worker) updateLocation(stop context.Context, city string) error {
	ride, ok := w.cache.RandomRide(city, w.rng)
	if !ok {
		return errNothingToDo
	}

	return w.pingLocation(stop, city, ride)
}

func (w *Worker) pingLocation(stop context.Context, city string, ride RideHandle) error {
	lat, long := w.gen.LatLong()

	ctx, cancel := w.operationContext(stop)
	defer cancel()

	return w.executor.Run(ctx, func(ctx context.Context) error {
		return w.session.RecordLocationPing(ctx, city, ride, lat, long)
	})
}

// requeueRide gives a ride back to the cache unless the data store rejected it for good.
func (w *Worker) requeueRide(city string, ride RideHandle, err error) {
	if errors.Is(err, ErrFatal) {
		return
	}

	w.cache.PushRides(city, ride)
}
