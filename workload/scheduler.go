package workload

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
)

var (
	// ErrNoActionWeights is returned when a scheduler is built from an empty weight list.
	ErrNoActionWeights = errors.New("at least one action weight is required")

	// ErrNegativeWeight is returned when any action weight is negative.
	ErrNegativeWeight = errors.New("action weights must not be negative")

	// ErrNonFiniteWeight is returned when any action weight is NaN or infinite.
	ErrNonFiniteWeight = errors.New("action weights must be finite")

	// ErrUnknownAction is returned when a weight names an action no worker can perform.
	ErrUnknownAction = errors.New("unknown action")

	// ErrZeroTotalWeight is returned when all action weights are zero.
	ErrZeroTotalWeight = errors.New("at least one action weight must be positive")

	// ErrInvalidReadPercentage is returned when a read percentage is outside [0, 1].
	ErrInvalidReadPercentage = errors.New("read percentage must be between 0.0 and 1.0")
)

// ActionWeight is one entry of an action distribution.
type ActionWeight struct {
	Action Action
	Weight float64
}

// Weighted pairs an item with its relative weight.
type Weighted[T any] struct {
	Item   T
	Weight float64
}

// ChooseWeighted walks items in order subtracting weights from r and returns the first item
// where the remainder drops below zero. r is expected in [0, total weight).
// If rounding lets r fall through, the last positive-weight item is returned.
func ChooseWeighted[T any](items []Weighted[T], r float64) T {
	var fallback T
	for _, item := range items {
		if item.Weight <= 0 {
			continue
		}
		r -= item.Weight
		if r < 0 {
			return item.Item
		}
		fallback = item.Item
	}

	return fallback
}

// ActionScheduler draws actions from a fixed weighted distribution.
// It is not safe for concurrent use: every worker owns its own scheduler.
type ActionScheduler struct {
	items []Weighted[Action]
	total float64
	rng   *rand.Rand
}

// NewActionScheduler validates weights and returns a scheduler drawing from rng.
// The weight list is copied and never modified afterwards.
func NewActionScheduler(weights []ActionWeight, rng *rand.Rand) (*ActionScheduler, error) {
	if err := validateWeights(weights); err != nil {
		return nil, err
	}

	items := make([]Weighted[Action], 0, len(weights))
	total := 0.0
	for _, w := range weights {
		items = append(items, Weighted[Action]{Item: w.Action, Weight: w.Weight})
		total += w.Weight
	}

	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63())) //nolint:gosec // workload randomness, not security relevant
	}

	return &ActionScheduler{items: items, total: total, rng: rng}, nil
}

func validateWeights(weights []ActionWeight) error {
	if len(weights) == 0 {
		return ErrNoActionWeights
	}

	total := 0.0
	for _, w := range weights {
		if _, ok := actionHandlers[w.Action]; !ok {
			return errors.Join(ErrUnknownAction, fmt.Errorf("action %d", int(w.Action)))
		}
		if math.IsNaN(w.Weight) || math.IsInf(w.Weight, 0) {
			return errors.Join(ErrNonFiniteWeight, fmt.Errorf("%s: %v", w.Action, w.Weight))
		}
		if w.Weight < 0 {
			return errors.Join(ErrNegativeWeight, fmt.Errorf("%s: %v", w.Action, w.Weight))
		}
		total += w.Weight
	}

	if total <= 0 {
		return ErrZeroTotalWeight
	}

	return nil
}

// Choose returns the next action.
func (s *ActionScheduler) Choose() Action {
	return ChooseWeighted(s.items, s.rng.Float64()*s.total)
}

// TotalWeight returns the sum of all weights.
func (s *ActionScheduler) TotalWeight() float64 {
	return s.total
}

// DeriveSeed derives a stable per-worker seed from a master seed and a name using FNV-1a.
func DeriveSeed(master int64, name string) int64 {
	h := fnv.New64a()
	_, _ = fmt.Fprintf(h, "%d/%s", master, name)

	return int64(h.Sum64() &^ (1 << 63))
}

// WeightsFromReadPercentage flattens the cascading action probabilities of a MovR client:
// read with probability p, otherwise add a user (10%), otherwise add a vehicle (10%),
// otherwise start a ride (50%), otherwise end a ride.
// A quarter of the end ride share is given to location pings of active rides.
func WeightsFromReadPercentage(p float64) ([]ActionWeight, error) {
	if !(p >= 0 && p <= 1) {
		return nil, ErrInvalidReadPercentage
	}

	writes := 1 - p
	addUser := writes * 0.1
	addVehicle := (writes - addUser) * 0.1
	startRide := (writes - addUser - addVehicle) * 0.5
	endRide := writes - addUser - addVehicle - startRide

	ping := endRide / 4
	endRide -= ping

	return []ActionWeight{
		{Action: ActionGetVehicles, Weight: p},
		{Action: ActionAddUser, Weight: addUser},
		{Action: ActionAddVehicle, Weight: addVehicle},
		{Action: ActionStartRide, Weight: startRide},
		{Action: ActionEndRide, Weight: endRide},
		{Action: ActionUpdateLocation, Weight: ping},
	}, nil
}
