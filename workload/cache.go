package workload

import (
	"math/rand"
	"sync"
)

// HandleCache holds the users, vehicles and active rides known per city.
// It is shared by all workers of a coordinator and safe for concurrent use.
type HandleCache struct {
	mu     sync.RWMutex
	cities map[string]*cityHandles
}

type cityHandles struct {
	users    []UserHandle
	vehicles []VehicleHandle
	rides    []RideHandle
}

// NewHandleCache creates an empty HandleCache.
func NewHandleCache() *HandleCache {
	return &HandleCache{cities: make(map[string]*cityHandles)}
}

// city returns the handles of a city, creating them. Callers must hold the write lock.
func (c *HandleCache) city(name string) *cityHandles {
	h, ok := c.cities[name]
	if !ok {
		h = &cityHandles{}
		c.cities[name] = h
	}

	return h
}

// AddUsers appends users to a city.
func (c *HandleCache) AddUsers(city string, users ...UserHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := c.city(city)
	h.users = append(h.users, users...)
}

// AddVehicles appends vehicles to a city.
func (c *HandleCache) AddVehicles(city string, vehicles ...VehicleHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := c.city(city)
	h.vehicles = append(h.vehicles, vehicles...)
}

// PushRides appends active rides to a city.
func (c *HandleCache) PushRides(city string, rides ...RideHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := c.city(city)
	h.rides = append(h.rides, rides...)
}

// PopRide removes and returns the most recently started ride of a city.
// A ride is handed out at most once, so no two workers end the same ride.
func (c *HandleCache) PopRide(city string) (RideHandle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.cities[city]
	if !ok || len(h.rides) == 0 {
		return RideHandle{}, false
	}

	last := len(h.rides) - 1
	ride := h.rides[last]
	h.rides[last] = RideHandle{}
	h.rides = h.rides[:last]

	return ride, true
}

// RandomUser returns a random user of a city.
func (c *HandleCache) RandomUser(city string, rng *rand.Rand) (UserHandle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	h, ok := c.cities[city]
	if !ok || len(h.users) == 0 {
		return UserHandle{}, false
	}

	return h.users[rng.Intn(len(h.users))], true
}

// RandomVehicle returns a random vehicle of a city.
func (c *HandleCache) RandomVehicle(city string, rng *rand.Rand) (VehicleHandle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	h, ok := c.cities[city]
	if !ok || len(h.vehicles) == 0 {
		return VehicleHandle{}, false
	}

	return h.vehicles[rng.Intn(len(h.vehicles))], true
}

// RandomRide returns a random active ride of a city without removing it.
func (c *HandleCache) RandomRide(city string, rng *rand.Rand) (RideHandle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	h, ok := c.cities[city]
	if !ok || len(h.rides) == 0 {
		return RideHandle{}, false
	}

	return h.rides[rng.Intn(len(h.rides))], true
}

// Counts returns the number of users, vehicles and active rides of a city.
func (c *HandleCache) Counts(city string) (users, vehicles, rides int) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	h, ok := c.cities[city]
	if !ok {
		return 0, 0, 0
	}

	return len(h.users), len(h.vehicles), len(h.rides)
}
