package workload

import (
	"github.com/brianvoe/gofakeit/v6"
)

// Vehicle statuses.
const (
	VehicleAvailable = "available"
	VehicleInUse     = "in_use"
	VehicleLost      = "lost"
)

var (
	vehicleKinds  = []string{"skateboard", "bike", "scooter"}
	vehicleColors = []string{"red", "yellow", "blue", "green", "black"}
	bikeBrands    = []string{"Merida", "Fuji", "Cervelo", "Pinarello", "Santa Cruz", "Kona", "Schwinn"}

	vehicleAvailability = []Weighted[string]{
		{Item: VehicleAvailable, Weight: 0.4},
		{Item: VehicleInUse, Weight: 0.55},
		{Item: VehicleLost, Weight: 0.05},
	}
)

// Person is the fake identity of a new user.
type Person struct {
	Name       string
	Address    string
	CreditCard string
}

// Generator produces random MovR entity attributes. It is safe for concurrent use.
type Generator struct {
	faker *gofakeit.Faker
}

// NewGenerator creates a Generator. Seed 0 picks a random seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

// Person returns a fake name, street address and credit card number.
func (g *Generator) Person() Person {
	return Person{
		Name:       g.faker.Name(),
		Address:    g.Address(),
		CreditCard: g.faker.CreditCardNumber(nil),
	}
}

// Address returns a fake street address.
func (g *Generator) Address() string {
	return g.faker.Address().Address
}

// VehicleKind returns skateboard, bike or scooter.
func (g *Generator) VehicleKind() string {
	return g.faker.RandomString(vehicleKinds)
}

// VehicleStatus returns available, in_use or lost, weighted 40/55/5.
func (g *Generator) VehicleStatus() string {
	return ChooseWeighted(vehicleAvailability, g.faker.Float64Range(0, 1))
}

// VehicleMetadata returns the color of a vehicle, plus a brand for bikes.
func (g *Generator) VehicleMetadata(kind string) map[string]string {
	metadata := map[string]string{"color": g.faker.RandomString(vehicleColors)}
	if kind == "bike" {
		metadata["brand"] = g.faker.RandomString(bikeBrands)
	}

	return metadata
}

// LatLong returns a random coordinate pair.
func (g *Generator) LatLong() (lat, long float64) {
	return g.faker.Float64Range(-90, 90), g.faker.Float64Range(-180, 180)
}

// Revenue returns the revenue of a completed ride, between 1 and 100.
func (g *Generator) Revenue() float64 {
	return g.faker.Float64Range(1, 100)
}
