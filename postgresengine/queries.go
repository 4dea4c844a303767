package postgresengine

import (
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // driver import
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/movr-workload-go/workload"
)

const (
	dialectPostgres = "postgres"

	colID              = "id"
	colCity            = "city"
	colName            = "name"
	colAddress         = "address"
	colCreditCard      = "credit_card"
	colType            = "type"
	colOwnerID         = "owner_id"
	colCreationTime    = "creation_time"
	colStatus          = "status"
	colCurrentLocation = "current_location"
	colExt             = "ext"
	colRiderID         = "rider_id"
	colVehicleID       = "vehicle_id"
	colStartAddress    = "start_address"
	colEndAddress      = "end_address"
	colStartTime       = "start_time"
	colEndTime         = "end_time"
	colRevenue         = "revenue"
	colRideID          = "ride_id"
	colTimestamp       = "timestamp"
	colLat             = "lat"
	colLong            = "long"

	castJsonb = "?::jsonb"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type sqlQueryString = string

// TableNames configures the tables of the MovR schema.
type TableNames struct {
	Users           string
	Vehicles        string
	Rides           string
	LocationHistory string
}

// DefaultTableNames returns the table names of the MovR schema.
func DefaultTableNames() TableNames {
	return TableNames{
		Users:           "users",
		Vehicles:        "vehicles",
		Rides:           "rides",
		LocationHistory: "vehicle_location_histories",
	}
}

func (t TableNames) validate() error {
	if t.Users == "" || t.Vehicles == "" || t.Rides == "" || t.LocationHistory == "" {
		return ErrEmptyTableName
	}

	return nil
}

// queryBuilder renders interpolated SQL for the MovR tables.
type queryBuilder struct {
	tables  TableNames
	builder goqu.DialectWrapper
}

func newQueryBuilder(tables TableNames) queryBuilder {
	return queryBuilder{tables: tables, builder: goqu.Dialect(dialectPostgres)}
}

func (q queryBuilder) insertUser(city string, id uuid.UUID, person workload.Person) (sqlQueryString, error) {
	stmt := q.builder.Insert(q.tables.Users).Rows(goqu.Record{
		colID:         id.String(),
		colCity:       city,
		colName:       person.Name,
		colAddress:    person.Address,
		colCreditCard: person.CreditCard,
	})

	return toSQL(stmt.ToSQL())
}

func (q queryBuilder) insertVehicle(
	city string,
	id uuid.UUID,
	owner workload.UserHandle,
	kind string,
	metadata map[string]string,
	status string,
	location string,
	created time.Time,
) (sqlQueryString, error) {
	ext, err := json.Marshal(metadata)
	if err != nil {
		return "", errors.Join(ErrEncodingMetadataFailed, err)
	}

	stmt := q.builder.Insert(q.tables.Vehicles).Rows(goqu.Record{
		colID:              id.String(),
		colCity:            city,
		colType:            kind,
		colOwnerID:         owner.ID.String(),
		colCreationTime:    created,
		colStatus:          status,
		colCurrentLocation: location,
		colExt:             goqu.L(castJsonb, string(ext)),
	})

	return toSQL(stmt.ToSQL())
}

// insertRide inserts a ride. A zero end time leaves the ride active.
func (q queryBuilder) insertRide(
	city string,
	id uuid.UUID,
	rider workload.UserHandle,
	vehicle workload.VehicleHandle,
	startAddress string,
	endAddress string,
	start time.Time,
	end time.Time,
	revenue float64,
) (sqlQueryString, error) {
	record := goqu.Record{
		colID:           id.String(),
		colCity:         city,
		colRiderID:      rider.ID.String(),
		colVehicleID:    vehicle.ID.String(),
		colStartAddress: startAddress,
		colStartTime:    start,
	}

	if !end.IsZero() {
		record[colEndAddress] = endAddress
		record[colEndTime] = end
		record[colRevenue] = revenue
	}

	return toSQL(q.builder.Insert(q.tables.Rides).Rows(record).ToSQL())
}

func (q queryBuilder) selectUsers(city string, limit int) (sqlQueryString, error) {
	stmt := q.builder.From(q.tables.Users).
		Select(colCity, colID).
		Where(goqu.Ex{colCity: city}).
		Limit(uint(max(limit, 0)))

	return toSQL(stmt.ToSQL())
}

// selectAvailableVehicles is the "browse vehicles" screen of the app.
func (q queryBuilder) selectAvailableVehicles(city string, limit int) (sqlQueryString, error) {
	stmt := q.builder.From(q.tables.Vehicles).
		Select(colCity, colID).
		Where(goqu.Ex{colCity: city, colStatus: workload.VehicleAvailable}).
		Limit(uint(max(limit, 0)))

	return toSQL(stmt.ToSQL())
}

func (q queryBuilder) selectActiveRides(city string, limit int) (sqlQueryString, error) {
	stmt := q.builder.From(q.tables.Rides).
		Select(colCity, colID, colVehicleID).
		Where(goqu.Ex{colCity: city, colEndTime: nil}).
		Limit(uint(max(limit, 0)))

	return toSQL(stmt.ToSQL())
}

// claimVehicle marks an available vehicle in use. It matches no row when the vehicle is taken, lost or unknown.
func (q queryBuilder) claimVehicle(city string, vehicleID uuid.UUID) (sqlQueryString, error) {
	stmt := q.builder.Update(q.tables.Vehicles).
		Set(goqu.Record{colStatus: workload.VehicleInUse}).
		Where(goqu.Ex{colCity: city, colID: vehicleID.String(), colStatus: workload.VehicleAvailable})

	return toSQL(stmt.ToSQL())
}

func (q queryBuilder) updateVehicleStatus(city string, vehicleID uuid.UUID, status string) (sqlQueryString, error) {
	stmt := q.builder.Update(q.tables.Vehicles).
		Set(goqu.Record{colStatus: status}).
		Where(goqu.Ex{colCity: city, colID: vehicleID.String()})

	return toSQL(stmt.ToSQL())
}

func (q queryBuilder) completeRide(
	ride workload.RideHandle,
	endAddress string,
	end time.Time,
	revenue float64,
) (sqlQueryString, error) {
	stmt := q.builder.Update(q.tables.Rides).
		Set(goqu.Record{colEndAddress: endAddress, colEndTime: end, colRevenue: revenue}).
		Where(goqu.Ex{colCity: ride.City, colID: ride.ID.String(), colEndTime: nil})

	return toSQL(stmt.ToSQL())
}

func (q queryBuilder) insertLocationPing(
	city string,
	ride workload.RideHandle,
	at time.Time,
	lat float64,
	long float64,
) (sqlQueryString, error) {
	stmt := q.builder.Insert(q.tables.LocationHistory).Rows(goqu.Record{
		colCity:      city,
		colRideID:    ride.ID.String(),
		colTimestamp: at,
		colLat:       lat,
		colLong:      long,
	})

	return toSQL(stmt.ToSQL())
}

func toSQL(sqlQuery string, _ []any, err error) (sqlQueryString, error) {
	if err != nil {
		return "", errors.Join(ErrBuildingQueryFailed, err)
	}

	return sqlQuery, nil
}
