package workload

import (
	"sort"
	"strings"
)

// DefaultPartitionMap assigns the default MovR cities to regions.
var DefaultPartitionMap = map[string][]string{
	"us_east": {"new york", "boston", "washington dc"},
	"us_west": {"san francisco", "seattle", "los angeles"},
	"eu_west": {"amsterdam", "paris", "rome"},
}

var defaultRegions = []string{"us_east", "us_west", "eu_west"}

// DefaultCities returns the cities of DefaultPartitionMap, region by region.
func DefaultCities() []string {
	cities := make([]string, 0, 9)
	for _, region := range defaultRegions {
		cities = append(cities, DefaultPartitionMap[region]...)
	}

	return cities
}

// ParsePartitionPairs parses "region:city" pairs into a partition map.
// A pair without a region is assigned to "default". Only the first colon separates,
// so city names may contain colons.
func ParsePartitionPairs(pairs []string) map[string][]string {
	if len(pairs) == 0 {
		return DefaultPartitionMap
	}

	partitions := make(map[string][]string)
	for _, pair := range pairs {
		region, city, found := strings.Cut(pair, ":")
		if !found {
			region, city = "default", pair
		}
		partitions[region] = append(partitions[region], city)
	}

	return partitions
}

// CitiesOf flattens a partition map, regions sorted by name.
func CitiesOf(partitions map[string][]string) []string {
	regions := make([]string, 0, len(partitions))
	for region := range partitions {
		regions = append(regions, region)
	}
	sort.Strings(regions)

	var cities []string
	for _, region := range regions {
		cities = append(cities, partitions[region]...)
	}

	return cities
}
