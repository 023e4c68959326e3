package providers

import (
	"embed"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"city-planner/backend/pkg/models"
)

//go:embed data/*.yaml
var dataFS embed.FS

type cityEntry struct {
	City        string   `yaml:"city"`
	Country     string   `yaml:"country"`
	Population  int      `yaml:"population"`
	Description string   `yaml:"description"`
	NotableFor  []string `yaml:"notable_for"`
	Region      string   `yaml:"region"`
	Currency    string   `yaml:"currency"`
}

// Catalog holds the static reference tables shipped with the binary.
type Catalog struct {
	cities map[string]cityEntry
	rates  map[string]map[string]float64
	iata   map[string]string
}

// LoadCatalog parses the embedded reference tables.
func LoadCatalog() (*Catalog, error) {
	c := &Catalog{}
	if err := decode("data/cities.yaml", &c.cities); err != nil {
		return nil, err
	}
	if err := decode("data/rates.yaml", &c.rates); err != nil {
		return nil, err
	}
	if err := decode("data/iata.yaml", &c.iata); err != nil {
		return nil, err
	}
	return c, nil
}

// MustCatalog is LoadCatalog for package initialization.
func MustCatalog() *Catalog {
	c, err := LoadCatalog()
	if err != nil {
		panic(err)
	}
	return c
}

func decode(name string, dst any) error {
	raw, err := dataFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := yaml.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

// City returns the reference facts for a known city.
func (c *Catalog) City(name string) (models.CityFacts, bool) {
	e, ok := c.cities[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return models.CityFacts{}, false
	}
	pop := e.Population
	return models.CityFacts{
		City:        e.City,
		Country:     e.Country,
		Population:  &pop,
		Description: e.Description,
		NotableFor:  append([]string(nil), e.NotableFor...),
		Region:      e.Region,
		Currency:    e.Currency,
	}, true
}

// Cities lists the known city names in sorted order.
func (c *Catalog) Cities() []string {
	names := make([]string, 0, len(c.cities))
	for _, e := range c.cities {
		names = append(names, e.City)
	}
	sort.Strings(names)
	return names
}

// Rate returns the reference rate from one currency to another: same
// currency, direct, inverse, then through USD.
func (c *Catalog) Rate(from, to string) (float64, bool) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return 1, true
	}
	if r, ok := c.rates[from][to]; ok {
		return r, true
	}
	if r, ok := c.rates[to][from]; ok && r != 0 {
		return 1 / r, true
	}
	if from != "USD" && to != "USD" {
		toUSD, ok1 := c.Rate(from, "USD")
		fromUSD, ok2 := c.Rate("USD", to)
		if ok1 && ok2 {
			return toUSD * fromUSD, true
		}
	}
	return 0, false
}

var iataCode = regexp.MustCompile(`^[A-Z]{3}$`)

// IATA maps a city name to an airport code. Three-letter input is taken to
// be a code already; unknown names fall back to their first three letters.
func (c *Catalog) IATA(cityOrCode string) string {
	city := strings.ToUpper(strings.TrimSpace(cityOrCode))
	if iataCode.MatchString(city) {
		return city
	}
	if code, ok := c.iata[city]; ok {
		return code
	}

	keys := make([]string, 0, len(c.iata))
	for k := range c.iata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.Contains(city, k) || strings.Contains(k, city) {
			return c.iata[k]
		}
	}
	if len(city) > 3 {
		return city[:3]
	}
	return city
}
