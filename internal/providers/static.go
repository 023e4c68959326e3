package providers

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"net/url"
	"sort"
	"strings"
	"time"

	"city-planner/backend/pkg/models"
)

// StaticWeather is the snapshot served when no live weather answers.
func StaticWeather(city, country string, now time.Time) models.Weather {
	if country == "" {
		country = "Unknown"
	}
	return models.Weather{
		City:        city,
		Country:     country,
		Temperature: 23.5,
		FeelsLike:   22.8,
		Condition:   "Clear",
		Description: "clear sky",
		Humidity:    65,
		WindSpeed:   5.2,
		ObservedAt:  now.UTC(),
	}
}

// GenericFacts describes a city nothing else knows about.
func GenericFacts(city string) models.CityFacts {
	return models.CityFacts{
		City:        city,
		Country:     "Unknown",
		Description: fmt.Sprintf("%s is an interesting city with rich history and culture. For detailed information, please check online resources or travel guides.", city),
		NotableFor:  []string{"Local culture", "Historic sites", "Local cuisine"},
		Region:      "Unknown",
		Currency:    "Local currency",
	}
}

// seeded returns a generator that yields the same sequence for the same
// key, so generated offers are stable for identical queries.
func seeded(parts ...string) *rand.Rand {
	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(strings.ToLower(p)))
		h.Write([]byte{0})
	}
	sum := h.Sum64()
	return rand.New(rand.NewPCG(sum, sum>>1|1))
}

var classMultipliers = map[models.FlightClass]float64{
	models.ClassEconomy:  1.0,
	models.ClassPremium:  1.8,
	models.ClassBusiness: 3.5,
	models.ClassFirst:    5.0,
}

var airlines = []struct {
	name  string
	code  string
	price float64
}{
	{"United Airlines", "UA", 1.0},
	{"Delta", "DL", 1.05},
	{"American Airlines", "AA", 0.95},
	{"Emirates", "EK", 1.15},
	{"Singapore Airlines", "SQ", 1.20},
	{"Lufthansa", "LH", 1.10},
}

const (
	routeInternational = 600
	routeLongHaul      = 900
	generatedOffers    = 4
)

func isLongHaul(origin, destination string) bool {
	for _, continent := range []string{"asia", "europe", "africa", "oceania"} {
		if strings.Contains(strings.ToLower(destination), continent) || strings.Contains(strings.ToLower(origin), continent) {
			return true
		}
	}
	return false
}

// GenerateFlights builds indicative offers from route and class pricing.
// Offers are sorted by price.
func GenerateFlights(q models.FlightQuery) models.FlightSearch {
	passengers := q.Passengers
	if passengers < 1 {
		passengers = 1
	}
	class := q.Class
	mult, ok := classMultipliers[class]
	if !ok {
		class, mult = models.ClassEconomy, 1.0
	}
	longHaul := isLongHaul(q.Origin, q.Destination)
	base := float64(routeInternational)
	if longHaul {
		base = routeLongHaul
	}

	r := seeded(q.Origin, q.Destination, q.DepartureDate, string(class))
	flights := make([]models.Flight, 0, generatedOffers)
	for i, a := range airlines[:generatedOffers] {
		stops := i
		if i > 1 {
			stops = r.IntN(2)
		}
		hours := 3 + 2*stops
		if longHaul {
			hours = 10 + 3*stops
		}
		minutes := r.IntN(60)

		f := models.Flight{
			Airline:       a.name,
			FlightNumber:  fmt.Sprintf("%s%d", a.code, 1000+r.IntN(9000)),
			Duration:      fmt.Sprintf("%dh %dm", hours, minutes),
			Stops:         stops,
			Price:         math.Round(base * mult * a.price * float64(passengers)),
			Currency:      "USD",
			Class:         class,
			DepartureTime: "Flexible",
			ArrivalTime:   "Flexible",
			BookingURL:    fmt.Sprintf("https://www.google.com/flights?q=%s+to+%s", url.QueryEscape(q.Origin), url.QueryEscape(q.Destination)),
		}
		if q.DepartureDate != "" {
			dep := time.Date(0, 1, 1, 8, 0, 0, 0, time.UTC)
			f.DepartureTime = q.DepartureDate + " " + dep.Format("03:04 PM")
			f.ArrivalTime = q.DepartureDate + " " + dep.Add(time.Duration(hours)*time.Hour).Format("03:04 PM")
		}
		flights = append(flights, f)
	}
	sort.SliceStable(flights, func(i, j int) bool { return flights[i].Price < flights[j].Price })

	fastest := flights[0]
	for _, f := range flights[1:] {
		if durationMinutes(f.Duration) < durationMinutes(fastest.Duration) {
			fastest = f
		}
	}

	stopWord := "stops"
	if flights[0].Stops == 1 {
		stopWord = "stop"
	}
	roundTrip := "One-way flight prices shown"
	if q.ReturnDate != "" {
		roundTrip = "Round trip: multiply prices by 2 (or less with round-trip discounts)"
	}
	ahead := "3-6 weeks"
	if longHaul {
		ahead = "2-3 months"
	}

	return models.FlightSearch{
		Origin:          q.Origin,
		Destination:     q.Destination,
		Flights:         flights,
		CheapestPrice:   flights[0].Price,
		FastestDuration: fastest.Duration,
		Recommendations: []string{
			fmt.Sprintf("Best Price: %s at $%.0f (%d %s)", flights[0].Airline, flights[0].Price, flights[0].Stops, stopWord),
			fmt.Sprintf("Fastest: %s at %s for $%.0f", fastest.Airline, fastest.Duration, fastest.Price),
			"Best Value: Direct flights save time but cost 15-20% more",
			roundTrip,
			fmt.Sprintf("Book %s in advance for best prices", ahead),
			"Midweek flights (Tue-Thu) are typically 10-15% cheaper",
		},
	}
}

// durationMinutes parses "7h 35m". Unparseable durations count as 0.
func durationMinutes(d string) int {
	var h, m int
	if _, err := fmt.Sscanf(d, "%dh %dm", &h, &m); err != nil {
		return 0
	}
	return h*60 + m
}

var priceRanges = map[models.TravelStyle][2]float64{
	models.StyleBudget:   {30, 80},
	models.StyleMidRange: {80, 200},
	models.StyleLuxury:   {200, 500},
}

type hotelTemplate struct {
	name       string
	category   string
	multiplier float64
	location   string
	distance   string
	amenities  []string
	highlights []string
}

func hotelTemplates(city string) []hotelTemplate {
	return []hotelTemplate{
		{city + " Central Hotel", "Business Hotel", 1.2, "City Center", "0.5 km from downtown",
			[]string{"Free WiFi", "Business Center", "24-hour Reception", "Restaurant"},
			[]string{"Central location", "Walking distance to attractions", "Modern facilities"}},
		{"Grand " + city + " Plaza", "Luxury Hotel", 1.8, "Financial District", "1 km from downtown",
			[]string{"Free WiFi", "Swimming Pool", "Spa", "Gym", "Restaurant", "Bar"},
			[]string{"Rooftop pool", "Michelin-star restaurant", "Premium service"}},
		{city + " Budget Inn", "Economy Hotel", 0.7, "Near Transit", "2 km from downtown",
			[]string{"Free WiFi", "Breakfast Included", "Parking"},
			[]string{"Best value", "Clean rooms", "Good for budget travelers"}},
		{"Boutique " + city, "Boutique Hotel", 1.4, "Old Town", "0.8 km from downtown",
			[]string{"Free WiFi", "Breakfast", "Concierge", "Bar"},
			[]string{"Unique design", "Local charm", "Personalized service"}},
		{city + " Airport Hotel", "Airport Hotel", 0.9, "Near Airport", "15 km from downtown",
			[]string{"Free WiFi", "Free Airport Shuttle", "Restaurant", "24-hour Reception"},
			[]string{"Convenient for flights", "Free shuttle", "Good for layovers"}},
	}
}

// DateLayout is the layout of query dates.
const DateLayout = "2006-01-02"

// Nights counts the nights between two dates, rounding up and never less
// than one.
func Nights(checkIn, checkOut string) int {
	in, err1 := time.Parse(DateLayout, checkIn)
	out, err2 := time.Parse(DateLayout, checkOut)
	if err1 != nil || err2 != nil {
		return 1
	}
	n := int(math.Ceil(out.Sub(in).Hours() / 24))
	if n < 1 {
		return 1
	}
	return n
}

// GenerateHotels builds indicative hotels from the price tier, sorted by
// rating per dollar.
func GenerateHotels(q models.HotelQuery) models.HotelSearch {
	style := q.PriceRange
	rng, ok := priceRanges[style]
	if !ok {
		style, rng = models.StyleMidRange, priceRanges[models.StyleMidRange]
	}
	base := (rng[0] + rng[1]) / 2
	extra := q.Amenities
	if len(extra) > 2 {
		extra = extra[:2]
	}

	r := seeded(q.City, string(style), q.CheckIn)
	var hotels []models.Hotel
	for _, t := range hotelTemplates(q.City)[:generatedOffers] {
		amenities := append(append([]string(nil), t.amenities...), extra...)
		hotels = append(hotels, models.Hotel{
			Name:          t.name,
			Category:      t.category,
			PricePerNight: math.Round(base * t.multiplier),
			Rating:        math.Round((3.5+r.Float64()*1.3)*10) / 10,
			ReviewCount:   500 + r.IntN(2000),
			Amenities:     amenities,
			Location:      t.location,
			Distance:      t.distance,
			Highlights:    t.highlights,
		})
	}
	sort.SliceStable(hotels, func(i, j int) bool {
		return hotels[i].Rating/hotels[i].PricePerNight > hotels[j].Rating/hotels[j].PricePerNight
	})

	nights := Nights(q.CheckIn, q.CheckOut)
	avg := averagePrice(hotels)

	best := hotels[0]
	top := hotels[0]
	central := hotels[0]
	for _, h := range hotels {
		if h.Rating > top.Rating {
			top = h
		}
	}
	for _, h := range hotels {
		if strings.Contains(h.Distance, "0.5 km") {
			central = h
			break
		}
	}
	plural := "s"
	if nights == 1 {
		plural = ""
	}

	return models.HotelSearch{
		City:         q.City,
		Hotels:       hotels,
		AveragePrice: avg,
		Nights:       nights,
		Recommendations: []string{
			fmt.Sprintf("Best Value: %s at $%.0f/night (%.1f stars)", best.Name, best.PricePerNight, best.Rating),
			"Highest Rated: " + top.Name,
			"Most Central: " + central.Name,
			fmt.Sprintf("Total for %d night%s: ~$%.0f", nights, plural, avg*float64(nights)),
			"Book 2-3 months ahead for 20-30% savings",
			"Check multiple sites: Booking.com, Hotels.com, Airbnb",
			"Midweek stays (Sun-Thu) are 15-25% cheaper",
		},
	}
}

func averagePrice(hotels []models.Hotel) float64 {
	if len(hotels) == 0 {
		return 0
	}
	var sum float64
	for _, h := range hotels {
		sum += h.PricePerNight
	}
	return math.Round(sum / float64(len(hotels)))
}

// CurrencyTips are attached to every conversion.
var CurrencyTips = []string{
	"Credit cards often offer better exchange rates than cash exchanges",
	"ATMs typically provide rates within 1-2% of mid-market rate",
	"Avoid airport currency exchanges (3-7% worse rates)",
	"Use apps like Wise or Revolut for real-time rates",
	"Withdraw larger amounts less frequently to minimize ATM fees",
	"Always decline dynamic currency conversion at terminals",
}

func conversion(amount float64, from, to string, rate float64, asOf time.Time) models.CurrencyConversion {
	return models.CurrencyConversion{
		Amount:    amount,
		From:      from,
		To:        to,
		Converted: math.Round(amount*rate*100) / 100,
		Rate:      math.Round(rate*10000) / 10000,
		AsOf:      asOf,
		Tips:      CurrencyTips,
	}
}

// StaticRates converts with the catalog's reference table.
type StaticRates struct {
	catalog *Catalog
	now     func() time.Time
}

func NewStaticRates(c *Catalog) *StaticRates {
	return &StaticRates{catalog: c, now: time.Now}
}

// Convert fails for pairs the table cannot connect.
func (s *StaticRates) Convert(_ context.Context, q models.CurrencyQuery) (models.CurrencyConversion, error) {
	from, to := strings.ToUpper(q.From), strings.ToUpper(q.To)
	rate, ok := s.catalog.Rate(from, to)
	if !ok {
		return models.CurrencyConversion{}, fmt.Errorf("no reference rate from %s to %s", from, to)
	}
	return conversion(q.Amount, from, to, rate, s.now().UTC()), nil
}

// CuratedSearch answers a query from built-in travel snippets. It always
// returns at least one result.
func CuratedSearch(query string) []models.SearchResult {
	q := strings.ToLower(query)
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(q, w) {
				return true
			}
		}
		return false
	}

	var results []models.SearchResult
	if has("budget", "price", "cost") {
		results = append(results, models.SearchResult{
			Title:   "Travel Budget Information",
			Snippet: "For a week-long trip: Budget hotels: $40-80/night, Mid-range: $80-150/night. Daily food budget: $20-40 (local), $50-100 (mid-range). Activities: $10-50 per attraction. Transportation: $5-20/day for public transit.",
			URL:     "https://www.budgetyourtrip.com",
		})
	}
	if has("hotel", "accommodation") {
		results = append(results, models.SearchResult{
			Title:   "Hotel Recommendations",
			Snippet: "Consider booking through: Booking.com, Hotels.com, Airbnb for budget options. Look for hostels ($20-40/night), budget hotels ($50-80/night), or Airbnb apartments ($60-120/night). Book 2-3 months in advance for best rates.",
			URL:     "https://www.booking.com",
		})
	}
	if has("food", "restaurant", "eat") {
		results = append(results, models.SearchResult{
			Title:   "Local Food & Restaurants",
			Snippet: "Best ways to find local food: Visit local markets, ask locals for recommendations, use Google Maps for highly-rated restaurants, try street food (usually $2-8), local restaurants ($10-20), and food tours ($40-80).",
			URL:     "https://www.tripadvisor.com",
		})
	}
	if has("historical", "history", "sites") {
		results = append(results, models.SearchResult{
			Title:   "Historical Sites Information",
			Snippet: "Research historical sites on: UNESCO World Heritage sites, city tourism websites, TripAdvisor. Most sites charge $10-30 entry. Consider city passes for savings (usually $50-100 for multiple attractions).",
			URL:     "https://whc.unesco.org",
		})
	}
	if len(results) == 0 {
		results = append(results, models.SearchResult{
			Title:   "General Travel Information",
			Snippet: fmt.Sprintf("Information about: %s. Recommended resources: TripAdvisor, Lonely Planet, local tourism boards, Google Maps reviews, and travel blogs. Book in advance for better prices and availability.", query),
			URL:     "https://www.tripadvisor.com",
		})
	}
	return results
}
