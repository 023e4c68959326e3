package providers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"city-planner/backend/internal/cache"
	"city-planner/backend/pkg/models"
)

const (
	amadeusMaxOffers = 5
	amadeusMaxHotels = 10
)

// AmadeusClient searches flights and hotels with the Amadeus self-service
// APIs. Access tokens come from the client-credentials grant and are
// refreshed by the oauth2 transport before they expire.
type AmadeusClient struct {
	baseURL    string
	http       *http.Client
	catalog    *Catalog
	cache      *cache.Cache
	configured bool
	now        func() time.Time
}

// NewAmadeusClient creates a client. Without a key and secret every call
// returns ErrNotConfigured. The hotel list per city is kept in c when it is
// non-nil.
func NewAmadeusClient(ctx context.Context, key, secret, baseURL string, timeout time.Duration, catalog *Catalog, c *cache.Cache) *AmadeusClient {
	baseURL = strings.TrimRight(baseURL, "/")
	a := &AmadeusClient{
		baseURL:    baseURL,
		catalog:    catalog,
		cache:      c,
		configured: key != "" && secret != "",
		now:        time.Now,
	}
	if !a.configured {
		return a
	}

	conf := clientcredentials.Config{
		ClientID:     key,
		ClientSecret: secret,
		TokenURL:     baseURL + "/v1/security/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	if _, ok := ctx.Value(oauth2.HTTPClient).(*http.Client); !ok {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, newHTTPClient(timeout))
	}
	a.http = conf.Client(ctx)
	a.http.Timeout = timeout
	return a
}

type amadeusFlightOffers struct {
	Data []struct {
		Itineraries []struct {
			Duration string `json:"duration"`
			Segments []struct {
				CarrierCode string `json:"carrierCode"`
				Number      string `json:"number"`
				Departure   struct {
					At string `json:"at"`
				} `json:"departure"`
				Arrival struct {
					At string `json:"at"`
				} `json:"arrival"`
			} `json:"segments"`
		} `json:"itineraries"`
		Price struct {
			Currency string `json:"currency"`
			Total    string `json:"total"`
		} `json:"price"`
	} `json:"data"`
	Dictionaries struct {
		Carriers map[string]string `json:"carriers"`
	} `json:"dictionaries"`
}

// SearchFlights returns live offers sorted by price.
func (a *AmadeusClient) SearchFlights(ctx context.Context, q models.FlightQuery) (models.FlightSearch, error) {
	if !a.configured {
		return models.FlightSearch{}, ErrNotConfigured
	}

	class := q.Class
	if class == "" {
		class = models.ClassEconomy
	}
	date := q.DepartureDate
	if date == "" {
		date = a.now().AddDate(0, 0, 30).Format(DateLayout)
	}
	params := url.Values{}
	params.Set("originLocationCode", a.catalog.IATA(q.Origin))
	params.Set("destinationLocationCode", a.catalog.IATA(q.Destination))
	params.Set("departureDate", date)
	if q.ReturnDate != "" {
		params.Set("returnDate", q.ReturnDate)
	}
	params.Set("adults", strconv.Itoa(max(q.Passengers, 1)))
	params.Set("travelClass", amadeusClass(class))
	params.Set("currencyCode", "USD")
	params.Set("max", strconv.Itoa(amadeusMaxOffers))

	var body amadeusFlightOffers
	if err := getJSON(ctx, a.http, a.baseURL+"/v2/shopping/flight-offers?"+params.Encode(), &body); err != nil {
		return models.FlightSearch{}, fmt.Errorf("failed to search flights %s-%s: %w", q.Origin, q.Destination, err)
	}

	var flights []models.Flight
	for _, offer := range body.Data {
		if len(offer.Itineraries) == 0 || len(offer.Itineraries[0].Segments) == 0 {
			continue
		}
		it := offer.Itineraries[0]
		first, last := it.Segments[0], it.Segments[len(it.Segments)-1]
		price, err := strconv.ParseFloat(offer.Price.Total, 64)
		if err != nil {
			continue
		}
		airline := body.Dictionaries.Carriers[first.CarrierCode]
		if airline == "" {
			airline = first.CarrierCode
		}
		flights = append(flights, models.Flight{
			Airline:       airline,
			FlightNumber:  first.CarrierCode + first.Number,
			Duration:      isoDuration(it.Duration),
			Stops:         len(it.Segments) - 1,
			Price:         price,
			Currency:      offer.Price.Currency,
			Class:         class,
			DepartureTime: first.Departure.At,
			ArrivalTime:   last.Arrival.At,
		})
	}
	if len(flights) == 0 {
		return models.FlightSearch{}, errors.New("no flight offers")
	}
	sort.SliceStable(flights, func(i, j int) bool { return flights[i].Price < flights[j].Price })

	fastest := flights[0]
	for _, f := range flights[1:] {
		if durationMinutes(f.Duration) < durationMinutes(fastest.Duration) {
			fastest = f
		}
	}
	return models.FlightSearch{
		Origin:          q.Origin,
		Destination:     q.Destination,
		Flights:         flights,
		CheapestPrice:   flights[0].Price,
		FastestDuration: fastest.Duration,
		Recommendations: []string{
			fmt.Sprintf("Best Price: %s at $%.0f", flights[0].Airline, flights[0].Price),
			fmt.Sprintf("Fastest: %s at %s for $%.0f", fastest.Airline, fastest.Duration, fastest.Price),
			"Prices are live and change frequently; book soon for these fares",
		},
	}, nil
}

func amadeusClass(c models.FlightClass) string {
	switch c {
	case models.ClassPremium:
		return "PREMIUM_ECONOMY"
	case models.ClassBusiness:
		return "BUSINESS"
	case models.ClassFirst:
		return "FIRST"
	default:
		return "ECONOMY"
	}
}

var isoDurationRe = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?`)

// isoDuration turns PT7H35M into 7h 35m.
func isoDuration(d string) string {
	m := isoDurationRe.FindStringSubmatch(d)
	if m == nil {
		return d
	}
	h, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	return fmt.Sprintf("%dh %dm", h, mins)
}

type amadeusHotel struct {
	HotelID  string `json:"hotelId"`
	Name     string `json:"name"`
	Distance struct {
		Value float64 `json:"value"`
		Unit  string  `json:"unit"`
	} `json:"distance"`
}

type amadeusHotelList struct {
	Data []amadeusHotel `json:"data"`
}

type amadeusHotelOffers struct {
	Data []struct {
		Hotel struct {
			HotelID string `json:"hotelId"`
			Name    string `json:"name"`
		} `json:"hotel"`
		Offers []struct {
			Price struct {
				Currency string `json:"currency"`
				Total    string `json:"total"`
			} `json:"price"`
		} `json:"offers"`
	} `json:"data"`
}

// hotelsByCity lists hotels in a city. The list changes rarely and is
// cached for a day.
func (a *AmadeusClient) hotelsByCity(ctx context.Context, cityCode string) ([]amadeusHotel, error) {
	load := func(ctx context.Context) ([]amadeusHotel, error) {
		var body amadeusHotelList
		endpoint := a.baseURL + "/v1/reference-data/locations/hotels/by-city?" + url.Values{"cityCode": {cityCode}}.Encode()
		if err := getJSON(ctx, a.http, endpoint, &body); err != nil {
			return nil, fmt.Errorf("failed to list hotels in %s: %w", cityCode, err)
		}
		if len(body.Data) == 0 {
			return nil, fmt.Errorf("no hotels listed in %s", cityCode)
		}
		return body.Data, nil
	}
	if a.cache == nil {
		return load(ctx)
	}
	key := cache.Key("amadeus:hotels-by-city", map[string]any{"cityCode": cityCode})
	return cache.GetOrSet(ctx, a.cache, key, cache.TTLHotelList, load)
}

// SearchHotels returns live offers for hotels in the query city.
func (a *AmadeusClient) SearchHotels(ctx context.Context, q models.HotelQuery) (models.HotelSearch, error) {
	if !a.configured {
		return models.HotelSearch{}, ErrNotConfigured
	}

	listed, err := a.hotelsByCity(ctx, a.catalog.IATA(q.City))
	if err != nil {
		return models.HotelSearch{}, err
	}
	if len(listed) > amadeusMaxHotels {
		listed = listed[:amadeusMaxHotels]
	}
	ids := make([]string, len(listed))
	distance := make(map[string]string, len(listed))
	for i, h := range listed {
		ids[i] = h.HotelID
		if h.Distance.Unit != "" {
			distance[h.HotelID] = fmt.Sprintf("%g %s from downtown", h.Distance.Value, strings.ToLower(h.Distance.Unit))
		}
	}

	nights := Nights(q.CheckIn, q.CheckOut)
	params := url.Values{}
	params.Set("hotelIds", strings.Join(ids, ","))
	params.Set("adults", strconv.Itoa(max(q.Guests, 1)))
	if q.CheckIn != "" {
		params.Set("checkInDate", q.CheckIn)
	}
	if q.CheckOut != "" {
		params.Set("checkOutDate", q.CheckOut)
	}
	params.Set("currency", "USD")

	var body amadeusHotelOffers
	if err := getJSON(ctx, a.http, a.baseURL+"/v3/shopping/hotel-offers?"+params.Encode(), &body); err != nil {
		return models.HotelSearch{}, fmt.Errorf("failed to search hotels in %s: %w", q.City, err)
	}

	var hotels []models.Hotel
	for _, d := range body.Data {
		if len(d.Offers) == 0 {
			continue
		}
		total, err := strconv.ParseFloat(d.Offers[0].Price.Total, 64)
		if err != nil {
			continue
		}
		hotels = append(hotels, models.Hotel{
			Name:          d.Hotel.Name,
			Category:      "Hotel",
			PricePerNight: math.Round(total / float64(nights)),
			Amenities:     q.Amenities,
			Distance:      distance[d.Hotel.HotelID],
		})
	}
	if len(hotels) == 0 {
		return models.HotelSearch{}, errors.New("no hotel offers")
	}
	sort.SliceStable(hotels, func(i, j int) bool { return hotels[i].PricePerNight < hotels[j].PricePerNight })

	avg := averagePrice(hotels)
	return models.HotelSearch{
		City:         q.City,
		Hotels:       hotels,
		AveragePrice: avg,
		Nights:       nights,
		Recommendations: []string{
			fmt.Sprintf("Cheapest: %s at $%.0f/night", hotels[0].Name, hotels[0].PricePerNight),
			fmt.Sprintf("Average for %d night(s): ~$%.0f", nights, avg*float64(nights)),
			"Rates are live; availability can change quickly",
		},
	}, nil
}
