package services

import (
	"context"
	"time"

	"github.com/m-barthelemy/placeshare/metrics"
	"github.com/m-barthelemy/placeshare/models"
	log "github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"
	"googlemaps.github.io/maps"
)

// Geocoder resolves a postal address to coordinates.
type Geocoder interface {
	Resolve(ctx context.Context, address string) (models.Location, error)
}

// GoogleGeocoder uses the Google Geocoding API behind a circuit breaker,
// so that an unavailable API fails fast instead of piling up requests.
type GoogleGeocoder struct {
	client  *maps.Client
	breaker *gobreaker.CircuitBreaker[[]maps.GeocodingResult]
	timeout time.Duration
}

// NewGoogleGeocoder creates a Geocoder for the configured GMAPAPIKEY.
// Extra client options (such as maps.WithBaseURL) are mostly useful for tests.
func NewGoogleGeocoder(config *models.Config, options ...maps.ClientOption) *GoogleGeocoder {
	geocoder := &GoogleGeocoder{timeout: config.GeocodeTimeout}
	if config.GmapAPIKey != "" {
		client, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(config.GmapAPIKey)}, options...)...)
		if err != nil {
			log.Errorf("Geocoder: could not create Google Maps client: %s", err.Error())
		} else {
			geocoder.client = client
		}
	}
	geocoder.breaker = gobreaker.NewCircuitBreaker[[]maps.GeocodingResult](gobreaker.Settings{
		Name:        "geocode",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("Geocoder: circuit breaker %s changed from %s to %s", name, from, to)
		},
	})
	return geocoder
}

func (g *GoogleGeocoder) Resolve(ctx context.Context, address string) (models.Location, error) {
	if g.client == nil {
		metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return models.Location{}, ServerError("Geocoding is not available, please try again later", GeocodeError.New("API key is not configured"))
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	results, err := g.breaker.Execute(func() ([]maps.GeocodingResult, error) {
		return g.client.Geocode(ctx, &maps.GeocodingRequest{Address: address})
	})
	if err != nil {
		metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return models.Location{}, ServerError("Geocoding failed, please try again later", GeocodeError.Wrap(err))
	}
	if len(results) == 0 {
		metrics.GeocodeRequests.WithLabelValues("zero_results").Inc()
		return models.Location{}, Unprocessable("Could not find location for specified address", nil)
	}

	metrics.GeocodeRequests.WithLabelValues("ok").Inc()
	location := results[0].Geometry.Location
	return models.Location{Lat: location.Lat, Lng: location.Lng}, nil
}
