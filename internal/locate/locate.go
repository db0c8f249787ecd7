// Package locate resolves an approximate user location for the system instruction.
package locate

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	http "github.com/bogdanfinn/fhttp"
	"github.com/tidwall/gjson"
)

// Doer sends an HTTP request
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Location is an approximate position
type Location struct {
	Lat     float64
	Lng     float64
	City    string
	Country string
}

// Describe renders the location the way it is given to the model
func (l Location) Describe() string {
	return fmt.Sprintf("User Location: Lat %s, Lng %s",
		strconv.FormatFloat(l.Lat, 'f', -1, 64),
		strconv.FormatFloat(l.Lng, 'f', -1, 64))
}

// Locator looks up the location from an IP geolocation endpoint
type Locator struct {
	doer     Doer
	endpoint string
	timeout  time.Duration
}

// New creates a Locator. A zero timeout means 5 seconds.
func New(doer Doer, endpoint string, timeout time.Duration) *Locator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Locator{doer: doer, endpoint: endpoint, timeout: timeout}
}

// Lookup returns the current location. It gives up after the configured timeout.
func (l *Locator) Lookup(ctx context.Context) (Location, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.endpoint, nil)
	if err != nil {
		return Location{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	type result struct {
		loc Location
		err error
	}
	done := make(chan result, 1)

	// The transport timeout may be longer than ours, so race the request against ctx
	go func() {
		loc, err := l.fetch(req)
		done <- result{loc, err}
	}()

	select {
	case <-ctx.Done():
		return Location{}, fmt.Errorf("location lookup: %w", ctx.Err())
	case r := <-done:
		return r.loc, r.err
	}
}

func (l *Locator) fetch(req *http.Request) (Location, error) {
	resp, err := l.doer.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("location lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("location lookup failed: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return Location{}, fmt.Errorf("failed to read location: %w", err)
	}

	data := gjson.ParseBytes(body)
	if status := data.Get("status"); status.Exists() && status.String() != "success" {
		return Location{}, fmt.Errorf("location lookup failed: %s", data.Get("message").String())
	}
	if ok := data.Get("success"); ok.Exists() && !ok.Bool() {
		return Location{}, fmt.Errorf("location lookup failed: %s", data.Get("message").String())
	}

	lat, lng := data.Get("lat"), data.Get("lon")
	if !lat.Exists() {
		lat = data.Get("latitude")
	}
	if !lng.Exists() {
		lng = data.Get("longitude")
	}
	if !lat.Exists() || !lng.Exists() {
		return Location{}, fmt.Errorf("location response has no coordinates")
	}

	return Location{
		Lat:     lat.Float(),
		Lng:     lng.Float(),
		City:    data.Get("city").String(),
		Country: data.Get("country").String(),
	}, nil
}
