// Package seed puts known records into the backend before a scenario that depends on them runs.
//
// There are two mechanisms: an HTTP seeding endpoint exposed by the backend for tests, and a
// direct connection to the backend's database.
package seed

import (
	"context"
	"fmt"

	"github.com/mapdata/gateway-contract-tests/apiclient"
	"github.com/mapdata/gateway-contract-tests/config"
	"github.com/mapdata/gateway-contract-tests/framework"
)

// Seeder makes sure a map data record with the given id exists.
type Seeder interface {
	Seed(ctx context.Context, id string) error
}

// ControlCallError means a call to one of the backend's test control endpoints returned an
// unexpected status.
type ControlCallError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *ControlCallError) Error() string {
	return fmt.Sprintf("%s returned unexpected status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// HTTPSeeder seeds by POSTing {"id": ...} to a seeding endpoint.
type HTTPSeeder struct {
	client   *apiclient.Client
	endpoint string
}

func NewHTTPSeeder(client *apiclient.Client, endpoint string) *HTTPSeeder {
	return &HTTPSeeder{client: client, endpoint: endpoint}
}

var acceptedSeedStatuses = map[int]bool{200: true, 201: true, 204: true}

func (s *HTTPSeeder) Seed(ctx context.Context, id string) error {
	resp, err := s.client.Post(ctx, s.endpoint, map[string]string{"id": id})
	if err != nil {
		return err
	}
	if !acceptedSeedStatuses[resp.StatusCode] {
		return &ControlCallError{Endpoint: s.client.URL(s.endpoint), StatusCode: resp.StatusCode, Body: resp.Body}
	}
	return nil
}

// FromConfig returns the seeder for whichever mechanism is configured, preferring the HTTP
// endpoint. It returns nil if there is none. The caller must close the returned closer, if any.
func FromConfig(c config.Config, client *apiclient.Client, logger framework.Logger) (Seeder, func() error, error) {
	if c.SeedGUIDAPI.IsDefined() {
		return NewHTTPSeeder(client, c.SeedGUIDAPI.StringValue()), nil, nil
	}
	if c.DBConnString.IsDefined() {
		s, err := OpenSQLSeeder(c.DBConnString.StringValue(), logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, nil
}
