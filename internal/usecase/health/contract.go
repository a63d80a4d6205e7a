package health

import "context"

// Pinger checks staging store availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker checks an external collaborator's reachability.
type Checker interface {
	HealthCheck(ctx context.Context) error
}
