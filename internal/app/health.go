// Package app provides application use cases.
package app

import "context"

// HealthUsecase defines the health check use case.
type HealthUsecase interface {
	Handle(ctx context.Context) (HealthResult, error)
}

// HealthResult represents the health check response.
type HealthResult struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Following bool   `json:"following"`
	Importing bool   `json:"importing"`
}

// Activity reports whether the pipelines are busy.
type Activity interface {
	Following() bool
	Importing() bool
}

// HealthService implements HealthUsecase.
type HealthService struct {
	Version  string
	Activity Activity // optional
}

// Handle returns the current health status.
func (s HealthService) Handle(ctx context.Context) (HealthResult, error) {
	res := HealthResult{
		Status:  "ok",
		Version: s.Version,
	}
	if s.Activity != nil {
		res.Following = s.Activity.Following()
		res.Importing = s.Activity.Importing()
	}
	return res, nil
}
