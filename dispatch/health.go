package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	fthealth "github.com/Financial-Times/go-fthealth/v1_1"
)

const healthTimeout = 10 * time.Second

type HealthService struct {
	systemCode  string
	name        string
	description string
	timeout     time.Duration
	Checks      []fthealth.Check
}

func NewHealthService(systemCode, name, description string, checks ...fthealth.Check) *HealthService {
	return &HealthService{
		systemCode:  systemCode,
		name:        name,
		description: description,
		timeout:     healthTimeout,
		Checks:      checks,
	}
}

func (h *HealthService) HealthHandler() func(http.ResponseWriter, *http.Request) {
	return fthealth.Handler(fthealth.TimedHealthCheck{
		HealthCheck: fthealth.HealthCheck{
			SystemCode:  h.systemCode,
			Name:        h.name,
			Description: h.description,
			Checks:      h.Checks,
		},
		Timeout: h.timeout,
	})
}

// GTG runs every check concurrently and reports the first failure, or a timeout once the checks
// have taken longer than the health endpoint allows.
func (h *HealthService) GTG() error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	results := make(chan error, len(h.Checks))
	for _, check := range h.Checks {
		go func(check fthealth.Check) {
			if _, err := check.Checker(); err != nil {
				results <- fmt.Errorf("%s: %w", check.Name, err)
				return
			}
			results <- nil
		}(check)
	}

	for range h.Checks {
		select {
		case err := <-results:
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return fmt.Errorf("health checks did not complete within %s", h.timeout)
		}
	}
	return nil
}

func (h *HealthService) GTGHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Content-Type", "text/plain; charset=US-ASCII")
	if err := h.GTG(); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}
