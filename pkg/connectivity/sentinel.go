// Package connectivity implements the Connectivity Sentinel: a cached
// online/limited/offline status backed by an active HTTP probe and passive
// success/failure signals from outbound calls, grounded on the original
// implementation's infra/external/connectivity module.
package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/codeready-toolchain/promptforge/pkg/models"
)

const (
	// CacheTTL bounds how long a cached status is trusted before the next
	// read triggers a fresh active probe.
	CacheTTL = 30 * time.Second
	// ProbeTimeout bounds the active HTTP probe.
	ProbeTimeout = 3 * time.Second
)

// OfflineAvailableFeatures remain usable when connectivity is Limited or Offline.
var OfflineAvailableFeatures = []string{"view_history", "manage_test_sets", "view_checkpoints"}

// OfflineRestrictedFeatures are gated when connectivity is Limited or Offline.
var OfflineRestrictedFeatures = []string{"api_connection_test", "run_optimization"}

// Sentinel owns the cached connectivity status for one probe target.
// Constructed explicitly (not a package-level global) so its lifetime is
// owned by the caller's dependency graph.
type Sentinel struct {
	probeURL string
	client   *http.Client

	mu            sync.Mutex
	status        models.ConnectivityStatus
	lastCheckedAt time.Time
	message       string
}

// New builds a Sentinel that actively probes probeURL.
func New(probeURL string) *Sentinel {
	return &Sentinel{
		probeURL: probeURL,
		client:   &http.Client{Timeout: ProbeTimeout},
		status:   models.ConnectivityOffline,
	}
}

// Status returns the cached status, actively re-probing if the cache has
// expired and a probe URL is set; with an empty probe URL only
// RecordSuccess/RecordFailure change it.
func (s *Sentinel) Status(ctx context.Context) models.ConnectivityResponse {
	s.mu.Lock()
	stale := time.Since(s.lastCheckedAt) > CacheTTL
	s.mu.Unlock()

	if stale && s.probeURL != "" {
		s.activeProbe(ctx)
	}
	return s.snapshot()
}

func (s *Sentinel) snapshot() models.ConnectivityResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := models.ConnectivityResponse{
		Status:        s.status,
		LastCheckedAt: s.lastCheckedAt,
		Message:       s.message,
	}
	if s.status == models.ConnectivityOnline {
		resp.AvailableFeatures = append(append([]string{}, OfflineAvailableFeatures...), OfflineRestrictedFeatures...)
		resp.RestrictedFeatures = nil
	} else {
		resp.AvailableFeatures = OfflineAvailableFeatures
		resp.RestrictedFeatures = OfflineRestrictedFeatures
	}
	return resp
}

func (s *Sentinel) activeProbe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, s.probeURL, nil)
	if err != nil {
		s.set(models.ConnectivityOffline, err.Error())
		return
	}
	resp, err := s.client.Do(req)
	if err != nil {
		s.set(models.ConnectivityOffline, err.Error())
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		s.set(models.ConnectivityOnline, "")
	} else {
		s.set(models.ConnectivityLimited, http.StatusText(resp.StatusCode))
	}
}

func (s *Sentinel) set(status models.ConnectivityStatus, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.message = message
	s.lastCheckedAt = time.Now()
}

// RecordSuccess is a passive signal from an outbound call's success path:
// it marks the sentinel Online without waiting for the next active probe.
func (s *Sentinel) RecordSuccess() {
	s.set(models.ConnectivityOnline, "")
}

// RecordFailure is a passive signal from an outbound call's failure path.
// degraded, rather than fully offline, is used when the failure looks
// transient (the caller decides which).
func (s *Sentinel) RecordFailure(degraded bool, message string) {
	if degraded {
		s.set(models.ConnectivityLimited, message)
		return
	}
	s.set(models.ConnectivityOffline, message)
}
