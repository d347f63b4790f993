package db

import (
	"errors"
	"testing"
	"time"
)

func TestBuildHealth_OK(t *testing.T) {
	usage := PoolUsage{Total: 10, Idle: 6, Acquired: 4, Max: 20}
	h := buildHealth(nil, usage, 42*time.Millisecond)

	if h.Status != "ok" {
		t.Errorf("Status = %q, want ok", h.Status)
	}
	if h.Error != "" {
		t.Errorf("Error = %q, want empty", h.Error)
	}
	if h.LatencyMS != 42 {
		t.Errorf("LatencyMS = %d, want 42", h.LatencyMS)
	}
	if h.Pool != usage {
		t.Errorf("Pool = %+v, want %+v", h.Pool, usage)
	}
}

func TestBuildHealth_PingFailure(t *testing.T) {
	h := buildHealth(errors.New("connection refused"), PoolUsage{Max: 20}, time.Millisecond)

	if h.Status != "unavailable" {
		t.Errorf("Status = %q, want unavailable", h.Status)
	}
	if h.Error != "connection refused" {
		t.Errorf("Error = %q, want connection refused", h.Error)
	}
}

func TestBuildHealth_SubMillisecondLatency(t *testing.T) {
	h := buildHealth(nil, PoolUsage{}, 300*time.Microsecond)
	if h.LatencyMS != 0 {
		t.Errorf("LatencyMS = %d, want 0", h.LatencyMS)
	}
}
