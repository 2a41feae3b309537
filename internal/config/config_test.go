package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_defaults(t *testing.T) {
	os.Clearenv()
	c := Load()
	if c.Listen != ":8080" {
		t.Errorf("Listen default: got %q", c.Listen)
	}
	if c.DBPath != "./telecast.db" {
		t.Errorf("DBPath default: got %q", c.DBPath)
	}
	if c.SessionTTL != 30*time.Minute {
		t.Errorf("SessionTTL default: got %v", c.SessionTTL)
	}
	if c.RefreshTTL != 24*time.Hour {
		t.Errorf("RefreshTTL default: got %v", c.RefreshTTL)
	}
	if c.PrewarmWorkers != 10 {
		t.Errorf("PrewarmWorkers default: got %d", c.PrewarmWorkers)
	}
	if c.PrewarmRPS != 0.25 {
		t.Errorf("PrewarmRPS default: got %v", c.PrewarmRPS)
	}
	if c.MaxConns != 64 {
		t.Errorf("MaxConns default: got %d", c.MaxConns)
	}
	if !c.RequestLog {
		t.Error("RequestLog should default true")
	}
	if c.CacheDir != "./static/icons" {
		t.Errorf("CacheDir default: got %q", c.CacheDir)
	}
}

func TestLoad_provider(t *testing.T) {
	os.Clearenv()
	os.Setenv("TELECAST_API_URL", "http://host:8080/")
	os.Setenv("TELECAST_API_USER", "u")
	os.Setenv("TELECAST_API_PASS", "p")
	c := Load()
	if c.APIBaseURL != "http://host:8080" {
		t.Errorf("APIBaseURL should drop trailing slash: got %q", c.APIBaseURL)
	}
	if c.APIUser != "u" || c.APIPass != "p" {
		t.Errorf("credentials: user=%q pass=%q", c.APIUser, c.APIPass)
	}
}

func TestLoad_overrides(t *testing.T) {
	os.Clearenv()
	os.Setenv("TELECAST_LISTEN", ":9000")
	os.Setenv("TELECAST_REFRESH_TTL", "1h")
	os.Setenv("TELECAST_SESSION_TTL", "5m")
	os.Setenv("TELECAST_PREWARM_WORKERS", "3")
	os.Setenv("TELECAST_PREWARM_RPS", "2")
	os.Setenv("TELECAST_REQUEST_LOG", "false")
	c := Load()
	if c.Listen != ":9000" {
		t.Errorf("Listen: got %q", c.Listen)
	}
	if c.RefreshTTL != time.Hour {
		t.Errorf("RefreshTTL: got %v", c.RefreshTTL)
	}
	if c.SessionTTL != 5*time.Minute {
		t.Errorf("SessionTTL: got %v", c.SessionTTL)
	}
	if c.PrewarmWorkers != 3 {
		t.Errorf("PrewarmWorkers: got %d", c.PrewarmWorkers)
	}
	if c.PrewarmRPS != 2 {
		t.Errorf("PrewarmRPS: got %v", c.PrewarmRPS)
	}
	if c.RequestLog {
		t.Error("RequestLog should be false")
	}
}

func TestLoad_badValuesFallBack(t *testing.T) {
	os.Clearenv()
	os.Setenv("TELECAST_REFRESH_TTL", "not-a-duration")
	os.Setenv("TELECAST_PREWARM_WORKERS", "-1")
	os.Setenv("TELECAST_PREWARM_RPS", "0")
	c := Load()
	if c.RefreshTTL != 24*time.Hour {
		t.Errorf("RefreshTTL should fall back to default: got %v", c.RefreshTTL)
	}
	if c.PrewarmWorkers != 10 {
		t.Errorf("PrewarmWorkers should fall back to default: got %d", c.PrewarmWorkers)
	}
	if c.PrewarmRPS != 0.25 {
		t.Errorf("PrewarmRPS should fall back to default: got %v", c.PrewarmRPS)
	}
}
