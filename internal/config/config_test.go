package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"ADDR", "API_BASE", "H3_DEFAULT_RESOLUTION", "GEOCODER_PROVIDER", "REDIS_ENABLE", "GEOCODER_TIMEOUT_MS", "TLS_ENABLE", "TLS_CERT_PATH", "CAMERA_MAX_ZOOM", "CAMERA_PADDING"} {
		t.Setenv(k, "")
	}
	c := Load()
	assert.Equal(t, ":8080", c.Addr)
	assert.Equal(t, "/api", c.APIBase)
	assert.Equal(t, 8, c.DefaultResolution)
	assert.Equal(t, "flatzone", c.GeocoderProvider)
	assert.False(t, c.RedisEnable)
	assert.Equal(t, 5*time.Second, c.GeocoderTimeout)
	assert.Equal(t, 14.0, c.CameraMaxZoom)
	assert.Equal(t, 50, c.CameraPadding)
	assert.False(t, c.TLSEnable)
	assert.Equal(t, filepath.Join("data", "certs", "server.crt"), c.TLSCertPath)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("H3_DEFAULT_RESOLUTION", "6")
	t.Setenv("H3_DEDUPE_CELLS", "true")
	t.Setenv("GEOCODER_PROVIDER", "Nominatim")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("GEOCODE_CACHE_SIZE", "oops")
	t.Setenv("CAMERA_MAX_ZOOM", "16")

	c := Load()
	assert.Equal(t, 6, c.DefaultResolution)
	assert.True(t, c.DedupeCells)
	assert.Equal(t, "nominatim", c.GeocoderProvider)
	assert.Equal(t, "cache:6380", c.RedisAddr())
	assert.Equal(t, 1024, c.GeocodeCacheSize)
	assert.Equal(t, 16.0, c.CameraMaxZoom)
}
