package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	t.Run("non-existent config file", func(t *testing.T) {
		cfg, err := Load("invalid/path/to/config.yml")

		assert.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
		assert.Nil(t, cfg)
	})

	t.Run("invalid config file", func(t *testing.T) {
		data := `http_server:
  port: not number
redis:
  host: localhost
  port: 6379`

		f := createTempFile(t, []byte(data))
		cfg, err := Load(f.Name())

		assert.Error(t, err)
		assert.Nil(t, cfg)
	})

	t.Run("success", func(t *testing.T) {
		data := `env: prod
base_url: https://sho.ot
http_server:
  cert_file: ./crts/example.pem
  key_file: ./crts/example-key.pem
redis:
  host: redis
  password: secret
rate_limit:
  max_requests: 20
  window: 30s
safe_browsing:
  api_key: test-key`

		f := createTempFile(t, []byte(data))
		cfg, err := Load(f.Name())

		assert.NoError(t, err)
		assert.NotNil(t, cfg)

		var wantCfg Config
		setDefaults(&wantCfg)

		wantCfg.Env = EnvProd
		wantCfg.BaseURL = "https://sho.ot"
		wantCfg.HTTPServer.CertFile = "./crts/example.pem"
		wantCfg.HTTPServer.KeyFile = "./crts/example-key.pem"
		wantCfg.Redis.Host = "redis"
		wantCfg.Redis.Password = "secret"
		wantCfg.RateLimit.MaxRequests = 20
		wantCfg.RateLimit.Window = 30 * time.Second
		wantCfg.SafeBrowsing.APIKey = "test-key"

		assert.Equal(t, wantCfg, *cfg)
	})
}

func createTempFile(t testing.TB, data []byte) *os.File {
	t.Helper()

	f, err := os.CreateTemp("", "config.yml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	t.Cleanup(func() {
		f.Close()
		os.Remove(f.Name())
	})

	if _, err := f.Write(data); err != nil {
		t.Fatalf("Failed to write to file: %v", err)
	}

	return f
}

func TestHTTPServer_Addr(t *testing.T) {
	s := HTTPServer{Port: 8080}

	assert.Equal(t, ":8080", s.Addr())
}

func TestRedis_Addr(t *testing.T) {
	r := Redis{Host: "localhost", Port: 6379}

	assert.Equal(t, "localhost:6379", r.Addr())
}
