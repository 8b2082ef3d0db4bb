package config

import (
	"maps"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalRequiredConfig provides the database, Redis and auth settings every test needs.
func minimalRequiredConfig() map[string]string {
	return map[string]string{
		"XENO_DB_HOST":         "localhost",
		"XENO_DB_PORT":         "5432",
		"XENO_DB_NAME":         "xeno_test",
		"XENO_DB_USER":         "test_user",
		"XENO_DB_PASSWORD":     "test_pass",
		"XENO_REDIS_HOST":      "localhost",
		"XENO_REDIS_PORT":      "6379",
		"XENO_REDIS_PASSWORD":  "redis_password_123",
		"XENO_AUTH_JWT_SECRET": "dev-secret",
	}
}

// mergeEnvVars merges additional env vars with minimal required config
func mergeEnvVars(additional map[string]string) map[string]string {
	result := minimalRequiredConfig()
	maps.Copy(result, additional)
	return result
}

// validProductionConfig returns a complete valid production configuration.
func validProductionConfig() map[string]string {
	return map[string]string{
		"XENO_APP_ENV": "production",

		"XENO_DB_HOST":     "prod-db.example.com",
		"XENO_DB_PORT":     "5432",
		"XENO_DB_NAME":     "xeno_prod",
		"XENO_DB_USER":     "prod_user",
		"XENO_DB_PASSWORD": "SuperSecure123!",
		"XENO_DB_SSL_MODE": "require",

		"XENO_REDIS_HOST":        "prod-redis.example.com",
		"XENO_REDIS_PORT":        "6379",
		"XENO_REDIS_PASSWORD":    "RedisSecure123!",
		"XENO_REDIS_TLS_ENABLED": "true",

		"XENO_AUTH_JWT_SECRET": "0123456789abcdef0123456789abcdef",

		"XENO_SERVER_HTTP_TLS_ENABLED":   "true",
		"XENO_SERVER_HTTP_TLS_CERT_FILE": "/certs/api-cert.pem",
		"XENO_SERVER_HTTP_TLS_KEY_FILE":  "/certs/api-key.pem",
	}
}

// configCase is shared by every table in this package.
type configCase struct {
	name    string
	envVars map[string]string
	want    func(t *testing.T, cfg *Config)
	wantErr bool
}

func runConfigCases(t *testing.T, tests []configCase) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// t.Setenv prevents parallel execution and restores the environment afterwards.
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := Load()

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.want != nil {
				tt.want(t, cfg)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	runConfigCases(t, []configCase{
		{
			name:    "Should use defaults when only required vars are set",
			envVars: minimalRequiredConfig(),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "xeno-crm", cfg.App.Name)
				assert.Equal(t, "dev", cfg.App.Version)
				assert.Equal(t, "development", cfg.App.Environment)
				assert.Equal(t, "info", cfg.App.LogLevel)
				assert.Equal(t, "text", cfg.App.LogFormat)
				assert.Equal(t, 30*time.Second, cfg.App.ShutdownTimeout)
				assert.Equal(t, "8080", cfg.Server.HTTP.Port)
				assert.Equal(t, "50051", cfg.Server.RPC.Port)
				assert.InDelta(t, 0.9, cfg.Dispatch.SuccessRate, 1e-9)
				assert.Equal(t, 50, cfg.Dispatch.PreviewSampleSize)
				assert.False(t, cfg.Observability.TracingEnabled())
			},
		},
		{
			name: "Should load custom environment variables correctly",
			envVars: mergeEnvVars(map[string]string{
				"XENO_APP_NAME":                     "crm-api",
				"XENO_APP_VERSION":                  "1.0.0",
				"XENO_APP_ENV":                      "staging",
				"XENO_APP_LOG_LEVEL":                "debug",
				"XENO_APP_LOG_FORMAT":               "json",
				"XENO_APP_SHUTDOWN_TIMEOUT":         "60s",
				"XENO_SERVER_HTTP_PORT":             "9000",
				"XENO_SERVER_RPC_PORT":              "50052",
				"XENO_DISPATCH_SUCCESS_RATE":        "0.75",
				"XENO_DISPATCH_PREVIEW_SAMPLE_SIZE": "20",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "crm-api", cfg.App.Name)
				assert.Equal(t, "1.0.0", cfg.App.Version)
				assert.Equal(t, "staging", cfg.App.Environment)
				assert.Equal(t, "debug", cfg.App.LogLevel)
				assert.Equal(t, "json", cfg.App.LogFormat)
				assert.Equal(t, 60*time.Second, cfg.App.ShutdownTimeout)
				assert.Equal(t, "9000", cfg.Server.HTTP.Port)
				assert.Equal(t, "50052", cfg.Server.RPC.Port)
				assert.InDelta(t, 0.75, cfg.Dispatch.SuccessRate, 1e-9)
				assert.Equal(t, 20, cfg.Dispatch.PreviewSampleSize)
			},
		},
		{
			name:    "Should fail validation on invalid environment value",
			envVars: mergeEnvVars(map[string]string{"XENO_APP_ENV": "invalid"}),
			wantErr: true,
		},
		{
			name:    "Should fail validation on invalid log level",
			envVars: mergeEnvVars(map[string]string{"XENO_APP_LOG_LEVEL": "trace"}),
			wantErr: true,
		},
		{
			name:    "Should fail validation on invalid log format",
			envVars: mergeEnvVars(map[string]string{"XENO_APP_LOG_FORMAT": "xml"}),
			wantErr: true,
		},
		{
			name:    "Should fail validation on success rate above 1",
			envVars: mergeEnvVars(map[string]string{"XENO_DISPATCH_SUCCESS_RATE": "1.5"}),
			wantErr: true,
		},
		{
			name:    "Should fail validation on zero preview sample size",
			envVars: mergeEnvVars(map[string]string{"XENO_DISPATCH_PREVIEW_SAMPLE_SIZE": "0"}),
			wantErr: true,
		},
		{
			name: "Should allow missing passwords in non-production environments",
			envVars: mergeEnvVars(map[string]string{
				"XENO_APP_ENV":        "development",
				"XENO_DB_PASSWORD":    "",
				"XENO_REDIS_PASSWORD": "",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "", cfg.Database.Password)
				assert.Equal(t, "", cfg.Redis.Password)
			},
		},
		{
			name:    "Should pass validation with a complete production config",
			envVars: validProductionConfig(),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, EnvironmentProduction, cfg.App.Environment)
			},
		},
	})
}

func TestAuthConfig_Validation(t *testing.T) {
	runConfigCases(t, []configCase{
		{
			name: "Should fail when JWT secret is missing",
			envVars: func() map[string]string {
				cfg := minimalRequiredConfig()
				delete(cfg, "XENO_AUTH_JWT_SECRET")
				return cfg
			}(),
			wantErr: true,
		},
		{
			name: "Should fail when JWT secret is short in production",
			envVars: func() map[string]string {
				cfg := validProductionConfig()
				cfg["XENO_AUTH_JWT_SECRET"] = "short"
				return cfg
			}(),
			wantErr: true,
		},
		{
			name:    "Should accept short secrets outside production",
			envVars: mergeEnvVars(map[string]string{"XENO_AUTH_ISSUER": "xeno-login"}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "dev-secret", cfg.Auth.JWTSecret)
				assert.Equal(t, "xeno-login", cfg.Auth.Issuer)
			},
		},
	})
}

func TestServerConfig_Validation(t *testing.T) {
	runConfigCases(t, []configCase{
		{
			name:    "Should fail when TLS enabled without certificates",
			envVars: mergeEnvVars(map[string]string{"XENO_SERVER_HTTP_TLS_ENABLED": "true"}),
			wantErr: true,
		},
		{
			name: "Should fail when HTTP TLS disabled in production",
			envVars: func() map[string]string {
				cfg := validProductionConfig()
				cfg["XENO_SERVER_HTTP_TLS_ENABLED"] = "false"
				return cfg
			}(),
			wantErr: true,
		},
		{
			name:    "Should fail on invalid RPC port",
			envVars: mergeEnvVars(map[string]string{"XENO_SERVER_RPC_PORT": "70000"}),
			wantErr: true,
		},
		{
			name:    "Should fail on HTTP host with whitespace",
			envVars: mergeEnvVars(map[string]string{"XENO_SERVER_HTTP_HOST": " 0.0.0.0"}),
			wantErr: true,
		},
		{
			name: "Should build listen addresses from host and port",
			envVars: mergeEnvVars(map[string]string{
				"XENO_SERVER_HTTP_HOST": "127.0.0.1",
				"XENO_SERVER_HTTP_PORT": "8081",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "127.0.0.1:8081", cfg.Server.HTTP.Addr())
				assert.Equal(t, "0.0.0.0:50051", cfg.Server.RPC.Addr())
			},
		},
	})
}
