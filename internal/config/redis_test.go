package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedisConfig_Validation(t *testing.T) {
	runConfigCases(t, []configCase{
		{
			name: "Should fail when redis TLS disabled in production",
			envVars: func() map[string]string {
				cfg := validProductionConfig()
				cfg["XENO_REDIS_TLS_ENABLED"] = "false"
				return cfg
			}(),
			wantErr: true,
		},
		{
			name: "Should fail when redis password missing in production",
			envVars: func() map[string]string {
				cfg := validProductionConfig()
				delete(cfg, "XENO_REDIS_PASSWORD")
				return cfg
			}(),
			wantErr: true,
		},
		{
			name:    "Should accept a redis URL with database number",
			envVars: mergeEnvVars(map[string]string{"XENO_REDIS_URL": "redis://cache.internal:6379/3"}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "redis://cache.internal:6379/3", cfg.Redis.Address())
			},
		},
		{
			name:    "Should reject a redis URL with out-of-range database",
			envVars: mergeEnvVars(map[string]string{"XENO_REDIS_URL": "redis://cache.internal:6379/16"}),
			wantErr: true,
		},
		{
			name:    "Should reject a redis URL with the wrong scheme",
			envVars: mergeEnvVars(map[string]string{"XENO_REDIS_URL": "http://cache.internal:6379"}),
			wantErr: true,
		},
		{
			name: "Should reject min idle conns greater than pool size",
			envVars: mergeEnvVars(map[string]string{
				"XENO_REDIS_POOL_SIZE":      "2",
				"XENO_REDIS_MIN_IDLE_CONNS": "5",
			}),
			wantErr: true,
		},
		{
			name:    "Should reject key prefix with whitespace",
			envVars: mergeEnvVars(map[string]string{"XENO_REDIS_KEY_PREFIX": "xeno crm"}),
			wantErr: true,
		},
		{
			name:    "Should use pool defaults",
			envVars: minimalRequiredConfig(),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 20, cfg.Redis.PoolSize)
				assert.Equal(t, 2, cfg.Redis.MinIdleConns)
				assert.Equal(t, "localhost:6379", cfg.Redis.Address())
			},
		},
	})
}

func TestRedisConfig_Key(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		parts  []string
		want   string
	}{
		{"Should namespace under prefix", "xeno", []string{"stats", "queue"}, "xeno:stats:queue"},
		{"Should join without prefix", "", []string{"stats", "lock", "c1"}, "stats:lock:c1"},
		{"Should handle single part", "crm", []string{"queue"}, "crm:queue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := RedisConfig{KeyPrefix: tt.prefix}
			assert.Equal(t, tt.want, cfg.Key(tt.parts...))
		})
	}
}
