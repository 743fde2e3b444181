package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestFromEnv(t *testing.T) {
	cases := []struct {
		name         string
		env          map[string]string
		wantErr      string
		wantEncoding string
		wantLevel    zapcore.Level
	}{
		{name: "defaults", env: map[string]string{}, wantEncoding: "console", wantLevel: zapcore.InfoLevel},
		{name: "json_debug", env: map[string]string{LevelEnvVar: "debug", FormatEnvVar: "JSON"}, wantEncoding: "json", wantLevel: zapcore.DebugLevel},
		{name: "console_warn", env: map[string]string{LevelEnvVar: "warn", FormatEnvVar: "console"}, wantEncoding: "console", wantLevel: zapcore.WarnLevel},
		{name: "bad_level", env: map[string]string{LevelEnvVar: "loud"}, wantErr: "invalid EXECUTOR_LOG_LEVEL"},
		{name: "bad_format", env: map[string]string{FormatEnvVar: "xml"}, wantErr: "invalid EXECUTOR_LOG_FORMAT"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			apply, err := FromEnv(func(k string) string { return tc.env[k] })
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)

			cfg := zap.NewProductionConfig()
			apply(&cfg)
			require.Equal(t, tc.wantEncoding, cfg.Encoding)
			require.Equal(t, tc.wantLevel, cfg.Level.Level())
		})
	}
}
