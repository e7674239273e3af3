package timex

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Duration
		wantErr bool
	}{
		{name: "string", in: `"24h"`, want: 24 * time.Hour},
		{name: "composite string", in: `"1h30m"`, want: 90 * time.Minute},
		{name: "nanoseconds", in: `1000000000`, want: time.Second},
		{name: "bad string", in: `"soon"`, wantErr: true},
		{name: "bool", in: `true`, wantErr: true},
		{name: "not json", in: `{`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.in), &d)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Duration)
		})
	}
}

func TestDuration_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(Duration{Duration: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, `"1h0m0s"`, string(b))
}

func TestDuration_InStruct(t *testing.T) {
	var cfg struct {
		TTL Duration `json:"ttl"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"ttl":"15m"}`), &cfg))
	assert.Equal(t, 15*time.Minute, cfg.TTL.Duration)
}
