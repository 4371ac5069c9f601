package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "separate value",
			args:    []string{"-a", ":9090", "-x", "1"},
			allowed: []string{"-a"},
			want:    []string{"-a", ":9090"},
		},
		{
			name:    "inline value",
			args:    []string{"-d=file.db", "-zz=2"},
			allowed: []string{"-d"},
			want:    []string{"-d=file.db"},
		},
		{
			name:    "flag followed by another flag",
			args:    []string{"-i", "-a", ":1"},
			allowed: []string{"-i", "-a"},
			want:    []string{"-i", "-a", ":1"},
		},
		{
			name:    "nothing allowed",
			args:    []string{"-a", "1"},
			allowed: nil,
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowed))
		})
	}
}

func TestConfigPath(t *testing.T) {
	assert.Equal(t, "conf.json", ConfigPath([]string{"-a", ":1", "-c", "conf.json"}))
	assert.Equal(t, "other.json", ConfigPath([]string{"-config=other.json"}))
	assert.Equal(t, "", ConfigPath([]string{"-a", ":1"}))
}
