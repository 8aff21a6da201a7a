package shredder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildFlags(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want []string
	}{
		{
			name: "defaults",
			cfg:  DefaultConfig(),
			want: []string{"-v", "--iterations=3", "-u", "-z"},
		},
		{
			name: "force without remove or zero",
			cfg:  Config{ForceWritable: true, Iterations: 25},
			want: []string{"-v", "-f", "--iterations=25"},
		},
		{
			name: "force with valid size",
			cfg:  Config{ForceWritable: true, Iterations: 25, SizeLimit: "65535"},
			want: []string{"-v", "-f", "--iterations=25", "--size=65535"},
		},
		{
			name: "size with unit keeps position before remove",
			cfg:  Config{Iterations: 1, SizeLimit: "64K", RemoveAfter: true, FinalZeroPass: true},
			want: []string{"-v", "--iterations=1", "--size=64K", "-u", "-z"},
		},
		{
			name: "invalid size dropped",
			cfg:  Config{Iterations: 3, SizeLimit: "abc"},
			want: []string{"-v", "--iterations=3"},
		},
		{
			name: "lowercase unit dropped",
			cfg:  Config{Iterations: 3, SizeLimit: "10k"},
			want: []string{"-v", "--iterations=3"},
		},
		{
			name: "zero iterations still emitted",
			cfg:  Config{Iterations: 0, FinalZeroPass: true},
			want: []string{"-v", "--iterations=0", "-z"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildFlags(tt.cfg))
		})
	}
}

func TestBuildFlagsDeterministic(t *testing.T) {
	cfg := Config{ForceWritable: true, Iterations: 7, SizeLimit: "1G", RemoveAfter: true}
	first := BuildFlags(cfg)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, BuildFlags(cfg))
	}
}

func TestValidSize(t *testing.T) {
	for _, s := range []string{"0", "65535", "1K", "20M", "3G"} {
		assert.True(t, ValidSize(s), s)
	}
	for _, s := range []string{"", "abc", "1T", "K", "1.5M", "-1", "1KB", " 1K"} {
		assert.False(t, ValidSize(s), s)
	}
}
