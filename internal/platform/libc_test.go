package platform

import (
	"context"
	"errors"
	"testing"
)

func TestCommandLibcProbe(t *testing.T) {
	type reply struct {
		out string
		err error
	}

	tests := []struct {
		name    string
		replies map[string]reply
		want    Libc
		wantErr bool
	}{
		{
			name:    "getconf glibc",
			replies: map[string]reply{"getconf": {out: "glibc 2.39\n"}},
			want:    Libc{Name: LibcGNU, Version: "2.39"},
		},
		{
			name: "ldd glibc fallback",
			replies: map[string]reply{
				"getconf": {err: errors.New("not found")},
				"ldd":     {out: "ldd (Ubuntu GLIBC 2.35-0ubuntu3.8) 2.35\nCopyright (C) 2022\n"},
			},
			want: Libc{Name: LibcGNU, Version: "2.35"},
		},
		{
			name: "musl with non-zero exit",
			replies: map[string]reply{
				"getconf": {out: "getconf: GNU_LIBC_VERSION: unknown variable\n", err: errors.New("exit status 1")},
				"ldd":     {out: "musl libc (x86_64)\nVersion 1.2.4\nDynamic Program Loader\n", err: errors.New("exit status 1")},
			},
			want: Libc{Name: LibcMusl, Version: "1.2.4"},
		},
		{
			name: "nothing recognizable",
			replies: map[string]reply{
				"getconf": {err: errors.New("not found")},
				"ldd":     {err: errors.New("not found")},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probe := NewLibcProbeWithRunner(func(_ context.Context, name string, _ ...string) ([]byte, error) {
				r := tt.replies[name]
				return []byte(r.out), r.err
			})

			got, err := probe.Probe(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Probe() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Probe() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
