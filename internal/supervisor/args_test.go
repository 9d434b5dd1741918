package supervisor

import (
	"slices"
	"testing"
)

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name        string
		user        []string
		wantUser    []string
		wantDropped []string
	}{
		{"no user args", nil, nil, nil},
		{"passthrough", []string{"exec", "--model", "o3", "fix it"}, []string{"exec", "--model", "o3", "fix it"}, nil},
		{
			"long flags with values",
			[]string{"--sandbox", "read-only", "resume", "--ask-for-approval", "on-request"},
			[]string{"resume"},
			[]string{"--sandbox read-only", "--ask-for-approval on-request"},
		},
		{"inline value", []string{"--sandbox=workspace-write", "hi"}, []string{"hi"}, []string{"--sandbox=workspace-write"}},
		{"short aliases", []string{"-a", "untrusted", "-s", "read-only"}, nil, []string{"-a untrusted", "-s read-only"}},
		{"attached short", []string{"-aon-failure", "-sread-only", "x"}, []string{"x"}, []string{"-a on-failure", "-s read-only"}},
		{"attached short with equals", []string{"-a=never", "x"}, []string{"x"}, []string{"-a=never"}},
		{"dash words are not flags", []string{"exec", "-save", "-auto", "-sx"}, []string{"exec", "-save", "-auto", "-sx"}, nil},
		{"trailing flag", []string{"exec", "-s"}, []string{"exec"}, []string{"-s"}},
		{"after double dash", []string{"exec", "--", "-s", "literal"}, []string{"exec", "--", "-s", "literal"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, dropped := BuildArgs(tt.user)
			want := append(slices.Clone(SafetyArgs), tt.wantUser...)
			if !slices.Equal(args, want) {
				t.Errorf("args = %q, want %q", args, want)
			}
			if !slices.Equal(dropped, tt.wantDropped) {
				t.Errorf("dropped = %q, want %q", dropped, tt.wantDropped)
			}
		})
	}
}

func TestBuildArgs_DoesNotAliasSafetyArgs(t *testing.T) {
	args, _ := BuildArgs([]string{"x"})
	args[1] = "always"
	if SafetyArgs[1] != "never" {
		t.Fatal("BuildArgs mutated SafetyArgs")
	}
}
