package version

import "testing"

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"equal", "1.2.3", "1.2.3", 0},
		{"minor bump", "1.2.0", "1.3.0", -1},
		{"numeric not lexical", "1.10.0", "1.9.9", 1},
		{"leading zeros ignored", "1.02.0", "1.2.0", 0},
		{"huge numbers", "1.123456789012345678901234567890", "1.123456789012345678901234567891", -1},
		{"case insensitive words", "1.0.0-Alpha", "1.0.0-alpha", 0},
		{"alpha before beta", "1.0.0-alpha", "1.0.0-beta", -1},
		{"prefix word shorter is less", "1.0.0-rc", "1.0.0-rc1", -1},
		{"exhausted side sorts first", "1.2", "1.2.1", -1},
		{"empty before anything", "", "0", -1},
		{"both empty", "", "", 0},
		{"separators ignored", "1_2_3", "1.2.3", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			if got := Compare(tt.b, tt.a); got != -tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.b, tt.a, got, -tt.want)
			}
		})
	}
}

func TestCompareReflexive(t *testing.T) {
	for _, v := range []string{"0.46.0", "1.0.0-rc.1", "2025.11.23-3", "abc", "v1"} {
		if got := Compare(v, v); got != 0 {
			t.Errorf("Compare(%q, %q) = %d, want 0", v, v, got)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0.46.0", "0.46.0"},
		{"v0.46.0", "0.46.0"},
		{"rust-v0.46.0", "0.46.0"},
		{"rust-0.46.0", "0.46.0"},
		{"codex-cli 0.46.0\n", "0.46.0"},
		{"codex 0.46.0", "0.46.0"},
		{"  codex-cli 0.46.0  ", "0.46.0"},
		{"V0.46.0", "V0.46.0"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    string
		wantErr bool
	}{
		{"codex cli", "codex-cli 0.46.0", "0.46.0", false},
		{"prerelease", "codex-cli 0.47.0-alpha.2", "0.47.0-alpha.2", false},
		{"multiline", "WARNING: something\ncodex-cli 0.46.0\n", "0.46.0", false},
		{"no version", "usage: codex [options]", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.output)
			if (err != nil) != tt.wantErr {
				t.Errorf("Extract() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("Extract() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLess(t *testing.T) {
	tests := []struct {
		local, remote string
		want          bool
	}{
		{"1.2.0", "1.3.0", true},
		{"1.10.0", "1.9.9", false},
		{"codex-cli 0.46.0", "rust-v0.46.0", false},
		{"0.45.0", "rust-v0.46.0", true},
		{"", "0.1.0", true},
	}

	for _, tt := range tests {
		if got := Less(tt.local, tt.remote); got != tt.want {
			t.Errorf("Less(%q, %q) = %v, want %v", tt.local, tt.remote, got, tt.want)
		}
	}
}
