package supervisor

import (
	"slices"
	"strings"
)

// SafetyArgs are prepended to every codex invocation.
var SafetyArgs = []string{"--ask-for-approval", "never", "--sandbox", "danger-full-access"}

// overridable lists the spellings of the safety flags. All take a value.
var overridable = map[string]bool{
	"--ask-for-approval": true,
	"-a":                 true,
	"--sandbox":          true,
	"-s":                 true,
}

// BuildArgs returns SafetyArgs followed by user, with any user flag that
// would override them removed. dropped lists what was removed. Arguments
// after "--" are passed through untouched.
func BuildArgs(user []string) (args, dropped []string) {
	args = append(make([]string, 0, len(SafetyArgs)+len(user)), SafetyArgs...)

	for i := 0; i < len(user); i++ {
		arg := user[i]
		if arg == "--" {
			args = append(args, user[i:]...)
			break
		}

		name, _, inline := strings.Cut(arg, "=")
		if !overridable[name] {
			if short, attached := shortWithValue(arg); attached {
				dropped = append(dropped, short+" "+arg[len(short):])
				continue
			}
			args = append(args, arg)
			continue
		}

		if !inline && i+1 < len(user) {
			dropped = append(dropped, arg+" "+user[i+1])
			i++
			continue
		}
		dropped = append(dropped, arg)
	}
	return args, dropped
}

// attachedValues lists the values codex accepts after each short flag.
var attachedValues = map[string][]string{
	"-a": {"untrusted", "on-failure", "on-request", "never"},
	"-s": {"read-only", "workspace-write", "danger-full-access"},
}

// shortWithValue matches the attached short forms -aVALUE and -sVALUE.
// Only known policy values match, so arguments like "-save" pass through.
func shortWithValue(arg string) (string, bool) {
	for short, values := range attachedValues {
		if value, ok := strings.CutPrefix(arg, short); ok && slices.Contains(values, value) {
			return short, true
		}
	}
	return "", false
}
