package registry

import (
	"context"
	"fmt"
)

// Mode selects how a generation run obtains its namespace.
type Mode string

const (
	// ModeAuto reserves a fresh namespace from the registry.
	ModeAuto Mode = "auto"
	// ModeOff uses the empty namespace: a fully reproducible single-shot run.
	ModeOff Mode = "off"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAuto, ModeOff:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("invalid registry mode %q: must be one of [auto off]", s)
	}
}

// Resolution is the namespace chosen for a run and where it came from.
type Resolution struct {
	Namespace string
	Serial    int64  // 0 unless reserved from a registry
	Source    string // "explicit", "off" or "registry"
}

// Resolve picks the namespace for a run.
// An explicit salt always wins and bypasses the registry, for exact replay.
// Otherwise ModeOff yields "" and ModeAuto reserves from reg.
// reg is only consulted in the ModeAuto case and may be nil otherwise.
func Resolve(ctx context.Context, mode Mode, salt string, reg Registry, info RunInfo) (Resolution, error) {
	if salt != "" {
		return Resolution{Namespace: salt, Source: "explicit"}, nil
	}

	switch mode {
	case ModeOff:
		return Resolution{Source: "off"}, nil
	case ModeAuto:
		if reg == nil {
			return Resolution{}, fmt.Errorf("registry mode auto requires a registry")
		}
		res, err := reg.Reserve(ctx, info)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Namespace: res.Namespace, Serial: res.Serial, Source: "registry"}, nil
	default:
		return Resolution{}, fmt.Errorf("invalid registry mode %q", mode)
	}
}
