package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// EnvHome overrides the directory relative runtime paths resolve against.
const EnvHome = "FORUM_HOME"

// homeDir is FORUM_HOME, else the directory of the running binary, else the
// working directory.
func homeDir() string {
	if v := strings.TrimSpace(os.Getenv(EnvHome)); v != "" {
		return v
	}
	if exe, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		return filepath.Dir(exe)
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// ResolveRuntimePath returns raw as an absolute clean path. Empty raw means
// fallbackSubdir, and relative paths are taken from homeDir.
func ResolveRuntimePath(raw, fallbackSubdir string) string {
	target := defaulted(raw, fallbackSubdir)
	if filepath.IsAbs(target) {
		return filepath.Clean(target)
	}
	return filepath.Join(homeDir(), target)
}

// utcOffsetRe matches fixed offsets such as "+08:00".
var utcOffsetRe = regexp.MustCompile(`^([+-])([01]\d|2[0-3]):([0-5]\d)$`)

// ParseTimezone accepts an IANA zone name or a fixed UTC offset.
func ParseTimezone(raw string) (*time.Location, error) {
	tz := strings.TrimSpace(raw)
	if tz == "" {
		return time.Local, nil
	}
	if m := utcOffsetRe.FindStringSubmatch(tz); m != nil {
		h, _ := strconv.Atoi(m[2])
		mins, _ := strconv.Atoi(m[3])
		offset := h*3600 + mins*60
		if m[1] == "-" {
			offset = -offset
		}
		return time.FixedZone(tz, offset), nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("expect IANA zone (e.g. Europe/Stockholm) or UTC offset (e.g. +02:00): %w", err)
	}
	return loc, nil
}
