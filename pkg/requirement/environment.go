package requirement

import (
	"runtime"
	"strings"
)

// Environment holds the values environment markers are evaluated against.
// Field names follow the PEP 508 marker variables.
type Environment struct {
	PythonVersion                string // "3.11"
	PythonFullVersion            string // "3.11.4"
	ImplementationName           string // "cpython"
	ImplementationVersion        string // "3.11.4"
	PlatformPythonImplementation string // "CPython"
	SysPlatform                  string // "linux", "darwin", "win32"
	PlatformSystem               string // "Linux", "Darwin", "Windows"
	PlatformMachine              string // "x86_64", "arm64"
	OSName                       string // "posix", "nt"
}

// DefaultEnvironment describes a CPython interpreter of the given version
// running on the host platform. python may be "3.11" or "3.11.4".
func DefaultEnvironment(python string) Environment {
	short := python
	if parts := strings.Split(python, "."); len(parts) > 2 {
		short = parts[0] + "." + parts[1]
	}
	full := python
	if strings.Count(full, ".") < 2 {
		full += ".0"
	}

	env := Environment{
		PythonVersion:                short,
		PythonFullVersion:            full,
		ImplementationName:           "cpython",
		ImplementationVersion:        full,
		PlatformPythonImplementation: "CPython",
		SysPlatform:                  runtime.GOOS,
		PlatformSystem:               platformSystem(runtime.GOOS),
		PlatformMachine:              platformMachine(runtime.GOARCH),
		OSName:                       "posix",
	}
	if runtime.GOOS == "windows" {
		env.SysPlatform = "win32"
		env.OSName = "nt"
	}
	return env
}

func platformSystem(goos string) string {
	switch goos {
	case "darwin":
		return "Darwin"
	case "windows":
		return "Windows"
	case "freebsd":
		return "FreeBSD"
	default:
		return "Linux"
	}
}

func platformMachine(goarch string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "386":
		return "i686"
	case "arm64":
		if runtime.GOOS == "linux" {
			return "aarch64"
		}
		return "arm64"
	default:
		return goarch
	}
}

// Lookup returns the value of a marker variable.
func (e Environment) Lookup(name string) (string, bool) {
	switch name {
	case "python_version":
		return e.PythonVersion, true
	case "python_full_version":
		return e.PythonFullVersion, true
	case "implementation_name":
		return e.ImplementationName, true
	case "implementation_version":
		return e.ImplementationVersion, true
	case "platform_python_implementation":
		return e.PlatformPythonImplementation, true
	case "sys_platform":
		return e.SysPlatform, true
	case "platform_system":
		return e.PlatformSystem, true
	case "platform_machine":
		return e.PlatformMachine, true
	case "os_name":
		return e.OSName, true
	}
	return "", false
}

// versionVariables compare as versions rather than strings.
var versionVariables = map[string]bool{
	"python_version":         true,
	"python_full_version":    true,
	"implementation_version": true,
}
