// Package athdir resolves the OS- and architecture-specific
// subdirectories lockers use for binaries, libraries and other file
// classes, following the Athena directory conventions.
package athdir

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

var (
	// ErrNoConventionMatch means no convention produced an existing path.
	ErrNoConventionMatch = errors.New("no directory convention matches")

	// ErrUnknownPlatform means the sysname or host type could not be
	// determined from the environment or machtype.
	ErrUnknownPlatform = errors.New("unable to determine platform")
)

// Flavor classifies a convention by what it varies on.
type Flavor int

const (
	// FlavorArch varies on the new-style arch/<sysname> layout.
	FlavorArch Flavor = iota
	// FlavorSys varies on the old-style bare sysname layout.
	FlavorSys
	// FlavorMach varies on the machine (host type) name.
	FlavorMach
	// FlavorPlain does not vary at all.
	FlavorPlain
)

// Convention is one path template. Templates substitute %p (locker
// root), %t (directory type), %s (sysname) and %m (host type).
type Convention struct {
	Template string
	custom   bool
	atSys    bool
	flavors  map[Flavor]bool
}

// NewConvention classifies a template by the substitutions it uses.
func NewConvention(template string, custom bool) Convention {
	c := Convention{
		Template: template,
		custom:   custom,
		atSys:    strings.Contains(template, "%s"),
		flavors:  make(map[Flavor]bool),
	}
	hasArch := strings.Contains(template, "arch")
	c.flavors[FlavorArch] = hasArch
	c.flavors[FlavorMach] = strings.Contains(template, "%m")
	c.flavors[FlavorSys] = c.atSys && !hasArch
	c.flavors[FlavorPlain] = !c.flavors[FlavorArch] && !c.flavors[FlavorMach] && !c.flavors[FlavorSys]
	return c
}

// dependencyMatch reports whether the convention's architecture
// dependency agrees with the requested one. Custom templates always
// match.
func (c Convention) dependencyMatch(dependent bool) bool {
	if c.custom {
		return true
	}
	return dependent != c.flavors[FlavorPlain]
}

// acceptableFor reports whether the convention serves any of the given
// flavors.
func (c Convention) acceptableFor(flavors []Flavor) bool {
	if c.custom {
		return true
	}
	for _, f := range flavors {
		if c.flavors[f] {
			return true
		}
	}
	return false
}

// conventions is the fixed search order, most specific first.
var conventions = []Convention{
	NewConvention("%p/arch/%s/%t", false),
	NewConvention("%p/%s/%t", false),
	NewConvention("%p/%m%t", false),
	NewConvention("%p/%t", false),
}

// Directory types that are architecture independent by convention.
var indepTypes = map[string]bool{"man": true, "include": true}

// Directory types served by the old-style sysname and machine layouts.
// This list is closed; new types only get the arch layout.
var legacyTypes = map[string]bool{"bin": true, "lib": true, "etc": true}

// Options overrides platform discovery and the convention list.
type Options struct {
	// SysName overrides ATHENA_SYS / machtype -S.
	SysName string

	// SysCompat overrides ATHENA_SYS_COMPAT / machtype -C.
	SysCompat []string

	// HostType overrides HOSTTYPE / machtype.
	HostType string

	// CustomTemplate, when set, is consulted before the standard
	// conventions.
	CustomTemplate string
}

// Resolver answers path queries for one locker root and directory type.
type Resolver struct {
	path     string
	dirType  string
	compat   []string
	hostType string

	archDependent bool
	acceptable    []Flavor
	conventions   []Convention

	// exists is swappable for tests.
	exists func(string) bool
}

// New builds a resolver for the given locker root and directory type
// (bin, lib, man, ...). Platform identity comes from opts, then the
// environment, then machtype.
func New(basePath, dirType string, opts Options) (*Resolver, error) {
	sysname := opts.SysName
	if sysname == "" {
		var err error
		if sysname, err = SysName(); err != nil {
			return nil, err
		}
	}

	compat := opts.SysCompat
	if compat == nil {
		var err error
		if compat, err = SysCompat(); err != nil {
			return nil, err
		}
	}

	hostType := opts.HostType
	if hostType == "" {
		var err error
		if hostType, err = HostType(); err != nil {
			return nil, err
		}
	}

	r := &Resolver{
		path:          basePath,
		dirType:       dirType,
		compat:        append([]string{sysname}, compat...),
		hostType:      hostType,
		archDependent: !indepTypes[dirType],
		acceptable:    []Flavor{FlavorArch},
		conventions:   conventions,
		exists: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
	}

	if legacyTypes[dirType] {
		r.acceptable = append(r.acceptable, FlavorSys, FlavorMach)
	} else {
		r.acceptable = append(r.acceptable, FlavorPlain)
	}

	if opts.CustomTemplate != "" {
		r.conventions = append([]Convention{NewConvention(opts.CustomTemplate, true)}, conventions...)
	}

	return r, nil
}

// Query selects how Paths searches the conventions.
type Query struct {
	// AllConventions considers every convention, not just the accepted
	// ones for the directory type.
	AllConventions bool

	// NoSearch returns the first appropriate path without checking
	// that it exists.
	NoSearch bool

	// ForceDependent forces an architecture-dependent path. Only
	// meaningful with NoSearch.
	ForceDependent bool

	// ForceIndependent forces an architecture-independent path. Only
	// meaningful with NoSearch.
	ForceIndependent bool

	// ListAll expands every candidate instead of stopping at the first
	// match.
	ListAll bool
}

// Paths returns matching paths in convention order. Without ListAll or
// NoSearch, the first path that exists on disk wins; resolution is
// deterministic for a fixed platform identity and filesystem state.
func (r *Resolver) Paths(q Query) ([]string, error) {
	if q.ForceDependent && q.ForceIndependent {
		return nil, errors.New("cannot force both dependent and independent paths")
	}
	if (q.ForceDependent || q.ForceIndependent) && !q.NoSearch {
		return nil, errors.New("forcing dependency requires no-search mode")
	}

	dependent := r.archDependent
	if q.ForceDependent {
		dependent = true
	}
	if q.ForceIndependent {
		dependent = false
	}

	var out []string
	for _, c := range r.conventions {
		ok := c.acceptableFor(r.acceptable) ||
			q.AllConventions ||
			((q.ForceDependent || q.ForceIndependent) && q.NoSearch)
		if !ok {
			continue
		}
		if q.NoSearch && !c.dependencyMatch(dependent) {
			continue
		}

		for _, sys := range r.compat {
			path := r.expand(c.Template, sys)

			if q.ListAll || q.NoSearch {
				out = append(out, path)
				if q.NoSearch {
					return out, nil
				}
			} else if r.exists(path) {
				return []string{path}, nil
			}

			// Templates without %s yield the same path for every
			// sysname; one expansion suffices.
			if !c.atSys {
				break
			}
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: type %q under %s", ErrNoConventionMatch, r.dirType, r.path)
	}
	return out, nil
}

// expand fills one template in for one sysname.
func (r *Resolver) expand(template, sys string) string {
	repl := strings.NewReplacer(
		"%p", r.path,
		"%t", r.dirType,
		"%s", sys,
		"%m", r.hostType,
	)
	return repl.Replace(template)
}

// IsNative reports whether path uses the given sysname (the current
// platform's when sysname is empty) rather than a compatibility one.
func IsNative(path, sysname string) (bool, error) {
	if sysname == "" {
		var err error
		if sysname, err = SysName(); err != nil {
			return false, err
		}
	}
	return strings.Contains(path, sysname), nil
}

// machtype shells out to the machtype command, first from PATH and then
// from its installed location.
func machtype(arg string) (string, bool) {
	for _, bin := range []string{"machtype", "/bin/machtype"} {
		args := []string{}
		if arg != "" {
			args = append(args, arg)
		}
		out, err := exec.Command(bin, args...).Output()
		if err == nil {
			return strings.TrimSpace(string(out)), true
		}
	}
	return "", false
}

// SysName determines the platform sysname from ATHENA_SYS or machtype.
func SysName() (string, error) {
	if sys := os.Getenv("ATHENA_SYS"); sys != "" {
		return sys, nil
	}
	if sys, ok := machtype("-S"); ok {
		return sys, nil
	}
	return "", fmt.Errorf("%w: sysname", ErrUnknownPlatform)
}

// SysCompat determines the sysname compatibility list from
// ATHENA_SYS_COMPAT or machtype.
func SysCompat() ([]string, error) {
	if compat := os.Getenv("ATHENA_SYS_COMPAT"); compat != "" {
		return strings.Split(compat, ":"), nil
	}
	if compat, ok := machtype("-C"); ok {
		return strings.Split(compat, ":"), nil
	}
	return nil, fmt.Errorf("%w: sysname compatibility list", ErrUnknownPlatform)
}

// HostType determines the machine name from HOSTTYPE or machtype.
func HostType() (string, error) {
	if host := os.Getenv("HOSTTYPE"); host != "" {
		return host, nil
	}
	if host, ok := machtype(""); ok {
		return host, nil
	}
	return "", fmt.Errorf("%w: host type", ErrUnknownPlatform)
}
