// Package fsid implements the authentication mapper: it applies
// credential mapping operations (map, unmap, purge) to attached targets,
// honoring flags in strict left-to-right order.
package fsid

import (
	"fmt"

	"github.com/hesiodfs/locker/pkg/locker"
)

// TargetKind says how a step's token selects targets.
type TargetKind int

const (
	// TargetFS selects one filesystem by mount path, export or cell.
	TargetFS TargetKind = iota
	// TargetHost selects an NFS server by hostname.
	TargetHost
	// TargetCell selects an AFS cell by name.
	TargetCell
	// TargetAll selects every attached target plus the extra cells.
	TargetAll
)

// Step is one target reference with the operation mode that was current
// when the flag appeared. The mode is snapshotted at parse time, so one
// invocation can mix modes across targets.
type Step struct {
	Op         locker.AuthOp
	Kind       TargetKind
	Token      string
	BestEffort bool // set for -a steps; partial success counts as success
}

// Invocation is a parsed fsid command line.
type Invocation struct {
	Quiet   bool
	Verbose bool
	Steps   []Step
}

// Parse folds over the raw argument list. Mode flags (-m, -u, -p, -r)
// update the current mode; target flags (-f, -h, -c, -a) emit a step
// carrying the mode in effect at that point. Later mode flags override
// earlier ones only for subsequent targets.
func Parse(args []string) (*Invocation, error) {
	inv := &Invocation{}
	mode := locker.OpMapUser

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "-q", "--quiet":
			inv.Quiet = true
		case "-v", "--verbose":
			inv.Verbose = true

		case "-m", "--map":
			mode = locker.OpMapUser
		case "-u", "--unmap":
			mode = locker.OpUnmapUser
		case "-p", "--purge":
			mode = locker.OpPurgeHost
		case "-r", "--purgeuser":
			mode = locker.OpPurgeUser

		case "-f", "--filsys":
			token, err := operand(args, &i, arg)
			if err != nil {
				return nil, err
			}
			inv.Steps = append(inv.Steps, Step{Op: mode, Kind: TargetFS, Token: token})
		case "-h", "--host":
			token, err := operand(args, &i, arg)
			if err != nil {
				return nil, err
			}
			inv.Steps = append(inv.Steps, Step{Op: mode, Kind: TargetHost, Token: token})
		case "-c", "--cell":
			token, err := operand(args, &i, arg)
			if err != nil {
				return nil, err
			}
			inv.Steps = append(inv.Steps, Step{Op: mode, Kind: TargetCell, Token: token})
		case "-a", "--all":
			inv.Steps = append(inv.Steps, Step{Op: mode, Kind: TargetAll, BestEffort: true})

		default:
			return nil, fmt.Errorf("unknown flag %q", arg)
		}
	}

	return inv, nil
}

func operand(args []string, i *int, flag string) (string, error) {
	*i++
	if *i >= len(args) || args[*i] == "" {
		return "", fmt.Errorf("flag %s requires an argument", flag)
	}
	return args[*i], nil
}
