// Copyright (c) 2025, Andrey Nering <andrey@nering.com.br>
// See LICENSE for licensing information

// Bridges the bundled Go reimplementations of common external utilities
// into the builtin table, so commands like cat/touch/mkdir keep working
// even on a system whose PATH doesn't carry real coreutils binaries.
package interp

import (
	"context"

	"github.com/u-root/u-root/pkg/core"
	"github.com/u-root/u-root/pkg/core/cat"
	"github.com/u-root/u-root/pkg/core/cp"
	"github.com/u-root/u-root/pkg/core/ls"
	"github.com/u-root/u-root/pkg/core/mkdir"
	"github.com/u-root/u-root/pkg/core/mv"
	"github.com/u-root/u-root/pkg/core/rm"
	"github.com/u-root/u-root/pkg/core/touch"
)

var coreutilBuilders = map[string]func() core.Command{
	"cat":   func() core.Command { return cat.New() },
	"cp":    func() core.Command { return cp.New() },
	"ls":    func() core.Command { return ls.New() },
	"mkdir": func() core.Command { return mkdir.New() },
	"mv":    func() core.Command { return mv.New() },
	"rm":    func() core.Command { return rm.New() },
	"touch": func() core.Command { return touch.New() },
}

// WithCoreutils registers the bundled coreutils implementations as
// builtins, ahead of PATH resolution for their names but still behind
// any user-defined function of the same name (spec §4.5.1's
// classification order is unaffected: function, builtin, external).
func WithCoreutils() Option {
	return func(r *Runner) error {
		for name, newCmd := range coreutilBuilders {
			newCmd := newCmd
			r.builtins[name] = func(ctx context.Context, r *Runner, args []string) (int, error) {
				cmd := newCmd()
				cmd.SetIO(r.Stdin, r.Stdout, r.Stderr)
				cmd.SetWorkingDir(r.Dir)
				cmd.SetLookupEnv(func(key string) (string, bool) {
					return r.Env.Lookup(key)
				})
				if err := cmd.RunContext(ctx, args...); err != nil {
					return 1, nil
				}
				return 0, nil
			}
		}
		return nil
	}
}
