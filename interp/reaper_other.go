// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

//go:build !unix

package interp

import "github.com/coreshell/coreshell/env"

// reaper is a no-op on non-unix targets, which have no wait4/process
// groups to poll (spec §4.6 is POSIX-specific).
type reaper struct{}

func newReaper(e *env.Env) *reaper { return &reaper{} }
func (r *reaper) start()           {}
func (r *reaper) stop()            {}
