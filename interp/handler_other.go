// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

//go:build !unix

package interp

import "syscall"

// Job control is a POSIX-specific concept (spec §5, §6); on non-unix
// targets the shell still runs commands, it simply never takes or
// yields controlling-terminal ownership.
func isTerminal(fd int) bool { return false }

func setForegroundGroup(termFD, pgid int) error { return nil }

func joinProcessGroup(pid, pgid int) {}

func sysProcAttrForGroup(pgid int) *syscall.SysProcAttr { return nil }

func killProcessGroup(pgid int, sig syscall.Signal) error { return nil }

func getpgrp() int { return 0 }

const (
	sigTerm = syscall.Signal(15)
	sigCont = syscall.Signal(18)
)

func killPID(pid int, sig syscall.Signal) error { return nil }

func waitGroup(pgid int, pids []int, lastPID int) (status int, stopped bool) { return 0, false }
