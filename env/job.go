// Copyright (c) 2016, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package env

import "fmt"

// Status is a job's coarse run state (spec §3's Job).
type Status int

const (
	Running Status = iota
	Stopped
	Terminated
	Done
)

func (s Status) String() string {
	switch s {
	case Running:
		return "Running"
	case Stopped:
		return "Stopped"
	case Terminated:
		return "Terminated"
	case Done:
		return "Done"
	}
	return "Unknown"
}

// Job is one pipeline placed into the job table, foreground or
// background. Current/Previous mirror the %+ / %- job-control shorthand.
type Job struct {
	PGID    int
	PIDs    []int
	ID      string // "%N" label
	Status  Status
	Command string

	Current  bool
	Previous bool

	// ExitCode is the exit status of the job's last process (the final
	// stage of a pipeline), populated once that process goes terminal.
	ExitCode int

	// lastPID identifies which process's exit status becomes ExitCode.
	lastPID int

	// procStatus tracks per-PID status within a multi-process job, so the
	// reaper can tell when every member of the group has gone terminal.
	procStatus map[int]Status
}

func newJob(pgid int, pids []int, id int, command string) *Job {
	ps := make(map[int]Status, len(pids))
	for _, pid := range pids {
		ps[pid] = Running
	}
	lastPID := pgid
	if len(pids) > 0 {
		lastPID = pids[len(pids)-1]
	}
	return &Job{
		PGID:       pgid,
		PIDs:       append([]int(nil), pids...),
		ID:         fmt.Sprintf("%%%d", id),
		Status:     Running,
		Command:    command,
		lastPID:    lastPID,
		procStatus: ps,
	}
}

// done reports whether every process in the job has reached a terminal
// status (Terminated or Done).
func (j *Job) done() bool {
	for _, st := range j.procStatus {
		if st != Terminated && st != Done {
			return false
		}
	}
	return true
}

// Jobs is the shell's job table: jobs indexed by process-group id,
// preserving insertion order and a last-added pointer used to resolve
// `%%`, `%-`, and the default fg/bg target (spec §3).
type Jobs struct {
	byPGID map[int]*Job
	order  []int
	nextID int

	current  int // pgid of the %+ job, or 0
	previous int // pgid of the %- job, or 0
}

// NewJobs returns an empty job table.
func NewJobs() *Jobs {
	return &Jobs{byPGID: make(map[int]*Job)}
}

// Add registers a freshly spawned pipeline as a new job and returns it.
func (js *Jobs) Add(pgid int, pids []int, command string) *Job {
	js.nextID++
	j := newJob(pgid, pids, js.nextID, command)
	js.byPGID[pgid] = j
	js.order = append(js.order, pgid)
	js.setCurrent(pgid)
	return j
}

// setCurrent promotes pgid to %+, demoting the old %+ to %-.
func (js *Jobs) setCurrent(pgid int) {
	if js.current == pgid {
		return
	}
	if prev, ok := js.byPGID[js.previous]; ok {
		prev.Previous = false
	}
	if cur, ok := js.byPGID[js.current]; ok {
		cur.Current = false
		cur.Previous = true
	}
	js.previous = js.current
	js.current = pgid
	if j, ok := js.byPGID[pgid]; ok {
		j.Current = true
		j.Previous = false
	}
}

// Get looks up a job by its process-group id.
func (js *Jobs) Get(pgid int) (*Job, bool) {
	j, ok := js.byPGID[pgid]
	return j, ok
}

// Last returns the most recently added job (the %+ job), if any.
func (js *Jobs) Last() (*Job, bool) {
	j, ok := js.byPGID[js.current]
	return j, ok
}

// PreviousJob returns the %- job, if any.
func (js *Jobs) PreviousJob() (*Job, bool) {
	j, ok := js.byPGID[js.previous]
	return j, ok
}

// All returns every job in insertion order.
func (js *Jobs) All() []*Job {
	out := make([]*Job, 0, len(js.order))
	for _, pgid := range js.order {
		if j, ok := js.byPGID[pgid]; ok {
			out = append(out, j)
		}
	}
	return out
}

// UpdateProcStatus records the status of one PID within its job, and
// reports whether the whole job is now done and eligible for removal.
func (js *Jobs) UpdateProcStatus(pid int, status Status) (job *Job, nowDone bool) {
	for _, j := range js.byPGID {
		if _, ok := j.procStatus[pid]; !ok {
			continue
		}
		j.procStatus[pid] = status
		if status == Stopped {
			j.Status = Stopped
		} else if j.done() {
			j.Status = Done
		} else if status == Running {
			j.Status = Running
		}
		return j, j.Status == Done
	}
	return nil, false
}

// UpdateProcExit records a terminated process's exit code, updating the
// job's ExitCode when pid was the final stage of its pipeline (the one
// whose status becomes the job's own, per spec §4.5.2).
func (js *Jobs) UpdateProcExit(pid, code int) {
	for _, j := range js.byPGID {
		if pid == j.lastPID {
			j.ExitCode = code
			return
		}
	}
}

// Remove drops a job from the table once it has been reaped and
// reported.
func (js *Jobs) Remove(pgid int) {
	delete(js.byPGID, pgid)
	for i, p := range js.order {
		if p == pgid {
			js.order = append(js.order[:i], js.order[i+1:]...)
			break
		}
	}
	if js.current == pgid || js.previous == pgid {
		js.current, js.previous = 0, 0
		for _, p := range js.order {
			js.setCurrent(p)
		}
	}
}
