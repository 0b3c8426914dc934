package fluidsim

import (
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/annel0/mmo-game/internal/grid"
	"github.com/annel0/mmo-game/internal/logging"
)

// memoryPressureThreshold is the RAM utilization above which the
// scheduler reports ResourceExhausted rather than starting a tick's
// jobs, matching spec §7's "retries at WARN" policy.
const memoryPressureThreshold = 90.0

// Scheduler runs one worker-pool task per (block, step) each tick,
// barrier-synchronized between steps, followed by one maintenance task
// per block (spec §4.5). It never blocks its caller — Engine drives it
// from a background goroutine per tick.
type Scheduler struct {
	Grid   *grid.Grid
	Blocks []*Block

	jobs    chan func()
	wg      sync.WaitGroup
	workers int
}

// NewScheduler starts a worker pool of the given size (0 = auto-sized
// from the host's logical CPU count, via gopsutil, falling back to
// runtime.NumCPU() if the host doesn't expose one) backing all
// block/step tasks for the grid's blocks.
func NewScheduler(g *grid.Grid, blocks []*Block, workers int) *Scheduler {
	if workers <= 0 {
		workers = autoWorkerCount()
	}
	s := &Scheduler{
		Grid:    g,
		Blocks:  blocks,
		jobs:    make(chan func(), workers*4),
		workers: workers,
	}
	for i := 0; i < workers; i++ {
		go s.worker()
	}
	return s
}

// autoWorkerCount asks gopsutil for the host's logical CPU count,
// falling back to runtime.NumCPU() when that fails (containers with a
// restricted /proc, unsupported platform, etc.).
func autoWorkerCount() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// ResourceExhausted reports whether the host is under enough memory
// pressure that a tick's job data should not be allocated this round
// (spec §7's ResourceExhausted recovery policy: skip and retry, not
// crash). A gopsutil failure is treated as "not exhausted" — the
// scheduler was already sized without needing the host stats to be
// perfectly available.
func (s *Scheduler) ResourceExhausted() bool {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return false
	}
	return vm.UsedPercent >= memoryPressureThreshold
}

func (s *Scheduler) worker() {
	for job := range s.jobs {
		job()
		s.wg.Done()
	}
}

// runBarrier dispatches one task per element of tasks and blocks this
// (background, non-caller) goroutine until every one has completed —
// the only synchronization point inside a tick.
func (s *Scheduler) runBarrier(tasks []func()) {
	s.wg.Add(len(tasks))
	for _, t := range tasks {
		s.jobs <- t
	}
	s.wg.Wait()
}

// rebindNeighbourViews points every block's per-direction neighbour
// view at whichever buffer that neighbour is currently reading (its
// static buffer if it has no active job this tick — the same buffer
// either way, since a block's ReadBuffer is always the up to date
// snapshot outside of an in-flight step).
func (s *Scheduler) rebindNeighbourViews() {
	for _, b := range s.Blocks {
		for _, d := range grid.All {
			nb := b.Neighbours[d]
			if nb == nil {
				b.SetNeighbourView(int(d), nil)
				continue
			}
			b.SetNeighbourView(int(d), nb.ReadBuffer())
		}
	}
}

// RunTickSteps runs the plan already frozen on each active block
// through the three ordered kernel steps, with a barrier between each,
// then runs the per-block maintenance pass. Callers own draining the
// component manager's intake set afterwards.
func (s *Scheduler) RunTickSteps(active []*Block) {
	steps := []Step{StepUp, StepDown, StepSideways}
	for _, step := range steps {
		s.rebindNeighbourViews()
		tasks := make([]func(), 0, len(active))
		for _, b := range active {
			b := b
			st := step
			tasks = append(tasks, func() {
				RunStep(s.Grid, b, st)
				b.SwapBuffers()
			})
		}
		s.runBarrier(tasks)
	}

	maintTasks := make([]func(), 0, len(active))
	for _, b := range active {
		b := b
		maintTasks = append(maintTasks, func() {
			b.ApplyMaintenance()
		})
	}
	s.runBarrier(maintTasks)
}

// ActiveBlocks plans every block with pending unsettled chunks and
// returns those with nonempty plans. Planning has no failure path;
// skipping a tick under memory pressure is decided before this call,
// by the caller checking ResourceExhausted.
func (s *Scheduler) ActiveBlocks() []*Block {
	active := make([]*Block, 0, len(s.Blocks))
	for _, b := range s.Blocks {
		hadWork := b.HasWork()
		b.Plan()
		b.Active = len(b.ChunksToSimulate) > 0
		if b.Active {
			active = append(active, b)
		} else if hadWork {
			logging.LogDebug("fluidsim: block %d drained, retiring job", b.ID)
		}
	}
	return active
}
