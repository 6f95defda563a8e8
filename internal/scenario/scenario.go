// Package scenario loads JavaScript scenario scripts and executes them
// against the scheduler. A script runs once, up front, on the bootstrap
// thread: it declares semaphores and spawns threads whose behavior is a
// plan of operations (spin, sleep, lock traffic, priority changes).
// The plans are then executed natively on the spawned kernel threads,
// so the JavaScript runtime is never entered from a preemptible
// context.
package scenario

// OpKind identifies one plan operation.
type OpKind string

const (
	OpSpin        OpKind = "spin"         // consume CPU for N ticks
	OpSleep       OpKind = "sleep"        // block on the timer for N ticks
	OpYield       OpKind = "yield"        // give up the CPU voluntarily
	OpAcquire     OpKind = "acquire"      // take a named lock
	OpRelease     OpKind = "release"      // release a named lock
	OpDown        OpKind = "down"         // semaphore down
	OpUp          OpKind = "up"           // semaphore up
	OpSetPriority OpKind = "set_priority" // change own base priority
	OpSetNice     OpKind = "set_nice"     // change own niceness (MLFQS)
	OpLog         OpKind = "log"          // emit a log line
	OpRepeat      OpKind = "repeat"       // run a sub-plan N times
	OpExit        OpKind = "exit"         // terminate the thread early
)

// Op is one step of a thread's plan. Which fields are meaningful
// depends on Kind.
type Op struct {
	Kind  OpKind
	Ticks int64  // spin, sleep
	Name  string // acquire, release, down, up
	Value int    // set_priority, set_nice, repeat count
	Msg   string // log
	Body  []Op   // repeat
}

// ThreadDecl is one spawned thread: a name, a starting priority, and
// the plan its goroutine executes.
type ThreadDecl struct {
	Name     string
	Priority int
	Ops      []Op
}

// Scenario is the parsed form of a script.
type Scenario struct {
	Name       string
	Threads    []ThreadDecl
	Semaphores map[string]int // declared name -> initial value
}

// LockNames returns every lock name referenced anywhere in the
// scenario, in first-reference order. Locks need no declaration; first
// use creates them.
func (s *Scenario) LockNames() []string {
	seen := map[string]bool{}
	var names []string
	var walk func(ops []Op)
	walk = func(ops []Op) {
		for _, op := range ops {
			switch op.Kind {
			case OpAcquire, OpRelease:
				if !seen[op.Name] {
					seen[op.Name] = true
					names = append(names, op.Name)
				}
			case OpRepeat:
				walk(op.Body)
			}
		}
	}
	for _, t := range s.Threads {
		walk(t.Ops)
	}
	return names
}
