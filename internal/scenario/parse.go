package scenario

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dop251/goja"

	"github.com/me/kosched/internal/kernel"
)

// Load reads and parses a scenario script from disk.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	return Parse(filepath.Base(path), string(data))
}

// Parse evaluates a scenario script. The script's global environment
// provides:
//
//	spawn(name, priority, ops)   declare a thread and its plan
//	sema(name, value)            declare a counting semaphore
//	spin(n), sleep(n)            plan steps consuming / waiting n ticks
//	yieldCpu()                   voluntary yield
//	acquire(name), release(name) lock traffic
//	down(name), up(name)         semaphore traffic
//	setPriority(p), setNice(n)   self-adjustment
//	log(msg)                     log line attributed to the thread
//	repeat(n, ops)               run a sub-plan n times
//	exit()                       terminate the thread early
//
// The whole script runs before any thread starts; plans, not
// JavaScript, execute on the spawned threads.
func Parse(name, src string) (*Scenario, error) {
	sc := &Scenario{Name: name, Semaphores: map[string]int{}}
	vm := goja.New()

	mustSet := func(key string, v any) {
		if err := vm.Set(key, v); err != nil {
			panic(fmt.Sprintf("scenario: set %s: %v", key, err))
		}
	}

	mustSet("spawn", func(name string, priority int, ops []Op) {
		if name == "" {
			panic(vm.NewTypeError("spawn: empty thread name"))
		}
		if priority < kernel.PriMin || priority > kernel.PriMax {
			panic(vm.NewTypeError("spawn %s: priority %d out of range [%d, %d]",
				name, priority, kernel.PriMin, kernel.PriMax))
		}
		sc.Threads = append(sc.Threads, ThreadDecl{Name: name, Priority: priority, Ops: ops})
	})
	mustSet("sema", func(name string, value int) {
		if name == "" {
			panic(vm.NewTypeError("sema: empty name"))
		}
		if value < 0 {
			panic(vm.NewTypeError("sema %s: negative initial value %d", name, value))
		}
		sc.Semaphores[name] = value
	})

	mustSet("spin", func(n int64) Op {
		if n <= 0 {
			panic(vm.NewTypeError("spin: ticks must be positive, got %d", n))
		}
		return Op{Kind: OpSpin, Ticks: n}
	})
	mustSet("sleep", func(n int64) Op {
		if n <= 0 {
			panic(vm.NewTypeError("sleep: ticks must be positive, got %d", n))
		}
		return Op{Kind: OpSleep, Ticks: n}
	})
	mustSet("yieldCpu", func() Op { return Op{Kind: OpYield} })
	mustSet("acquire", func(name string) Op { return Op{Kind: OpAcquire, Name: name} })
	mustSet("release", func(name string) Op { return Op{Kind: OpRelease, Name: name} })
	mustSet("down", func(name string) Op { return Op{Kind: OpDown, Name: name} })
	mustSet("up", func(name string) Op { return Op{Kind: OpUp, Name: name} })
	mustSet("setPriority", func(p int) Op {
		if p < kernel.PriMin || p > kernel.PriMax {
			panic(vm.NewTypeError("setPriority: %d out of range", p))
		}
		return Op{Kind: OpSetPriority, Value: p}
	})
	mustSet("setNice", func(n int) Op { return Op{Kind: OpSetNice, Value: n} })
	mustSet("log", func(msg string) Op { return Op{Kind: OpLog, Msg: msg} })
	mustSet("repeat", func(n int, ops []Op) Op {
		if n <= 0 {
			panic(vm.NewTypeError("repeat: count must be positive, got %d", n))
		}
		return Op{Kind: OpRepeat, Value: n, Body: ops}
	})
	mustSet("exit", func() Op { return Op{Kind: OpExit} })

	if _, err := vm.RunString(src); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", name, err)
	}

	if err := sc.validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", name, err)
	}
	return sc, nil
}

// validate checks cross-references the script helpers cannot see:
// semaphore traffic against declarations, duplicate thread names.
func (s *Scenario) validate() error {
	if len(s.Threads) == 0 {
		return fmt.Errorf("no threads spawned")
	}

	names := map[string]bool{}
	for _, t := range s.Threads {
		if names[t.Name] {
			return fmt.Errorf("duplicate thread name %q", t.Name)
		}
		names[t.Name] = true
	}

	var check func(thread string, ops []Op) error
	check = func(thread string, ops []Op) error {
		for _, op := range ops {
			switch op.Kind {
			case OpDown, OpUp:
				if _, ok := s.Semaphores[op.Name]; !ok {
					return fmt.Errorf("thread %s: semaphore %q not declared", thread, op.Name)
				}
			case OpRepeat:
				if err := check(thread, op.Body); err != nil {
					return err
				}
			}
		}
		return nil
	}
	for _, t := range s.Threads {
		if err := check(t.Name, t.Ops); err != nil {
			return err
		}
	}
	return nil
}
