package scheduler

import (
	"gitlab.com/tinyland/lab/motionpulse/pkg/anim"
	"gitlab.com/tinyland/lab/motionpulse/pkg/perfmon"
)

// HandleEvent adapts the scheduler to a performance event. It is meant to
// be passed to perfmon.Monitor.Subscribe.
//
//	low-fps        cancel running low-priority requests, budget *= 0.7
//	high-memory    sweep finished primitives, keep the newest queued
//	               requests, release memory
//	fps-recovered  budget /= 0.7 up to the tier ceiling, then drain
func (s *Scheduler) HandleEvent(ev perfmon.Event) {
	switch ev.Type {
	case perfmon.EventLowFPS:
		s.degrade(ev)
	case perfmon.EventHighMemory:
		s.relieveMemory(ev)
	case perfmon.EventRecovered:
		s.restore(ev)
	default:
		s.log.Debug("ignoring performance event", "type", ev.Type)
	}
}

func (s *Scheduler) degrade(ev perfmon.Event) {
	s.mu.Lock()
	var dropped []*entry
	for _, e := range s.running {
		if e.req.Priority == anim.PriorityLow {
			dropped = append(dropped, e)
		}
	}
	for _, e := range dropped {
		e.handle.Cancel()
		s.retire(e)
	}
	prev := s.max
	s.max = shrink(s.max, s.cfg.DegradeFactor)
	next := s.max
	fx := s.drain(nil)
	s.mu.Unlock()

	s.log.Info("reducing animation budget",
		"fps", ev.Current, "from", prev, "to", next, "cancelled", len(dropped))
	for _, e := range dropped {
		s.cancelled(e)
	}
	fx.run()
}

func (s *Scheduler) relieveMemory(ev perfmon.Event) {
	s.mu.Lock()
	var swept []*entry
	for _, e := range s.running {
		if e.handle.Finished() {
			swept = append(swept, e)
		}
	}
	for _, e := range swept {
		s.retire(e)
	}
	dropped := s.queue.truncate(s.cfg.QueueKeep)
	for _, e := range dropped {
		// Already out of the heap; retire only needs to forget it.
		e.state = StateUnknown
		delete(s.entries, e.req.ID)
	}
	fx := s.drain(nil)
	s.mu.Unlock()

	s.log.Info("relieving memory pressure",
		"used", ev.Current, "threshold", ev.Threshold, "swept", len(swept), "dropped", len(dropped))
	for _, e := range swept {
		s.complete(e, false)
	}
	for _, e := range dropped {
		s.cancelled(e)
	}
	s.cfg.ReleaseMemory()
	fx.run()
}

func (s *Scheduler) restore(ev perfmon.Event) {
	s.mu.Lock()
	prev := s.max
	s.max = grow(s.max, s.cfg.DegradeFactor, s.ceiling())
	fx := s.drain(nil)
	next := s.max
	s.mu.Unlock()

	if next != prev {
		s.log.Info("restoring animation budget", "fps", ev.Current, "from", prev, "to", next)
	}
	fx.run()
}
