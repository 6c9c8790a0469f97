package plugin

import "context"

type msgKind int

const (
	msgEnable msgKind = iota
	msgDisable
	msgConfigChanged
)

// supervisorMsg is one entry on the bounded capacity-10 queue the
// supervisor drains (spec §5 "one supervisor worker... from a bounded
// queue, capacity 10").
type supervisorMsg struct {
	kind  msgKind
	name  string
	ctx   context.Context
	key   string
	value string
}

// superviseLoop is the single supervisor goroutine handling
// enable/disable/config-change requests serially, so lifecycle
// transitions for different plugins never race each other.
func (rt *Runtime) superviseLoop() {
	for {
		select {
		case <-rt.quit:
			return
		case msg := <-rt.queue:
			rt.handleSupervisorMsg(msg)
		}
	}
}

func (rt *Runtime) handleSupervisorMsg(msg supervisorMsg) {
	rec, err := rt.lookup(msg.name)
	if err != nil {
		return
	}

	switch msg.kind {
	case msgEnable:
		rt.doEnable(msg.ctx, rec)
	case msgDisable:
		rt.doDisable(msg.ctx, rec)
	case msgConfigChanged:
		host := rt.hostFor(rec)
		_ = rec.plugin.ConfigChanged(msg.ctx, host, msg.key, msg.value)
	}
}

func (rt *Runtime) hostFor(rec *record) HostAPI {
	return newHostContext(rec, rt.store, rt.bus, rt.allowlist, rt.logf)
}

func (rt *Runtime) logf(level LogLevel, tag, format string, args ...any) {
	if rt.logger != nil {
		rt.logger.Logf(level, tag, format, args...)
	}
}

func (rt *Runtime) doEnable(ctx context.Context, rec *record) {
	switch rec.getState() {
	case Loaded:
	case Error:
		rec.statsMu.Lock()
		rec.stats.ErrorCount = 0
		rec.statsMu.Unlock()
	default:
		return
	}
	host := rt.hostFor(rec)

	if err := rec.plugin.Init(ctx, host); err != nil {
		rec.setState(Error)
		return
	}
	rec.setState(Initialized)

	if err := rec.plugin.Start(ctx, host); err != nil {
		rec.setState(Error)
		return
	}
	rec.setState(Running)

	workerCtx, cancel := context.WithCancel(context.Background())
	rec.cancel = cancel
	rec.done = make(chan struct{})
	go rt.runWorker(workerCtx, rec)
}

func (rt *Runtime) doDisable(ctx context.Context, rec *record) {
	if rec.getState() != Running && rec.getState() != Suspended {
		return
	}
	if rec.cancel != nil {
		rec.cancel()
	}
	if rec.done != nil {
		<-rec.done
	}

	host := rt.hostFor(rec)
	_ = rec.plugin.Stop(ctx, host)
	rec.setState(Loaded)

	if !rec.cfg.Persistent {
		_ = rec.plugin.Cleanup(ctx, host)
		rec.setState(Unloaded)
	}
}
