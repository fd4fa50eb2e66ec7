package dl

// Reporter publishes downloader progress events. Implementations must not
// block: the downloader fires events at unit granularity and carries on.
type Reporter interface {
	Report(Event)
}

// ChanReporter writes events to a channel, dropping on a full buffer rather
// than stalling the run.
type ChanReporter struct {
	ch chan<- Event
}

func NewChanReporter(ch chan<- Event) *ChanReporter { return &ChanReporter{ch: ch} }

func (r *ChanReporter) Report(e Event) {
	if r == nil {
		return
	}
	select {
	case r.ch <- e:
	default:
	}
}

// FuncReporter adapts a callback to the Reporter interface.
type FuncReporter func(Event)

func (f FuncReporter) Report(e Event) {
	if f != nil {
		f(e)
	}
}
