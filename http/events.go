package http

import "github.com/wesleyorama2/volley/transport"

// EventKind identifies a lifecycle notification.
type EventKind int

const (
	// EventOpen is emitted for every transport call, including each
	// redirect hop.
	EventOpen EventKind = iota
	// EventRedirect carries a redirect response before it is followed or
	// rejected.
	EventRedirect
	// EventResponse carries the final response once it starts arriving.
	EventResponse
	// EventProgress carries upload or download progress.
	EventProgress
	// EventAbort is emitted once when the request is aborted, by the
	// caller or by its timeout.
	EventAbort
)

var eventNames = map[EventKind]string{
	EventOpen:     "open",
	EventRedirect: "redirect",
	EventResponse: "response",
	EventProgress: "progress",
	EventAbort:    "abort",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is a lifecycle notification. Response is set for EventRedirect and
// EventResponse; Progress is set for EventProgress.
type Event struct {
	Kind     EventKind
	Method   string
	URL      string
	Response *Response
	Progress transport.Progress
}

// emit queues ev and, unless another call is already draining the queue,
// delivers queued events to the listeners in order. Listeners may call back
// into the request, including Abort, without deadlocking.
func (r *Request) emit(ev Event) {
	r.eventsMu.Lock()
	r.queue = append(r.queue, ev)
	if r.dispatching {
		r.eventsMu.Unlock()
		return
	}
	r.dispatching = true
	for len(r.queue) > 0 {
		next := r.queue[0]
		r.queue = r.queue[1:]
		listeners := r.listeners
		r.eventsMu.Unlock()
		for _, fn := range listeners {
			fn(next)
		}
		r.eventsMu.Lock()
	}
	r.dispatching = false
	r.eventsMu.Unlock()
}

// On registers fn for every lifecycle event of the request. Listeners run
// synchronously, one event at a time, in emission order.
func (r *Request) On(fn func(Event)) *Request {
	r.eventsMu.Lock()
	r.listeners = append(r.listeners, fn)
	r.eventsMu.Unlock()
	return r
}
