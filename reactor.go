package ringo

import (
	"sync"
	"syscall"
	"time"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/ringo/pkg/liburing"
	"github.com/brickingsoft/ringo/pkg/registry"
	"github.com/sirupsen/logrus"
)

type reactorState uint8

const (
	running reactorState = iota
	closing
	closed
)

type Stats struct {
	registry.Stats
	Backlog int
}

// Reactor
// couples one ring pair with its operation registry. A reactor is driven by a single
// goroutine, only the abandonment of unreachable handles may come from elsewhere.
type Reactor struct {
	options    Options
	logger     logrus.FieldLogger
	transport  Transport
	registry   *registry.Registry
	driver     *driver
	dispatcher *dispatcher
	state      reactorState
	poisoned   error
	driving    bool
	flushing   bool
	dropped    *dropQueue
}

// New
// builds a reactor over transport, the registry capacity equals the ring capacity.
func New(transport Transport, options ...Option) (*Reactor, error) {
	opts := defaultOptions()
	for _, option := range options {
		if err := option(&opts); err != nil {
			return nil, err
		}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger().WithField(errMetaPkgKey, errMetaPkgVal)
	}
	reg := registry.New(transport.Entries())
	r := &Reactor{
		options:   opts,
		logger:    opts.Logger,
		transport: transport,
		registry:  reg,
		driver:    newDriver(transport, reg),
		dispatcher: &dispatcher{
			registry: reg,
			logger:   opts.Logger,
		},
		dropped: &dropQueue{},
	}
	return r, nil
}

func (r *Reactor) Capacity() int {
	return r.registry.Capacity()
}

func (r *Reactor) Stats() Stats {
	return Stats{
		Stats:   r.registry.Stats(),
		Backlog: r.driver.backlogged(),
	}
}

// Supports
// reports whether the kernel behind the reactor implements kind.
func (r *Reactor) Supports(kind Kind) bool {
	prober, ok := r.transport.(Prober)
	return ok && prober.Supports(uint8(kind))
}

// Err
// returns the protocol violation or kernel failure that poisoned the reactor.
func (r *Reactor) Err() error {
	return r.poisoned
}

func (r *Reactor) acceptable() error {
	switch {
	case r.poisoned != nil:
		return r.poisoned
	case r.state == closing:
		return ErrShutdownInProgress
	case r.state == closed:
		return ErrClosed
	}
	return nil
}

// Submit
// reserves a slot for desc and queues its entry. Nothing reaches the kernel before the
// next Flush or Drive, so many submissions share one kernel transition.
func (r *Reactor) Submit(desc Descriptor) (*Handle, error) {
	if err := r.acceptable(); err != nil {
		return nil, newOpError(errMetaOpSubmit, err)
	}
	r.collectDropped()
	tag, err := r.reserve(desc, false)
	if err != nil {
		return nil, newOpError(errMetaOpSubmit, err)
	}
	entry := desc.Entry
	entry.UserData = tag.UserData()
	if err = r.driver.push(tag, entry); err != nil {
		_ = r.registry.Release(tag)
		return nil, newOpError(errMetaOpSubmit, err)
	}
	return newHandle(r, tag, desc), nil
}

// Link
// submits descs as one chain, each entry starts only after its predecessor succeeded.
// Either every descriptor is queued or none is.
func (r *Reactor) Link(descs ...Descriptor) ([]*Handle, error) {
	if err := r.acceptable(); err != nil {
		return nil, newOpError(errMetaOpLink, err)
	}
	if len(descs) == 0 {
		return nil, nil
	}
	r.collectDropped()
	if r.driver.space() < len(descs) {
		return nil, newOpError(errMetaOpLink, ErrRingFull)
	}
	tags := make([]registry.Tag, 0, len(descs))
	entries := make([]liburing.SubmissionQueueEntry, 0, len(descs))
	for i, desc := range descs {
		tag, err := r.reserve(desc, false)
		if err != nil {
			for _, reserved := range tags {
				_ = r.registry.Release(reserved)
			}
			return nil, newOpError(errMetaOpLink, err)
		}
		entry := desc.Entry
		entry.UserData = tag.UserData()
		if i < len(descs)-1 {
			entry.SetFlags(liburing.IOSQE_IO_LINK)
		}
		tags = append(tags, tag)
		entries = append(entries, entry)
	}
	if err := r.driver.pushChain(tags, entries); err != nil {
		for _, reserved := range tags {
			_ = r.registry.Release(reserved)
		}
		return nil, newOpError(errMetaOpLink, err)
	}
	handles := make([]*Handle, len(descs))
	for i, desc := range descs {
		handles[i] = newHandle(r, tags[i], desc)
	}
	return handles, nil
}

// LinkTimeout
// submits desc bounded by a linked timeout of d.
func (r *Reactor) LinkTimeout(desc Descriptor, d time.Duration) (op *Handle, timeout *Handle, err error) {
	handles, err := r.Link(desc, LinkTimeout(d))
	if err != nil {
		return
	}
	op, timeout = handles[0], handles[1]
	return
}

func (r *Reactor) reserve(desc Descriptor, detached bool) (registry.Tag, error) {
	return r.registry.Reserve(registry.Reservation{
		Kind:     desc.Kind(),
		Resource: desc.Resource,
		Pins:     desc.Pins,
		Detached: detached,
	})
}

// Flush
// hands queued entries to the kernel without waiting for completions.
func (r *Reactor) Flush() (int, error) {
	if r.poisoned != nil {
		return 0, r.poisoned
	}
	if r.state == closed {
		return 0, newOpError(errMetaOpFlush, ErrClosed)
	}
	return r.flush()
}

func (r *Reactor) flush() (int, error) {
	if r.flushing {
		return 0, nil
	}
	r.flushing = true
	n, err := r.driver.flush()
	r.flushing = false
	if err != nil {
		return n, r.poison(newOpError(errMetaOpFlush, err))
	}
	return n, nil
}

func (r *Reactor) enter() error {
	switch {
	case r.poisoned != nil:
		return r.poisoned
	case r.state == closed:
		return newOpError(errMetaOpDrive, ErrClosed)
	case r.driving:
		return newOpError(errMetaOpDrive, ErrReentrantDrive)
	}
	r.driving = true
	return nil
}

func (r *Reactor) leave() {
	r.driving = false
}

// Drive
// flushes queued entries and dispatches completions, waiting up to timeout for at
// least one when none is available. A negative timeout waits without limit, zero
// never blocks. It returns the number of completions dispatched.
func (r *Reactor) Drive(timeout time.Duration) (int, error) {
	if err := r.enter(); err != nil {
		return 0, err
	}
	defer r.leave()
	return r.drive(timeout)
}

// DriveUntil
// drives until predicate holds. It fails with ErrTimeout once timeout elapses and with
// ErrStalled when nothing in flight could ever make predicate true.
func (r *Reactor) DriveUntil(predicate func() bool, timeout time.Duration) error {
	if err := r.enter(); err != nil {
		return err
	}
	defer r.leave()
	return r.driveUntil(predicate, timeout)
}

func (r *Reactor) drive(timeout time.Duration) (int, error) {
	r.collectDropped()
	if _, err := r.flush(); err != nil {
		return 0, err
	}
	n, err := r.reapAndDispatch()
	if err != nil || n > 0 {
		return n, err
	}
	minComplete := uint32(1)
	if timeout == 0 {
		minComplete = 0
	} else if timeout < 0 && r.registry.InFlight() == 0 {
		return 0, newOpError(errMetaOpDrive, ErrStalled)
	}
	if err = r.driver.wait(minComplete, timeout); err != nil {
		return 0, r.poison(newOpError(errMetaOpDrive, err))
	}
	return r.reapAndDispatch()
}

func (r *Reactor) driveUntil(predicate func() bool, timeout time.Duration) error {
	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		if predicate() {
			return nil
		}
		if r.registry.InFlight() == 0 && r.driver.backlogged() == 0 {
			return newOpError(errMetaOpDrive, ErrStalled)
		}
		remaining := time.Duration(-1)
		if timeout >= 0 {
			remaining = max(time.Until(deadline), 0)
		}
		if _, err := r.drive(remaining); err != nil {
			return err
		}
		if predicate() {
			return nil
		}
		if timeout >= 0 && !time.Now().Before(deadline) {
			return ErrTimeout
		}
	}
}

func (r *Reactor) reapAndDispatch() (int, error) {
	total := 0
	for {
		events := r.driver.reap()
		if len(events) == 0 {
			return total, nil
		}
		n, err := r.dispatcher.dispatch(events)
		total += n
		if err != nil {
			return total, r.poison(newOpError(errMetaOpDispatch, err))
		}
		if len(events) < cap(events) {
			return total, nil
		}
	}
}

func (r *Reactor) poison(err error) error {
	if r.poisoned == nil {
		r.poisoned = err
		r.logger.WithError(err).Error("ringo: reactor poisoned")
	}
	return r.poisoned
}

// abandon
// gives up on tag, asking the kernel to cancel it when the slot stays in flight.
func (r *Reactor) abandon(tag registry.Tag, multishot bool) error {
	freed, err := r.registry.Abandon(tag)
	if err != nil {
		return err
	}
	if !freed && (multishot || r.options.AsyncCancel) {
		var entry liburing.SubmissionQueueEntry
		entry.PrepareCancel64(tag.UserData(), 0)
		if err = r.submitDetached(entry); err != nil {
			r.logger.WithFields(logrus.Fields{"tag": tag.String()}).WithError(err).Debug("ringo: async cancel skipped")
		}
	}
	return nil
}

// submitDetached
// queues an entry nobody awaits, its slot is freed by its own completion.
func (r *Reactor) submitDetached(entry liburing.SubmissionQueueEntry) error {
	if r.state == closed || r.poisoned != nil {
		return ErrClosed
	}
	tag, err := r.registry.Reserve(registry.Reservation{Kind: Kind(entry.OpCode), Detached: true})
	if err != nil {
		return err
	}
	entry.UserData = tag.UserData()
	if err = r.driver.push(tag, entry); err != nil {
		_ = r.registry.Release(tag)
		return err
	}
	return nil
}

func (r *Reactor) collectDropped() {
	for _, d := range r.dropped.drain() {
		if !r.registry.Live(d.tag) {
			continue
		}
		if err := r.abandon(d.tag, d.multishot); err == nil {
			r.logger.WithField("tag", d.tag.String()).Debug("ringo: abandoned unreachable handle")
		}
	}
}

// Close
// rejects new submissions, fails entries that never reached the kernel and waits for
// every in-flight operation, abandoned ones included, to complete. When the drain
// times out the ring stays open and Close may be called again. A poisoned reactor
// closes its ring at once and keeps its resources referenced for the process lifetime.
func (r *Reactor) Close() error {
	if r.state == closed {
		return nil
	}
	if r.driving || r.flushing {
		return newOpError(errMetaOpClose, ErrReentrantDrive)
	}
	if r.state == running {
		r.state = closing
		r.collectDropped()
		if withdrawn := r.driver.withdraw(-int32(syscall.ECANCELED)); withdrawn > 0 {
			r.logger.WithField("withdrawn", withdrawn).Debug("ringo: unsubmitted operations failed on close")
		}
		if r.poisoned == nil && r.options.CancelOnClose && r.registry.InFlight() > 0 {
			var entry liburing.SubmissionQueueEntry
			entry.PrepareCancel64(0, liburing.IORING_ASYNC_CANCEL_ANY|liburing.IORING_ASYNC_CANCEL_ALL)
			if err := r.submitDetached(entry); err != nil {
				r.logger.WithError(err).Debug("ringo: cancel on close skipped")
			}
		}
		r.registry.Shutdown()
	}

	if r.poisoned == nil {
		r.driving = true
		err := r.driveUntil(func() bool {
			return r.registry.InFlight() == 0
		}, r.options.ShutdownTimeout)
		r.driving = false
		if err != nil && r.poisoned == nil {
			stats := r.registry.Stats()
			r.logger.WithFields(logrus.Fields{
				"pending":   stats.Pending,
				"abandoned": stats.Abandoned,
			}).Warn("ringo: close timed out with operations in flight")
			return newOpError(errMetaOpClose, errors.From(ErrShutdownIncomplete, errors.WithWrap(err)))
		}
	}

	if r.poisoned != nil {
		quarantine(r.registry)
	}
	r.state = closed
	if err := r.transport.Close(); err != nil {
		return newOpError(errMetaOpClose, err)
	}
	if r.poisoned != nil {
		return newOpError(errMetaOpClose, r.poisoned)
	}
	r.logger.Debug("ringo: closed")
	return nil
}

type droppedHandle struct {
	tag       registry.Tag
	multishot bool
}

// dropQueue
// collects handles released by finalizers until the owning goroutine drives again.
type dropQueue struct {
	mu      sync.Mutex
	handles []droppedHandle
}

func (q *dropQueue) push(tag registry.Tag, multishot bool) {
	q.mu.Lock()
	q.handles = append(q.handles, droppedHandle{tag: tag, multishot: multishot})
	q.mu.Unlock()
}

func (q *dropQueue) drain() []droppedHandle {
	q.mu.Lock()
	handles := q.handles
	q.handles = nil
	q.mu.Unlock()
	return handles
}

var quarantined struct {
	sync.Mutex
	registries []*registry.Registry
}

// quarantine
// keeps the resources of a poisoned reactor reachable, the kernel may still write to them.
func quarantine(reg *registry.Registry) {
	quarantined.Lock()
	quarantined.registries = append(quarantined.registries, reg)
	quarantined.Unlock()
}
