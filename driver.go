package ringo

import (
	"syscall"
	"time"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/ringo/pkg/liburing"
	"github.com/brickingsoft/ringo/pkg/registry"
	"github.com/eapache/queue"
)

type queuedEntry struct {
	tag   registry.Tag
	entry liburing.SubmissionQueueEntry
}

// driver
// owns the submission backlog and moves entries and completions across the kernel boundary.
type driver struct {
	transport Transport
	registry  *registry.Registry
	backlog   *queue.Queue
	capacity  int
	batch     []liburing.SubmissionQueueEntry
	batchTags []registry.Tag
	failed    []registry.Tag
	events    []liburing.CompletionQueueEvent
}

func newDriver(transport Transport, reg *registry.Registry) *driver {
	capacity := int(transport.Entries())
	return &driver{
		transport: transport,
		registry:  reg,
		backlog:   queue.New(),
		capacity:  capacity,
		batch:     make([]liburing.SubmissionQueueEntry, 0, capacity),
		batchTags: make([]registry.Tag, 0, capacity),
		events:    make([]liburing.CompletionQueueEvent, 2*capacity),
	}
}

func (d *driver) backlogged() int {
	return d.backlog.Length()
}

func (d *driver) space() int {
	return d.capacity - d.backlog.Length()
}

func (d *driver) push(tag registry.Tag, entry liburing.SubmissionQueueEntry) error {
	if d.space() < 1 {
		return ErrRingFull
	}
	d.backlog.Add(queuedEntry{tag: tag, entry: entry})
	return nil
}

// pushChain
// queues entries contiguously so a link chain reaches the kernel in order.
func (d *driver) pushChain(tags []registry.Tag, entries []liburing.SubmissionQueueEntry) error {
	if d.space() < len(entries) {
		return ErrRingFull
	}
	for i := range entries {
		d.backlog.Add(queuedEntry{tag: tags[i], entry: entries[i]})
	}
	return nil
}

// flush
// hands every queued entry whose slot is still live to the kernel in one batch.
// Entries withdrawn before submission are skipped. When a withdrawn entry sat inside
// a link chain, its predecessor becomes the chain tail and its successors fail locally.
// Those failures run wakers, so they happen only once the backlog is consistent again.
func (d *driver) flush() (int, error) {
	n := d.backlog.Length()
	if n == 0 {
		return 0, nil
	}
	d.batch = d.batch[:0]
	d.batchTags = d.batchTags[:0]
	d.failed = d.failed[:0]
	broken := false
	for i := 0; i < n; i++ {
		queued := d.backlog.Get(i).(queuedEntry)
		if !d.registry.Live(queued.tag) {
			if last := len(d.batch) - 1; !broken && last >= 0 && d.batch[last].Linked() {
				d.batch[last].ClearFlags(liburing.IOSQE_IO_LINK | liburing.IOSQE_IO_HARDLINK)
			}
			broken = queued.entry.Linked()
			continue
		}
		if broken {
			broken = queued.entry.Linked()
			d.failed = append(d.failed, queued.tag)
			continue
		}
		d.batch = append(d.batch, queued.entry)
		d.batchTags = append(d.batchTags, queued.tag)
	}

	accepted := 0
	var err error
	if len(d.batch) > 0 {
		accepted, err = d.transport.SubmitBatch(d.batch)
	}
	for _, tag := range d.batchTags[:accepted] {
		_ = d.registry.MarkSubmitted(tag)
	}
	for i := 0; i < n; i++ {
		d.backlog.Remove()
	}
	if accepted < len(d.batch) {
		rest := queue.New()
		for i := accepted; i < len(d.batch); i++ {
			rest.Add(queuedEntry{tag: d.batchTags[i], entry: d.batch[i]})
		}
		for d.backlog.Length() > 0 {
			rest.Add(d.backlog.Remove())
		}
		d.backlog = rest
	}
	for _, tag := range d.failed {
		_ = d.registry.Fail(tag, -int32(syscall.ECANCELED))
	}
	if err != nil {
		return accepted, errors.From(ErrKernel, errors.WithWrap(err))
	}
	return accepted, nil
}

// withdraw
// fails every queued entry locally, nothing reaches the kernel. It must not run
// while flush walks the backlog.
func (d *driver) withdraw(res int32) int {
	withdrawn := 0
	for d.backlog.Length() > 0 {
		queued := d.backlog.Remove().(queuedEntry)
		if d.registry.Fail(queued.tag, res) == nil {
			withdrawn++
		}
	}
	return withdrawn
}

func (d *driver) reap() []liburing.CompletionQueueEvent {
	n := d.transport.ReapAvailable(d.events)
	return d.events[:n]
}

func (d *driver) wait(minComplete uint32, timeout time.Duration) error {
	if err := d.transport.EnterAndWait(minComplete, timeout); err != nil {
		return errors.From(ErrKernel, errors.WithWrap(err))
	}
	return nil
}
