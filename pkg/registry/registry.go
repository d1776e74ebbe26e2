package registry

import (
	"runtime"

	"github.com/brickingsoft/ringo/pkg/liburing"
)

type State uint8

const (
	Free State = iota
	Pending
	Completed
	Abandoned
)

func (s State) String() string {
	switch s {
	case Free:
		return "free"
	case Pending:
		return "pending"
	case Completed:
		return "completed"
	case Abandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Kind
// is the opcode of the operation a slot tracks.
type Kind uint8

// Completion
// is the raw kernel result, the registry never interprets it.
type Completion struct {
	Res   int32
	Flags uint32
}

// More
// reports whether the kernel will post further completions for the same tag.
func (c Completion) More() bool {
	return c.Flags&liburing.IORING_CQE_F_MORE != 0
}

// Reservation
// describes what a slot holds while the kernel may touch it.
type Reservation struct {
	Kind     Kind
	Resource any
	Pins     []any
	// Detached reservations have no awaiting caller, the slot is freed by its final completion.
	Detached bool
}

// Outcome
// is one consumed completion.
type Outcome struct {
	Completion
	Resource any
	Final    bool
}

type Stats struct {
	Capacity  int
	Live      int
	Pending   int
	Completed int
	Abandoned int
}

type slot struct {
	generation uint32
	state      State
	kind       Kind
	submitted  bool
	final      bool
	resource   any
	pinned     bool
	pinner     runtime.Pinner
	results    []Completion
	waker      func()
}

// Registry
// maps tags to operation slots. It is owned by a single goroutine.
type Registry struct {
	slots     []slot
	free      []uint32
	pending   int
	completed int
	abandoned int
	closed    bool
}

func New(capacity uint32) *Registry {
	r := &Registry{
		slots: make([]slot, capacity),
		free:  make([]uint32, capacity),
	}
	for i := range r.slots {
		r.slots[i].generation = 1
		r.free[i] = capacity - 1 - uint32(i)
	}
	return r
}

func (r *Registry) Capacity() int {
	return len(r.slots)
}

// InFlight
// counts slots the kernel may still write to.
func (r *Registry) InFlight() int {
	return r.pending + r.abandoned
}

func (r *Registry) Stats() Stats {
	return Stats{
		Capacity:  len(r.slots),
		Live:      len(r.slots) - len(r.free),
		Pending:   r.pending,
		Completed: r.completed,
		Abandoned: r.abandoned,
	}
}

// Shutdown
// rejects further reservations, live slots keep draining.
func (r *Registry) Shutdown() {
	r.closed = true
}

func (r *Registry) Reserve(reservation Reservation) (Tag, error) {
	if r.closed {
		return 0, newError(errMetaOpReserve, 0, ErrShutdown)
	}
	n := len(r.free)
	if n == 0 {
		return 0, newError(errMetaOpReserve, 0, ErrRegistryFull)
	}
	index := r.free[n-1]
	r.free = r.free[:n-1]

	s := &r.slots[index]
	s.kind = reservation.Kind
	s.resource = reservation.Resource
	for _, pin := range reservation.Pins {
		if pin != nil {
			s.pinner.Pin(pin)
			s.pinned = true
		}
	}
	if reservation.Detached {
		s.state = Abandoned
		r.abandoned++
	} else {
		s.state = Pending
		r.pending++
	}
	return NewTag(index, s.generation), nil
}

func (r *Registry) lookup(tag Tag) (*slot, bool) {
	index := tag.Index()
	if int(index) >= len(r.slots) {
		return nil, false
	}
	s := &r.slots[index]
	if s.state == Free || s.generation != tag.Generation() {
		return nil, false
	}
	return s, true
}

// Live
// reports whether tag still addresses its original occupant.
func (r *Registry) Live(tag Tag) bool {
	_, ok := r.lookup(tag)
	return ok
}

func (r *Registry) State(tag Tag) State {
	if s, ok := r.lookup(tag); ok {
		return s.state
	}
	return Free
}

func (r *Registry) Kind(tag Tag) Kind {
	if s, ok := r.lookup(tag); ok {
		return s.kind
	}
	return 0
}

// MarkSubmitted
// records that the kernel has accepted the entry, from now on only a completion frees the slot.
func (r *Registry) MarkSubmitted(tag Tag) error {
	s, ok := r.lookup(tag)
	if !ok {
		return newError(errMetaOpComplete, tag, ErrStaleTag)
	}
	s.submitted = true
	return nil
}

func (r *Registry) Submitted(tag Tag) bool {
	s, ok := r.lookup(tag)
	return ok && s.submitted
}

// Complete
// routes a kernel completion into its slot. A completion that cannot belong to a
// submitted live slot is a protocol violation.
func (r *Registry) Complete(tag Tag, completion Completion) error {
	s, ok := r.lookup(tag)
	if !ok || !s.submitted || s.final {
		return newError(errMetaOpComplete, tag, ErrProtocolViolation)
	}
	final := !completion.More()
	switch s.state {
	case Abandoned:
		if final {
			r.release(tag.Index())
		}
		return nil
	case Pending:
		r.pending--
		r.completed++
		s.state = Completed
	}
	s.results = append(s.results, completion)
	s.final = final
	if waker := s.waker; waker != nil {
		s.waker = nil
		waker()
	}
	return nil
}

// Fail
// completes a slot whose entry never reached the kernel.
func (r *Registry) Fail(tag Tag, res int32) error {
	s, ok := r.lookup(tag)
	if !ok || s.submitted {
		return newError(errMetaOpComplete, tag, ErrStaleTag)
	}
	s.submitted = true
	return r.Complete(tag, Completion{Res: res})
}

func (r *Registry) Ready(tag Tag) (bool, error) {
	s, ok := r.lookup(tag)
	if !ok || s.state == Abandoned {
		return false, newError(errMetaOpTake, tag, ErrStaleTag)
	}
	return s.state == Completed, nil
}

// SetWaker
// registers fn to run once when the next completion for tag arrives.
// It reports ready without registering when a completion is already waiting.
func (r *Registry) SetWaker(tag Tag, fn func()) (bool, error) {
	s, ok := r.lookup(tag)
	if !ok || s.state == Abandoned {
		return false, newError(errMetaOpTake, tag, ErrStaleTag)
	}
	if s.state == Completed {
		return true, nil
	}
	s.waker = fn
	return false, nil
}

// Take
// consumes the oldest completion of tag. The slot is freed with the final completion,
// after which the tag is stale.
func (r *Registry) Take(tag Tag) (Outcome, error) {
	s, ok := r.lookup(tag)
	if !ok || s.state == Abandoned {
		return Outcome{}, newError(errMetaOpTake, tag, ErrStaleTag)
	}
	if s.state == Pending {
		return Outcome{}, newError(errMetaOpTake, tag, ErrStillPending)
	}
	completion := s.results[0]
	s.results[0] = Completion{}
	s.results = s.results[1:]
	outcome := Outcome{
		Completion: completion,
		Resource:   s.resource,
		Final:      !completion.More(),
	}
	switch {
	case outcome.Final:
		r.release(tag.Index())
	case len(s.results) == 0:
		s.results = nil
		s.state = Pending
		r.completed--
		r.pending++
	}
	return outcome, nil
}

// Abandon
// gives up interest in tag. A slot whose entry was never submitted, or whose final
// completion already arrived, is freed at once and freed reports true. Otherwise the
// slot keeps its resource until the kernel posts the final completion.
func (r *Registry) Abandon(tag Tag) (freed bool, err error) {
	s, ok := r.lookup(tag)
	if !ok {
		return false, newError(errMetaOpAbandon, tag, ErrStaleTag)
	}
	switch s.state {
	case Abandoned:
		return false, nil
	case Pending:
		if !s.submitted {
			r.release(tag.Index())
			return true, nil
		}
		r.pending--
	case Completed:
		if s.final {
			r.release(tag.Index())
			return true, nil
		}
		r.completed--
	}
	s.state = Abandoned
	s.waker = nil
	s.results = nil
	r.abandoned++
	return false, nil
}

// Release
// rolls back a reservation that was never submitted.
func (r *Registry) Release(tag Tag) error {
	s, ok := r.lookup(tag)
	if !ok {
		return newError(errMetaOpAbandon, tag, ErrStaleTag)
	}
	if s.submitted {
		return newError(errMetaOpAbandon, tag, ErrStillPending)
	}
	r.release(tag.Index())
	return nil
}

func (r *Registry) release(index uint32) {
	s := &r.slots[index]
	switch s.state {
	case Pending:
		r.pending--
	case Completed:
		r.completed--
	case Abandoned:
		r.abandoned--
	}
	if s.pinned {
		s.pinner.Unpin()
	}
	generation := s.generation + 1
	if generation == 0 {
		generation = 1
	}
	*s = slot{generation: generation}
	r.free = append(r.free, index)
}

func (k Kind) String() string {
	return liburing.OpName(uint8(k))
}
