package liburing

const (
	IORING_CQE_F_BUFFER uint32 = 1 << iota
	IORING_CQE_F_MORE
	IORING_CQE_F_SOCK_NONEMPTY
	IORING_CQE_F_NOTIF
)

const IORING_CQE_BUFFER_SHIFT = 16

// CompletionQueueEvent
// is the 16 byte io_uring_cqe.
type CompletionQueueEvent struct {
	UserData uint64
	Res      int32
	Flags    uint32
}

func (c CompletionQueueEvent) More() bool {
	return c.Flags&IORING_CQE_F_MORE != 0
}
