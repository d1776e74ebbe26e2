package liburing

import "strconv"

var opNames = map[uint8]string{
	IORING_OP_NOP:            "nop",
	IORING_OP_READV:          "readv",
	IORING_OP_WRITEV:         "writev",
	IORING_OP_FSYNC:          "fsync",
	IORING_OP_POLL_ADD:       "poll_add",
	IORING_OP_POLL_REMOVE:    "poll_remove",
	IORING_OP_SENDMSG:        "sendmsg",
	IORING_OP_RECVMSG:        "recvmsg",
	IORING_OP_TIMEOUT:        "timeout",
	IORING_OP_TIMEOUT_REMOVE: "timeout_remove",
	IORING_OP_ACCEPT:         "accept",
	IORING_OP_ASYNC_CANCEL:   "async_cancel",
	IORING_OP_LINK_TIMEOUT:   "link_timeout",
	IORING_OP_CONNECT:        "connect",
	IORING_OP_OPENAT:         "openat",
	IORING_OP_CLOSE:          "close",
	IORING_OP_STATX:          "statx",
	IORING_OP_READ:           "read",
	IORING_OP_WRITE:          "write",
	IORING_OP_SEND:           "send",
	IORING_OP_RECV:           "recv",
	IORING_OP_SPLICE:         "splice",
	IORING_OP_SHUTDOWN:       "shutdown",
	IORING_OP_SOCKET:         "socket",
	IORING_OP_FUTEX_WAIT:     "futex_wait",
	IORING_OP_FUTEX_WAKE:     "futex_wake",
}

// OpName
// returns a short name for opcode, used in errors and logs.
func OpName(opcode uint8) string {
	if name, ok := opNames[opcode]; ok {
		return name
	}
	return "op(" + strconv.Itoa(int(opcode)) + ")"
}
