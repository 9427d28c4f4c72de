package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging across the job engine, request
// scheduler, state-machine driver and codec. Use these keys consistently so
// log lines can be aggregated and queried across components.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // correlation id for a client-visible operation
	KeySpanID  = "span_id"  // correlation id for one state-machine step

	// ========================================================================
	// Job engine
	// ========================================================================
	KeyJobID      = "job_id"      // job descriptor id
	KeyJobKind    = "job_kind"    // network, storage, flow, timer, null, precreate, sched
	KeyContextID  = "context_id"  // job-engine context slot
	KeyUserTag    = "user_tag"    // caller-supplied tag on a job
	KeyTimeoutSec = "timeout_sec" // deadline associated with a posted job

	// ========================================================================
	// Request scheduler
	// ========================================================================
	KeyHandle    = "handle"     // target object handle (hex)
	KeyFSID      = "fs_id"      // filesystem id
	KeySchedID   = "sched_id"   // scheduler ticket id
	KeySchedMode = "sched_mode" // normal, admin-pending, admin

	// ========================================================================
	// State machine / message pair
	// ========================================================================
	KeyOpCode    = "op_code"    // operation code identifying the state machine
	KeyOpID      = "op_id"      // SMCB operation id
	KeyState     = "state"      // current state name
	KeyPeer      = "peer"       // target server address for a message pair
	KeyRetry     = "retry"      // retry attempt number on a message pair
	KeyRetryWait = "retry_wait" // retry delay

	// ========================================================================
	// Codec
	// ========================================================================
	KeyReqOp     = "req_op"    // request tag
	KeyDirection = "direction" // request or response
	KeyEncSize   = "enc_size"  // encoded buffer length
	KeyRelease   = "release"   // protocol release number
	KeyEncoding  = "encoding"  // wire encoding tag

	// ========================================================================
	// Generic
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyErrorCode  = "error_code"
)

// TraceID returns a trace_id attribute.
func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }

// SpanID returns a span_id attribute.
func SpanID(id string) slog.Attr { return slog.String(KeySpanID, id) }

// JobID returns a job_id attribute.
func JobID(id uint64) slog.Attr { return slog.Uint64(KeyJobID, id) }

// JobKind returns a job_kind attribute.
func JobKind(kind string) slog.Attr { return slog.String(KeyJobKind, kind) }

// ContextID returns a context_id attribute.
func ContextID(id int) slog.Attr { return slog.Int(KeyContextID, id) }

// Handle returns a handle attribute, formatted as hex.
func Handle(h fmt.Stringer) slog.Attr { return slog.String(KeyHandle, h.String()) }

// HandleHex returns a handle attribute already formatted as hex.
func HandleHex(h string) slog.Attr { return slog.String(KeyHandle, h) }

// FSID returns an fs_id attribute.
func FSID(id uint32) slog.Attr { return slog.Uint64(KeyFSID, uint64(id)) }

// SchedID returns a sched_id attribute.
func SchedID(id uint64) slog.Attr { return slog.Uint64(KeySchedID, id) }

// SchedMode returns a sched_mode attribute.
func SchedMode(mode string) slog.Attr { return slog.String(KeySchedMode, mode) }

// OpCode returns an op_code attribute.
func OpCode(code int) slog.Attr { return slog.Int(KeyOpCode, code) }

// OpID returns an op_id attribute.
func OpID(id uint64) slog.Attr { return slog.Uint64(KeyOpID, id) }

// State returns a state attribute.
func State(name string) slog.Attr { return slog.String(KeyState, name) }

// Peer returns a peer attribute.
func Peer(addr string) slog.Attr { return slog.String(KeyPeer, addr) }

// Retry returns a retry attribute.
func Retry(n int) slog.Attr { return slog.Int(KeyRetry, n) }

// ReqOp returns a req_op attribute.
func ReqOp(op int) slog.Attr { return slog.Int(KeyReqOp, op) }

// EncSize returns an enc_size attribute.
func EncSize(n int) slog.Attr { return slog.Int(KeyEncSize, n) }

// DurationMs returns a duration_ms attribute.
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Err returns an error attribute, or the zero Attr if err is nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns an error_code attribute.
func ErrorCode(code int) slog.Attr { return slog.Int(KeyErrorCode, code) }
