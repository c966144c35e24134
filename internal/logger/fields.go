package logger

import (
	"log/slog"
)

// Standard field keys for structured logging across the engine's
// enqueue/cancel/LRU/replay pipelines. Use these consistently so log
// aggregation can query across pkg/ldlm's operations.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Namespace / Resource / Handle
	// ========================================================================
	KeyNamespace    = "namespace"     // lock namespace name
	KeyResource     = "resource"      // resource name a lock targets
	KeyHandle       = "handle"        // local lock handle cookie
	KeyRemoteHandle = "remote_handle" // server-assigned handle cookie
	KeyGeneration   = "generation"    // handle generation
	KeyImportGen    = "import_gen"    // connection generation

	// ========================================================================
	// Lock Mode / Type / Flags
	// ========================================================================
	KeyReqMode     = "req_mode"     // requested lock mode: PR, PW, CR, CW
	KeyGrantedMode = "granted_mode" // mode the server actually granted
	KeyLockType    = "lock_type"    // plain, extent, flock
	KeyFlags       = "flags"        // enqueue/cancel flag bitset

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyOperation  = "operation"   // "enqueue", "cancel", "lru", "replay", ...
	KeyStatus     = "status"      // StatusCode observed for the operation
	KeyStatusMsg  = "status_msg"  // human-readable status detail
	KeyDurationMs = "duration_ms" // operation duration in milliseconds
	KeyError      = "error"       // error message
	KeyErrorCode  = "error_code"  // numeric error code

	// ========================================================================
	// Cancel Pipeline
	// ========================================================================
	KeyAttempt    = "attempt"     // cancel RPC retry attempt number
	KeyMaxRetries = "max_retries" // maximum retry attempts
	KeyBatchSize  = "batch_size"  // number of handles in a cancel batch

	// ========================================================================
	// LRU Eviction Engine
	// ========================================================================
	KeyPolicy  = "policy"  // selected eviction policy name
	KeyEvicted = "evicted" // number of locks evicted
	KeyUnused  = "unused"  // current length of the unused LRU list

	// ========================================================================
	// Replay Engine
	// ========================================================================
	KeyReplayed = "replayed" // number of locks successfully replayed
	KeySkipped  = "skipped"  // number of locks skipped during replay

	// ========================================================================
	// Server Pool Feedback (SLV/LVF)
	// ========================================================================
	KeySLV   = "slv"   // server-lock-volume feedback value
	KeyLimit = "limit" // server-pool limit feedback value
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// TraceID returns a slog.Attr for the OpenTelemetry trace ID.
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for the OpenTelemetry span ID.
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Namespace returns a slog.Attr for the lock namespace name.
func Namespace(name string) slog.Attr {
	return slog.String(KeyNamespace, name)
}

// Resource returns a slog.Attr for the resource name a lock targets.
func Resource(name string) slog.Attr {
	return slog.String(KeyResource, name)
}

// Handle returns a slog.Attr for a local lock handle cookie.
func Handle(cookie uint64) slog.Attr {
	return slog.Uint64(KeyHandle, cookie)
}

// RemoteHandle returns a slog.Attr for a server-assigned handle cookie.
func RemoteHandle(cookie uint64) slog.Attr {
	return slog.Uint64(KeyRemoteHandle, cookie)
}

// Generation returns a slog.Attr for a handle's generation.
func Generation(gen uint64) slog.Attr {
	return slog.Uint64(KeyGeneration, gen)
}

// ImportGen returns a slog.Attr for the connection generation an
// operation was issued under.
func ImportGen(gen uint64) slog.Attr {
	return slog.Uint64(KeyImportGen, gen)
}

// ReqMode returns a slog.Attr for the requested lock mode.
func ReqMode(mode string) slog.Attr {
	return slog.String(KeyReqMode, mode)
}

// GrantedMode returns a slog.Attr for the mode the server actually
// granted.
func GrantedMode(mode string) slog.Attr {
	return slog.String(KeyGrantedMode, mode)
}

// LockTypeAttr returns a slog.Attr for the lock type (plain/extent/flock).
func LockTypeAttr(t string) slog.Attr {
	return slog.String(KeyLockType, t)
}

// Flags returns a slog.Attr for an enqueue/cancel flag bitset.
func Flags(f uint32) slog.Attr {
	return slog.Uint64(KeyFlags, uint64(f))
}

// Operation returns a slog.Attr for the pipeline an operation belongs
// to: "enqueue", "cancel", "lru", "replay", ...
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// StatusCode returns a slog.Attr for an observed StatusCode.
func StatusCode(code int) slog.Attr {
	return slog.Int(KeyStatus, code)
}

// StatusMsg returns a slog.Attr for a human-readable status detail.
func StatusMsg(msg string) slog.Attr {
	return slog.String(KeyStatusMsg, msg)
}

// DurationMs returns a slog.Attr for an operation's duration in
// milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error, or an empty Attr for a nil
// error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a numeric error code.
func ErrorCode(code int) slog.Attr {
	return slog.Int(KeyErrorCode, code)
}

// Attempt returns a slog.Attr for a cancel RPC retry attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// MaxRetries returns a slog.Attr for the maximum retry attempts.
func MaxRetries(n int) slog.Attr {
	return slog.Int(KeyMaxRetries, n)
}

// BatchSize returns a slog.Attr for the number of handles in a cancel
// batch.
func BatchSize(n int) slog.Attr {
	return slog.Int(KeyBatchSize, n)
}

// Policy returns a slog.Attr for the selected LRU eviction policy name.
func Policy(name string) slog.Attr {
	return slog.String(KeyPolicy, name)
}

// Evicted returns a slog.Attr for the number of locks evicted.
func Evicted(n int) slog.Attr {
	return slog.Int(KeyEvicted, n)
}

// Unused returns a slog.Attr for the current length of the unused LRU
// list.
func Unused(n int) slog.Attr {
	return slog.Int(KeyUnused, n)
}

// Replayed returns a slog.Attr for the number of locks successfully
// replayed.
func Replayed(n int) slog.Attr {
	return slog.Int(KeyReplayed, n)
}

// Skipped returns a slog.Attr for the number of locks skipped during
// replay.
func Skipped(n int) slog.Attr {
	return slog.Int(KeySkipped, n)
}

// SLV returns a slog.Attr for the server-lock-volume feedback value.
func SLV(v uint64) slog.Attr {
	return slog.Uint64(KeySLV, v)
}

// Limit returns a slog.Attr for the server-pool limit feedback value.
func Limit(v uint32) slog.Attr {
	return slog.Uint64(KeyLimit, uint64(v))
}
