package wire

import "strconv"

// Op identifies a request/response pair on the wire. Values are the
// authoritative on-the-wire codes; unknown or reserved codes are rejected by
// the decoder rather than silently accepted.
type Op int32

// The closed request-tag space. Gaps are reserved values that never appear
// on the wire (see Reserved below) or duplicates of another tag.
const (
	OpInvalid               Op = 0
	OpCreate                Op = 1
	OpRemove                Op = 2
	OpIO                     Op = 3
	OpGetAttr               Op = 4
	OpSetAttr               Op = 5
	OpLookupPath            Op = 6
	OpCrDirEnt              Op = 7
	OpRmDirEnt              Op = 8
	OpChDirEnt              Op = 9
	OpTruncate              Op = 10
	OpMkdir                 Op = 11
	OpReaddir               Op = 12
	OpGetConfig             Op = 13
	OpWriteCompletion       Op = 14
	OpFlush                 Op = 15
	OpMgmtSetParam          Op = 16
	OpMgmtNoop              Op = 17
	OpStatfs                Op = 18
	OpPerfUpdate            Op = 19 // reserved, non-protocol
	OpMgmtPerfMon           Op = 20
	OpMgmtIterateHandles    Op = 21
	OpMgmtDspaceInfoList    Op = 22
	OpMgmtEventMon          Op = 23
	OpMgmtRemoveObject      Op = 24
	OpMgmtRemoveDirent      Op = 25
	OpMgmtGetDirdataHandle  Op = 26
	OpJobTimer              Op = 27 // reserved, non-protocol
	OpProtoError            Op = 28
	OpGetEattr              Op = 29
	OpSetEattr              Op = 30
	OpDelEattr              Op = 31
	OpListEattr             Op = 32
	OpSmallIO               Op = 33
	OpListAttr              Op = 34
	OpBatchCreate           Op = 35
	OpBatchRemove           Op = 36
	OpPrecreatePoolRefiller Op = 37 // reserved, non-protocol
	OpUnstuff               Op = 38
	OpMirror                Op = 39
	OpImmCopies             Op = 40
	OpTreeRemove            Op = 41
	OpTreeGetFileSize       Op = 42
	OpMgmtGetUID            Op = 43
	OpTreeSetattr           Op = 44
	OpMgmtGetDirent         Op = 45
	OpMgmtSplitDirent       Op = 46
	OpAtomicEattr           Op = 47
	OpGetConfigDup          Op = 48 // reserved, distinct from OpGetConfig
	OpTreeGetattr           Op = 49
	OpMgmtGetUserCert       Op = 50
	OpMgmtGetUserCertKeyreq Op = 51
)

// reserved holds the request tags that appear in the enumeration but are
// marked non-protocol or duplicate; the wire decoder rejects them even
// though callers may use them internally (e.g. to drive the job engine's
// timer or precreate-pool machinery, which are not requests at all).
var reserved = map[Op]bool{
	OpPerfUpdate:            true,
	OpJobTimer:              true,
	OpPrecreatePoolRefiller: true,
	OpGetConfigDup:          true,
}

// IsReserved reports whether op is a reserved, non-wire-legal tag.
func IsReserved(op Op) bool {
	return reserved[op]
}

// names maps the tags this package implements concrete payloads for, plus
// INVALID and IO (which have none), to a human-readable name, used in log
// fields and error messages. Ops outside this set are recognised (for size-limit and reservation checks) but carry
// no implemented request/response body: the filesystem operation semantics
// they represent are out of this runtime's scope.
var names = map[Op]string{
	OpInvalid:    "INVALID",
	OpCreate:     "CREATE",
	OpRemove:     "REMOVE",
	OpIO:         "IO",
	OpGetAttr:    "GETATTR",
	OpLookupPath: "LOOKUP_PATH",
}

func (op Op) String() string {
	if n, ok := names[op]; ok {
		return n
	}
	return "OP(" + strconv.Itoa(int(op)) + ")"
}

// Direction distinguishes a request buffer from a response buffer; both
// share the same generic header and per-op size table but are encoded and
// decoded by distinct functions.
type Direction int

const (
	DirRequest Direction = iota
	DirResponse
)
