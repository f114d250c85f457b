package apdu

import "fmt"

// SWOK is the status word terminating every successful response.
const SWOK uint16 = 0x9000

// Kind classifies a device status word for programmatic handling.
type Kind int

const (
	// KindUnknown covers status words absent from the table.
	KindUnknown Kind = iota

	// KindRejected means the user declined the operation on-device.
	KindRejected

	// KindData means the command carried malformed or unacceptable
	// data: bad script, bad path, wrong sighash type, oversized field.
	KindData

	// KindState means the device or app state does not allow the
	// command, e.g. a signature requested before parsing finished.
	KindState

	// KindUnsupported means the class or instruction is not known to
	// the running app.
	KindUnsupported

	// KindSecurity means a security condition was not satisfied, e.g.
	// the device is locked.
	KindSecurity

	// KindInternal means the firmware failed internally.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindRejected:
		return "rejected"
	case KindData:
		return "data"
	case KindState:
		return "state"
	case KindUnsupported:
		return "unsupported"
	case KindSecurity:
		return "security"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// StatusError is a non-success status word mapped to its documented kind
// and message. The raw code is always preserved so callers can match on
// firmware-specific conditions.
type StatusError struct {
	Code    uint16
	Kind    Kind
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("device status %#04x (%s): %s", e.Code, e.Kind, e.Message)
}

type statusEntry struct {
	kind    Kind
	message string
}

// statusTable is the fixed status-word contract of the HNS app v1.x.
// Codes below 0x7000 are the ISO 7816 / Ledger OS words; the 0x70xx block
// is app specific.
var statusTable = map[uint16]statusEntry{
	// Ledger OS and ISO 7816 words.
	0x6400: {KindInternal, "execution error"},
	0x6581: {KindInternal, "memory failure"},
	0x6700: {KindData, "incorrect command length"},
	0x6981: {KindState, "command incompatible with file structure"},
	0x6982: {KindSecurity, "security status not satisfied (device locked)"},
	0x6983: {KindSecurity, "authentication method blocked"},
	0x6984: {KindData, "referenced data invalidated"},
	0x6985: {KindRejected, "conditions of use not satisfied (user rejected)"},
	0x6986: {KindState, "command not allowed"},
	0x6a80: {KindData, "incorrect command data"},
	0x6a81: {KindUnsupported, "function not supported"},
	0x6a82: {KindState, "file not found (is the Handshake app open?)"},
	0x6a83: {KindState, "record not found"},
	0x6a84: {KindInternal, "not enough memory space"},
	0x6a85: {KindData, "data length inconsistent with TLV structure"},
	0x6a86: {KindData, "incorrect parameters P1-P2"},
	0x6a87: {KindData, "data length inconsistent with P1-P2"},
	0x6a88: {KindState, "referenced data not found"},
	0x6a89: {KindState, "file already exists"},
	0x6b00: {KindData, "wrong parameters P1-P2"},
	0x6c00: {KindData, "wrong response length"},
	0x6d00: {KindUnsupported, "instruction not supported"},
	0x6e00: {KindUnsupported, "instruction class not supported"},
	0x6f00: {KindInternal, "unknown technical problem"},
	0x6faa: {KindInternal, "device halted, reconnect required"},

	// HNS app words.
	0x7001: {KindInternal, "cannot initialize blake2b context"},
	0x7002: {KindInternal, "cannot encode address"},
	0x7003: {KindInternal, "cannot encode extended public key"},
	0x7004: {KindData, "cannot parse script"},
	0x7005: {KindData, "cannot read derivation path"},
	0x7006: {KindData, "derivation path too deep"},
	0x7007: {KindData, "incorrect input index"},
	0x7008: {KindData, "incorrect sighash type"},
	0x7009: {KindState, "incorrect parser state"},
	0x700a: {KindData, "incorrect previous outpoint"},
	0x700b: {KindData, "script too large"},
	0x700c: {KindData, "covenant too large"},
	0x700d: {KindData, "transaction too large"},
	0x700e: {KindState, "transaction must be parsed before signing"},
	0x700f: {KindInternal, "signature hash computation failed"},
	0x7010: {KindInternal, "public key derivation failed"},
	0x7011: {KindData, "confirmation address mismatch"},
}

// Status maps a status word to nil on success or to a *StatusError
// otherwise. Codes missing from the table still produce a typed error
// carrying the raw code; lookup never panics.
func Status(code uint16) error {
	if code == SWOK {
		return nil
	}
	if entry, ok := statusTable[code]; ok {
		return &StatusError{Code: code, Kind: entry.kind, Message: entry.message}
	}
	return &StatusError{Code: code, Kind: KindUnknown, Message: "unknown status word"}
}
