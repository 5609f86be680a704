package event

// Tag identifies the kind of a log event delivered by the dispatch source.
type Tag int

const (
	TagUnknown Tag = iota
	TagCacheOutcome
	TagMethod
	TagRxHeader
	TagTxHeader
	TagURL
	TagStatus
	TagRequestEnd
	TagBackendClose
	TagBackendReuse
)

var tagNames = map[string]Tag{
	"VCL_call":     TagCacheOutcome,
	"RxRequest":    TagMethod,
	"TxRequest":    TagMethod,
	"RxHeader":     TagRxHeader,
	"TxHeader":     TagTxHeader,
	"RxURL":        TagURL,
	"TxURL":        TagURL,
	"RxStatus":     TagStatus,
	"TxStatus":     TagStatus,
	"ReqEnd":       TagRequestEnd,
	"BackendClose": TagBackendClose,
	"BackendReuse": TagBackendReuse,
}

// ParseTag maps a varnish log tag name to a Tag. Unknown names map to TagUnknown.
func ParseTag(name string) Tag {
	return tagNames[name]
}

// Terminal reports whether the tag finalizes the record of its slot.
func (t Tag) Terminal() bool {
	return t == TagRequestEnd || t == TagBackendClose || t == TagBackendReuse
}

func (t Tag) String() string {
	switch t {
	case TagCacheOutcome:
		return "cache_outcome"
	case TagMethod:
		return "method"
	case TagRxHeader:
		return "rx_header"
	case TagTxHeader:
		return "tx_header"
	case TagURL:
		return "url"
	case TagStatus:
		return "status"
	case TagRequestEnd:
		return "request_end"
	case TagBackendClose:
		return "backend_close"
	case TagBackendReuse:
		return "backend_reuse"
	default:
		return "unknown"
	}
}

// Side is the connection side an event was logged for.
type Side byte

const (
	SideNone    Side = '-'
	SideClient  Side = 'c'
	SideBackend Side = 'b'
)

// Event is one tagged log record for a connection slot.
type Event struct {
	Slot    uint32
	Tag     Tag
	Side    Side
	Payload string
}

// RequestHeader reports whether the event carries a request header: one
// received from the client or one sent to the backend. Response headers
// travel the other way.
func (e Event) RequestHeader() bool {
	switch e.Tag {
	case TagRxHeader:
		return e.Side == SideClient
	case TagTxHeader:
		return e.Side == SideBackend
	}
	return false
}
