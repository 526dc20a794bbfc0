package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Engine rules.
	ErrBadRequest   = "E_BAD_REQUEST"
	ErrPhaseClosed  = "E_PHASE_CLOSED"
	ErrDuplicate    = "E_DUPLICATE"
	ErrNotFound     = "E_NOT_FOUND"
	ErrUnknownKind  = "E_UNKNOWN_KIND"
	ErrNotPlayer    = "E_NOT_PLAYER"
	ErrNoPermission = "E_NO_PERMISSION"
	ErrInternal     = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrBadRequest:      {},
	ErrPhaseClosed:     {},
	ErrDuplicate:       {},
	ErrNotFound:        {},
	ErrUnknownKind:     {},
	ErrNotPlayer:       {},
	ErrNoPermission:    {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
