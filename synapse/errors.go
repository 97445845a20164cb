package synapse

import (
	sdkerrors "cosmossdk.io/errors"
)

const codespace = "synapse"

var (
	ErrRemoteFailure    = sdkerrors.Register(codespace, 2, "remote server failure")
	ErrNotImplemented   = sdkerrors.Register(codespace, 3, "synapse not implemented")
	ErrUnknownException = sdkerrors.Register(codespace, 4, "unknown exception")
	ErrBlacklisted      = sdkerrors.Register(codespace, 5, "caller blacklisted")
	ErrTimeout          = sdkerrors.Register(codespace, 6, "request timed out")
	ErrUnknownCodec     = sdkerrors.Register(codespace, 7, "unknown codec")
	ErrOutputAlreadySet = sdkerrors.Register(codespace, 8, "output already set")
	ErrUnknownKind      = sdkerrors.Register(codespace, 9, "unknown synapse kind")
)

// ReturnCode travels on every wire response. Receivers must inspect it
// before touching the payload.
type ReturnCode int32

const (
	CodeNoReturn ReturnCode = iota
	CodeSuccess
	CodeTimeout
	CodeNotImplemented
	CodeUnknownException
	CodeBlacklisted
)

func (c ReturnCode) String() string {
	switch c {
	case CodeNoReturn:
		return "NoReturn"
	case CodeSuccess:
		return "Success"
	case CodeTimeout:
		return "Timeout"
	case CodeNotImplemented:
		return "NotImplemented"
	case CodeUnknownException:
		return "UnknownException"
	case CodeBlacklisted:
		return "Blacklisted"
	default:
		return "Invalid"
	}
}
