// Package message implements the lock protocol's command codec.
//
// The package provides:
//   - Item, op and result codes
//   - The one-byte segment header that precedes every GATT write/notification
//   - Outbound command builders (login, lock, unlock)
//   - Inbound response/publish parsing
//   - The 7-byte mechanism status record
//
// Encryption of command bodies lives in pkg/session; this package only deals
// with plaintext layouts.
package message

// ItemCode identifies the semantic type of a command, response or publish.
type ItemCode uint8

const (
	ItemNone                ItemCode = 0
	ItemRegistration        ItemCode = 1
	ItemLogin               ItemCode = 2
	ItemUser                ItemCode = 3
	ItemHistory             ItemCode = 4
	ItemVersionDetail       ItemCode = 5
	ItemDisconnectRebootNow ItemCode = 6
	ItemEnableDFU           ItemCode = 7
	ItemTime                ItemCode = 8
	ItemInitial             ItemCode = 14
	ItemMagnet              ItemCode = 17
	ItemMechSetting         ItemCode = 80
	ItemMechStatus          ItemCode = 81
	ItemLock                ItemCode = 82
	ItemUnlock              ItemCode = 83
	ItemOpsTimerSetting     ItemCode = 92
)

// String returns a human-readable name for the item code.
func (i ItemCode) String() string {
	switch i {
	case ItemNone:
		return "None"
	case ItemRegistration:
		return "Registration"
	case ItemLogin:
		return "Login"
	case ItemUser:
		return "User"
	case ItemHistory:
		return "History"
	case ItemVersionDetail:
		return "VersionDetail"
	case ItemDisconnectRebootNow:
		return "DisconnectRebootNow"
	case ItemEnableDFU:
		return "EnableDFU"
	case ItemTime:
		return "Time"
	case ItemInitial:
		return "Initial"
	case ItemMagnet:
		return "Magnet"
	case ItemMechSetting:
		return "MechSetting"
	case ItemMechStatus:
		return "MechStatus"
	case ItemLock:
		return "Lock"
	case ItemUnlock:
		return "Unlock"
	case ItemOpsTimerSetting:
		return "OpsTimerSetting"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the item code is a defined value.
func (i ItemCode) IsValid() bool {
	return i.String() != "Unknown"
}

// OpCode is the first byte of every inbound body.
type OpCode uint8

const (
	OpCreate    OpCode = 1
	OpRead      OpCode = 2
	OpUpdate    OpCode = 3
	OpDelete    OpCode = 4
	OpSync      OpCode = 5
	OpAsync     OpCode = 6
	OpResponse  OpCode = 7
	OpPublish   OpCode = 8
	OpUndefined OpCode = 16
)

// String returns a human-readable name for the op code.
func (o OpCode) String() string {
	switch o {
	case OpCreate:
		return "Create"
	case OpRead:
		return "Read"
	case OpUpdate:
		return "Update"
	case OpDelete:
		return "Delete"
	case OpSync:
		return "Sync"
	case OpAsync:
		return "Async"
	case OpResponse:
		return "Response"
	case OpPublish:
		return "Publish"
	case OpUndefined:
		return "Undefined"
	default:
		return "Unknown"
	}
}

// ResultCode is the status byte carried by every response.
type ResultCode uint8

const (
	ResultSuccess       ResultCode = 0
	ResultInvalidFormat ResultCode = 1
	ResultNotSupported  ResultCode = 2
	ResultStorageFail   ResultCode = 3
	ResultInvalidSig    ResultCode = 4
	ResultNotFound      ResultCode = 5
	ResultUnknown       ResultCode = 6
	ResultBusy          ResultCode = 7
	ResultInvalidParam  ResultCode = 8
)

// String returns a human-readable name for the result code.
func (r ResultCode) String() string {
	switch r {
	case ResultSuccess:
		return "Success"
	case ResultInvalidFormat:
		return "InvalidFormat"
	case ResultNotSupported:
		return "NotSupported"
	case ResultStorageFail:
		return "StorageFail"
	case ResultInvalidSig:
		return "InvalidSig"
	case ResultNotFound:
		return "NotFound"
	case ResultUnknown:
		return "Unknown"
	case ResultBusy:
		return "Busy"
	case ResultInvalidParam:
		return "InvalidParam"
	default:
		return "Unknown"
	}
}

// ParsingType tells the receiver how to treat a reassembled body.
type ParsingType uint8

const (
	// ParsingNone marks a non-final segment; more segments follow.
	ParsingNone ParsingType = 0

	// ParsingPlaintext marks a final segment of an unencrypted body.
	ParsingPlaintext ParsingType = 1

	// ParsingCiphertext marks a final segment of a CCM-sealed body.
	ParsingCiphertext ParsingType = 2
)

// String returns a human-readable name for the parsing type.
func (p ParsingType) String() string {
	switch p {
	case ParsingNone:
		return "None"
	case ParsingPlaintext:
		return "Plaintext"
	case ParsingCiphertext:
		return "Ciphertext"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the parsing type is a defined value.
func (p ParsingType) IsValid() bool {
	return p <= ParsingCiphertext
}
