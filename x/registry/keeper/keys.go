package keeper

import (
	"encoding/binary"

	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Store key prefixes
var (
	ParamsKey              = []byte{0x01}
	DeviceProfileKeyPrefix = []byte{0x02}
	NodeKeyPrefix          = []byte{0x03}
	IndexPositionPrefix    = []byte{0x04}
	IndexReversePrefix     = []byte{0x05}
	IndexLengthKey         = []byte{0x06}
	AggregatesKey          = []byte{0x07}
	DeviceTypeCountPrefix  = []byte{0x08}
	TombstonePrefix        = []byte{0x09}
	RegistrationBucketKey  = []byte{0x0A}
	NextSlashIDKey         = []byte{0x0B}
	SlashRecordPrefix      = []byte{0x0C}
	NextAlertIDKey         = []byte{0x0D}
	BatchAlertPrefix       = []byte{0x0E}
	PausedKey              = []byte{0x0F}
	PauseReasonKey         = []byte{0x10}
)

// DeviceProfileKey returns the store key for a device profile
func DeviceProfileKey(deviceType string) []byte {
	return append(append([]byte{}, DeviceProfileKeyPrefix...), []byte(deviceType)...)
}

// DeviceTypeCountKey returns the store key for the node count of a device type
func DeviceTypeCountKey(deviceType string) []byte {
	return append(append([]byte{}, DeviceTypeCountPrefix...), []byte(deviceType)...)
}

// NodeKey returns the store key for a node
func NodeKey(addr sdk.AccAddress) []byte {
	return append(append([]byte{}, NodeKeyPrefix...), addr.Bytes()...)
}

// IndexPositionKey returns the store key for the identity at an index position
func IndexPositionKey(pos uint64) []byte {
	return append(append([]byte{}, IndexPositionPrefix...), GetUint64Bytes(pos)...)
}

// IndexReverseKey returns the store key for the index position of an identity
func IndexReverseKey(addr sdk.AccAddress) []byte {
	return append(append([]byte{}, IndexReversePrefix...), addr.Bytes()...)
}

// TombstoneKey returns the store key marking a permanently slashed identity
func TombstoneKey(addr sdk.AccAddress) []byte {
	return append(append([]byte{}, TombstonePrefix...), addr.Bytes()...)
}

// SlashRecordKey returns the store key for a slash record
func SlashRecordKey(id uint64) []byte {
	return append(append([]byte{}, SlashRecordPrefix...), GetUint64Bytes(id)...)
}

// BatchAlertKey returns the store key for a batch alert
func BatchAlertKey(id uint64) []byte {
	return append(append([]byte{}, BatchAlertPrefix...), GetUint64Bytes(id)...)
}

// GetUint64Bytes returns the big-endian encoding of n
func GetUint64Bytes(n uint64) []byte {
	bz := make([]byte, 8)
	binary.BigEndian.PutUint64(bz, n)
	return bz
}

// GetUint64FromBytes decodes a big-endian uint64
func GetUint64FromBytes(bz []byte) uint64 {
	if len(bz) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(bz)
}
