package keeper

import (
	"encoding/binary"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/address"

	"github.com/greenmesh/greenmesh/x/scheduler/types"
)

// Store key prefixes
var (
	ParamsKey          = []byte{0x01}
	JobKeyPrefix       = []byte{0x02}
	NextJobIDKey       = []byte{0x03}
	ClientIndexPrefix  = []byte{0x04}
	TypeIndexPrefix    = []byte{0x05}
	PendingQueuePrefix = []byte{0x06}
	GreenQueuePrefix   = []byte{0x07}
	NodeJobPrefix      = []byte{0x08}
	PausedKey          = []byte{0x09}
	PauseReasonKey     = []byte{0x0A}
	QueueDepthKey      = []byte{0x0B}
)

// JobKey returns the store key for a job
func JobKey(id uint64) []byte {
	return append(append([]byte{}, JobKeyPrefix...), GetUint64Bytes(id)...)
}

// ClientIndexPrefixFor returns the prefix of all job index entries of a client
func ClientIndexPrefixFor(client sdk.AccAddress) []byte {
	return append(append([]byte{}, ClientIndexPrefix...), address.MustLengthPrefix(client)...)
}

// ClientIndexKey returns the client index key for a job
func ClientIndexKey(client sdk.AccAddress, id uint64) []byte {
	return append(ClientIndexPrefixFor(client), GetUint64Bytes(id)...)
}

// TypeIndexPrefixFor returns the prefix of all job index entries of a job type
func TypeIndexPrefixFor(jobType string) []byte {
	return append(append([]byte{}, TypeIndexPrefix...), address.MustLengthPrefix([]byte(jobType))...)
}

// TypeIndexKey returns the job type index key for a job
func TypeIndexKey(jobType string, id uint64) []byte {
	return append(TypeIndexPrefixFor(jobType), GetUint64Bytes(id)...)
}

// PendingQueueKey orders waiting jobs by priority (highest first), then id.
func PendingQueueKey(priority types.Priority, id uint64) []byte {
	rank := byte(types.PriorityCritical - priority)
	return append(append([]byte{}, PendingQueuePrefix...), append([]byte{rank}, GetUint64Bytes(id)...)...)
}

// GreenQueueKey returns the green queue key for a waiting job
func GreenQueueKey(id uint64) []byte {
	return append(append([]byte{}, GreenQueuePrefix...), GetUint64Bytes(id)...)
}

// NodeJobPrefixFor returns the prefix of the jobs a node still owes a result for
func NodeJobPrefixFor(node sdk.AccAddress) []byte {
	return append(append([]byte{}, NodeJobPrefix...), address.MustLengthPrefix(node)...)
}

// NodeJobKey returns the node work index key for a job
func NodeJobKey(node sdk.AccAddress, id uint64) []byte {
	return append(NodeJobPrefixFor(node), GetUint64Bytes(id)...)
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

// jobIDFromIndexKey reads the trailing job id of any index key.
func jobIDFromIndexKey(key []byte) uint64 {
	if len(key) < 8 {
		return 0
	}
	return GetUint64FromBytes(key[len(key)-8:])
}
