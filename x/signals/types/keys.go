package types

const (
	// ModuleName defines the module name
	ModuleName = "signals"

	// StoreKey defines the primary module store key
	StoreKey = ModuleName
)

// CertificateDomain is appended to green certificate statements so an
// attestation signature can never be replayed as a certificate.
var CertificateDomain = []byte("greenmesh/green-certificate")
