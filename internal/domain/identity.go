package domain

// Identity is an opaque participant address. The wallet layer that signs
// requests and proves control of an identity is external to this service;
// the ledger only ever compares identities for equality.
type Identity string

// Zero reports whether the identity is unset.
func (i Identity) Zero() bool {
	return i == ""
}
