package domain

import "strings"

// Asset identifies a fungible coin type on the ledger, e.g.
// "0x2::sui::SUI". Assets are opaque and compared by exact value.
type Asset string

// IsCoinType reports whether the value looks like a fully qualified
// coin type rather than a user-facing symbol.
func (a Asset) IsCoinType() bool {
	return strings.Contains(string(a), "::")
}

// String returns the raw asset identifier.
func (a Asset) String() string {
	return string(a)
}
