package storage

// Storage defines the root interface for the entire data layer.
// It composes all available storage operations. Components should depend on the
// more granular interfaces (WalletReader, Committer, etc.) instead of this one.
type Storage interface {
	WalletReader
	TransactionReader
	PaymentReader
	Committer
	OutboxStore
}

// LedgerStore is what the wallet, reconciler and refund services need.
type LedgerStore interface {
	WalletReader
	TransactionReader
	PaymentReader
	Committer
}
