package linker

// Status is the terminal state of one run
type Status string

const (
	StatusUpdated             Status = "updated"
	StatusCreated             Status = "created"
	StatusUpdateFailed        Status = "update_failed"
	StatusCreateFailed        Status = "create_failed"
	StatusLookupFailed        Status = "lookup_failed"
	StatusKeyLoadFailed       Status = "key_load_failed"
	StatusWalletMismatch      Status = "aborted_wallet_mismatch"
	StatusInsufficientBalance Status = "aborted_insufficient_balance"
	StatusFatal               Status = "fatal"
)

// Outcome summarizes a run
type Outcome struct {
	Status          Status
	Mint            string
	Wallet          string
	Balance         uint64
	MetadataAddress string
	Signature       string
	// ExplorerURL is set when the explorer link was printed
	ExplorerURL string
	Err         error
}

// OK reports whether the metadata now matches the desired state
func (o Outcome) OK() bool {
	return o.Status == StatusUpdated || o.Status == StatusCreated
}

// Aborted reports whether the run stopped before the metadata lookup
func (o Outcome) Aborted() bool {
	switch o.Status {
	case StatusKeyLoadFailed, StatusWalletMismatch, StatusInsufficientBalance, StatusFatal:
		return true
	}
	return false
}

func (o *Outcome) fail(status Status, err error) Outcome {
	o.Status = status
	o.Err = err
	return *o
}
