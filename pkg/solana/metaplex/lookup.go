package metaplex

// LookupStatus tags the outcome of FindByMint
type LookupStatus int

const (
	LookupFailed LookupStatus = iota
	LookupFound
	LookupNotFound
)

func (s LookupStatus) String() string {
	switch s {
	case LookupFound:
		return "found"
	case LookupNotFound:
		return "not_found"
	default:
		return "failed"
	}
}

// LookupResult is Found(Record), NotFound or Failed(Err)
type LookupResult struct {
	Status LookupStatus
	Record *Record
	Err    error
}

func Found(record *Record) LookupResult {
	return LookupResult{Status: LookupFound, Record: record}
}

func NotFound() LookupResult {
	return LookupResult{Status: LookupNotFound}
}

func Failed(err error) LookupResult {
	return LookupResult{Status: LookupFailed, Err: err}
}
