package emissions

// constError is an immutable error type for sentinel errors.
type constError string

func (e constError) Error() string { return string(e) }

var (
	// ErrEmptyFactors is returned when a factor table has no entries.
	ErrEmptyFactors = constError("emission factor table is empty")

	// ErrInvalidFactor is returned for an unknown category or a non-positive multiplier.
	ErrInvalidFactor = constError("invalid emission factor")

	// ErrUnsupportedFormat is returned when the factor file is neither JSON nor YAML.
	ErrUnsupportedFormat = constError("unsupported emission factor file format")
)
