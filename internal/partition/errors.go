package partition

import "errors"

// unknownPartitionTypeError signals a request for a partition scheme
// nobody registered. Misconfiguration: fail before running inference.
type unknownPartitionTypeError struct {
	codebase      string
	partitionType string
}

func (e unknownPartitionTypeError) Error() string {
	return "unknown partition type: " + e.codebase + "/" + e.partitionType
}

// IsUnknownPartitionType reports whether err indicates an unregistered
// partition scheme.
func IsUnknownPartitionType(err error) bool {
	var t unknownPartitionTypeError
	return errors.As(err, &t)
}

// duplicateSchemeError signals a second registration under the same
// (codebase, partitionType) pair.
type duplicateSchemeError struct {
	codebase      string
	partitionType string
}

func (e duplicateSchemeError) Error() string {
	return "partition scheme already registered: " + e.codebase + "/" + e.partitionType
}

// IsDuplicateScheme reports whether err indicates a rebind attempt.
func IsDuplicateScheme(err error) bool {
	var t duplicateSchemeError
	return errors.As(err, &t)
}
