package iso9660

import "fmt"

// InvalidSignature is returned when the Primary Volume Descriptor does not
// carry the "CD001" signature at offset 1.
type InvalidSignature struct {
	Got [5]byte
}

func (e *InvalidSignature) Error() string {
	return fmt.Sprintf("iso9660: invalid PVD signature: got %q", e.Got[:])
}

// NotFound is returned when a path cannot be resolved inside the image.
type NotFound struct {
	Path string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("iso9660: not found: %s", e.Path)
}

// IsDirectory is returned when a file was expected but the resolved entry
// is a directory.
type IsDirectory struct {
	Path string
}

func (e *IsDirectory) Error() string {
	return fmt.Sprintf("iso9660: %s is a directory", e.Path)
}
