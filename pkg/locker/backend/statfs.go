package backend

// FSUsage is a filesystem-level usage snapshot, in bytes.
type FSUsage struct {
	Total uint64
	Free  uint64
}

// UsageReader reports filesystem usage for a path. AFS volumes surface
// their quota through statfs on the volume root, so this is all the AFS
// backend needs.
type UsageReader interface {
	Usage(path string) (FSUsage, error)
}
