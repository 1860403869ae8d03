package storage

const (
	OneB  = 1 << 0  // 1
	OneKB = 1 << 10 // 1,024

	// DefaultPageSize is the page size of a database instance unless
	// configured otherwise. It is fixed for the life of the instance.
	DefaultPageSize = 4 * OneKB // 4,096
	// MinPageSize keeps room for a header byte plus at least one small slot.
	MinPageSize = 64
)

const (
	FileMode0644 = 0o644
	FileMode0755 = 0o755
)
