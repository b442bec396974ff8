package enums

type AuthStatus string

const (
	AuthStatusAnonymous     AuthStatus = "anonymous"
	AuthStatusPending       AuthStatus = "pending"
	AuthStatusAuthenticated AuthStatus = "authenticated"
)

type StorageBackend string

const (
	StorageBackendMemory StorageBackend = "memory"
	StorageBackendFile   StorageBackend = "file"
	StorageBackendRedis  StorageBackend = "redis"
)
