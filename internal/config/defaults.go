package config

const (
	BackendLocal  = "local"
	BackendMemory = "memory"

	CompressionNone = "none"
	CompressionZstd = "zstd"
	CompressionLZ4  = "lz4"
)

const (
	defaultDataDir        = "~/.local/share/spool"
	defaultLogDir         = "~/.local/share/spool/logs"
	defaultStorageDir     = "~/.local/share/spool/objects"
	defaultAPIBind        = "127.0.0.1:7491"
	defaultBackend        = BackendLocal
	defaultMinFreeGiB     = 1
	defaultChunkSizeBytes = 1 << 20
	defaultEncryptWorkers = 4
	defaultUploadWorkers  = 4
	defaultQueueDepth     = 8
	defaultCompression    = CompressionNone
	defaultIdentityFile   = "~/.config/spool/identity.age"
	defaultSealedKeyFile  = "~/.config/spool/master.key.age"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

var defaultExtensions = []string{
	".flac", ".wav", ".mp3", ".m4a", ".ogg", ".opus", ".ape", ".wv", ".aiff",
	".cue", ".log", ".jpg", ".jpeg", ".png",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Storage: Storage{
			Backend:    defaultBackend,
			Dir:        defaultStorageDir,
			MinFreeGiB: defaultMinFreeGiB,
		},
		Pipeline: Pipeline{
			ChunkSizeBytes: defaultChunkSizeBytes,
			EncryptWorkers: defaultEncryptWorkers,
			UploadWorkers:  defaultUploadWorkers,
			QueueDepth:     defaultQueueDepth,
			Compression:    defaultCompression,
		},
		Keyring: Keyring{
			IdentityFile:  defaultIdentityFile,
			SealedKeyFile: defaultSealedKeyFile,
		},
		Discovery: Discovery{
			Extensions: append([]string(nil), defaultExtensions...),
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
