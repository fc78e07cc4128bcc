package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8985
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "./data/nitamono.db"
	}
	if cfg.Storage.KeywordIndexPath == "" {
		cfg.Storage.KeywordIndexPath = "./data/keyword.bleve"
	}
	if cfg.Vector.IndexDir == "" {
		cfg.Vector.IndexDir = "./data/index"
	}
	if cfg.Vector.ChunkSize == 0 {
		cfg.Vector.ChunkSize = 300
	}
	if cfg.Vector.ChunkOverlap == 0 {
		cfg.Vector.ChunkOverlap = 50
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-v2"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 10
	}
	if cfg.Embedding.MaxAttempts == 0 {
		cfg.Embedding.MaxAttempts = 2
	}
	if cfg.Embedding.TimeoutSeconds == 0 {
		cfg.Embedding.TimeoutSeconds = 30
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Similarity.TopK == 0 {
		cfg.Similarity.TopK = 5
	}
	if cfg.Similarity.CandidateLimit == 0 {
		cfg.Similarity.CandidateLimit = 300
	}
	if cfg.Redis.TTLHours == 0 {
		cfg.Redis.TTLHours = 24
	}
	if cfg.Watcher.DebounceMS == 0 {
		cfg.Watcher.DebounceMS = 2000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
