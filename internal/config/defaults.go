package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8750
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kensaku/data/kensaku.db"
	}
	if cfg.Storage.SnapshotPath == "" {
		cfg.Storage.SnapshotPath = "/usr/local/var/kensaku/data/index-snapshot.json"
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 20
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 200
	}
	if cfg.Search.FacetTopN == 0 {
		cfg.Search.FacetTopN = 10
	}
	if cfg.Search.NGramMin == 0 {
		cfg.Search.NGramMin = 1
	}
	if cfg.Search.NGramMax == 0 {
		cfg.Search.NGramMax = 3
	}
	if cfg.Search.RecencyHalfLifeDays == 0 {
		cfg.Search.RecencyHalfLifeDays = 90
	}
	if cfg.Suggest.MaxSuggestions == 0 {
		cfg.Suggest.MaxSuggestions = 10
	}
	if cfg.Suggest.HistorySize == 0 {
		cfg.Suggest.HistorySize = 1000
	}
}
