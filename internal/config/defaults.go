package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/pagebind/data/db/pagebind.db"
	}
	if cfg.Storage.BlobRoot == "" {
		cfg.Storage.BlobRoot = "/usr/local/var/pagebind/data/blobs"
	}
	if cfg.Tools.Ghostscript == "" {
		cfg.Tools.Ghostscript = "gs"
	}
	if cfg.Tools.QPDF == "" {
		cfg.Tools.QPDF = "qpdf"
	}
	if cfg.Tools.PDFInfo == "" {
		cfg.Tools.PDFInfo = "pdfinfo"
	}
	if cfg.Tools.TimeoutSeconds == 0 {
		cfg.Tools.TimeoutSeconds = 120
	}
	if cfg.Export.MaxConcurrent == 0 {
		cfg.Export.MaxConcurrent = 4
	}
	if cfg.Cache.PageCountSize == 0 {
		cfg.Cache.PageCountSize = 1024
	}
}
