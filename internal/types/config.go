package types

// Config represents the application configuration
type Config struct {
	Storage struct {
		Root       string `yaml:"root"`
		CreateRoot bool   `yaml:"create_root"`
		Cache      struct {
			Type string `yaml:"type"` // unbounded, lru
			Size int    `yaml:"size"`
		} `yaml:"cache"`
	} `yaml:"storage"`

	Server struct {
		Port          int    `yaml:"port"`
		Host          string `yaml:"host"`
		ReadTimeout   int    `yaml:"read_timeout"`
		WriteTimeout  int    `yaml:"write_timeout"`
		IdleTimeout   int    `yaml:"idle_timeout"`
		MaxUploadSize int64  `yaml:"max_upload_size"`
	} `yaml:"server"`

	Logging struct {
		Level         string `yaml:"level"`
		Format        string `yaml:"format"` // text, json, dev
		Output        string `yaml:"output"` // stdout, stderr, file
		FilePath      string `yaml:"file_path"`
		IncludeCaller bool   `yaml:"include_caller"`
	} `yaml:"logging"`

	Monitoring struct {
		MetricsEnabled  bool   `yaml:"metrics_enabled"`
		MetricsPath     string `yaml:"metrics_path"`
		HealthCheckPath string `yaml:"health_check_path"`
	} `yaml:"monitoring"`

	Mailbox MailboxConfig `yaml:"mailbox"`

	Scheduling struct {
		Enabled         bool   `yaml:"enabled"`
		FrequencyEvery  string `yaml:"frequency_every"` // minute, hour, day, week, month
		FrequencyAmount int    `yaml:"frequency_amount"`
		StartNow        bool   `yaml:"start_now"`
		AuditEvery      string `yaml:"audit_every"` // Go duration, empty disables the audit job
	} `yaml:"scheduling"`
}

// MailboxConfig describes the mailbox attachments are ingested from
type MailboxConfig struct {
	Enabled             bool   `yaml:"enabled"`
	Protocol            string `yaml:"protocol"` // pop3, imap
	Server              string `yaml:"server"`
	Port                int    `yaml:"port"`
	Username            string `yaml:"username"`
	Password            string `yaml:"password"`
	Folder              string `yaml:"folder"` // IMAP only
	BatchSize           int    `yaml:"batch_size"`
	DeleteAfterDownload bool   `yaml:"delete_after_download"`
	Timeout             int    `yaml:"timeout"` // seconds

	TLS struct {
		Enabled    bool `yaml:"enabled"`
		VerifyCert bool `yaml:"verify_cert"`
	} `yaml:"tls"`

	AllowedTypes []string `yaml:"allowed_types"`
	MaxSize      int64    `yaml:"max_size"`

	Tracking TrackingConfig `yaml:"tracking"`
}

// TrackingConfig controls the record of already ingested messages
type TrackingConfig struct {
	Enabled       bool   `yaml:"enabled"`
	StorageType   string `yaml:"storage_type"` // file
	StoragePath   string `yaml:"storage_path"`
	RetentionDays int    `yaml:"retention_days"`
}
