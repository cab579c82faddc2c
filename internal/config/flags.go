package config

import "github.com/spf13/pflag"

// BindFlags registers command-line overrides on fs. Each flag defaults to
// the value already loaded from the environment, so flags win when given.
func BindFlags(fs *pflag.FlagSet, c *AppConfig) {
	fs.StringVar(&c.Port, "port", c.Port, "HTTP listen port")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&c.StoreBackend, "store", c.StoreBackend, "document backend (file, postgres, memory)")
	fs.StringVar(&c.DBFile, "db-file", c.DBFile, "path of the JSON document file")
	fs.StringVar(&c.StorageBackend, "storage", c.StorageBackend, "attachment backend (local, minio, s3)")
	fs.StringVar(&c.UploadDir, "upload-dir", c.UploadDir, "directory for locally stored attachments")
	fs.BoolVar(&c.Auth.RequireAuth, "require-auth", c.Auth.RequireAuth, "require a bearer token on mutating routes")
}
