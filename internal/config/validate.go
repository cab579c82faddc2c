package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks enum values and the settings required by the selected
// store and storage backends.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.StoreBackend == "postgres" {
		if err := validate.Struct(c.Database); err != nil {
			return fmt.Errorf("invalid database config: %w", err)
		}
	}
	switch c.StorageBackend {
	case "minio":
		if err := validate.Struct(c.MinIO); err != nil {
			return fmt.Errorf("invalid minio config: %w", err)
		}
	case "s3":
		if err := validate.Struct(c.S3); err != nil {
			return fmt.Errorf("invalid s3 config: %w", err)
		}
	}
	return nil
}
