package gcp

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/AICC2024/video-review/internal/platform/envutil"
)

type StorageMode string

const (
	StorageModeGCS         StorageMode = "gcs"
	StorageModeGCSEmulator StorageMode = "gcs_emulator"
)

// StorageConfig describes where review media lives.
type StorageConfig struct {
	Mode          StorageMode
	Bucket        string
	EmulatorHost  string
	PublicBaseURL string
	CDNDomain     string
	// Inferred is set when the emulator mode came from STORAGE_EMULATOR_HOST alone.
	Inferred bool
}

func (c StorageConfig) IsEmulator() bool { return c.Mode == StorageModeGCSEmulator }

// StorageConfigError names the env var that made the config unusable.
type StorageConfigError struct {
	Var   string
	Value string
	Msg   string
}

func (e *StorageConfigError) Error() string {
	if e == nil {
		return "invalid storage config"
	}
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Var, e.Msg)
	}
	return fmt.Sprintf("%s=%q: %s", e.Var, e.Value, e.Msg)
}

// StorageConfigFromEnv reads MEDIA_GCS_BUCKET_NAME, OBJECT_STORAGE_MODE,
// STORAGE_EMULATOR_HOST, OBJECT_STORAGE_PUBLIC_BASE_URL and MEDIA_CDN_DOMAIN.
func StorageConfigFromEnv() (StorageConfig, error) {
	cfg := StorageConfig{
		Bucket:        envutil.String("MEDIA_GCS_BUCKET_NAME", ""),
		EmulatorHost:  strings.TrimRight(envutil.String("STORAGE_EMULATOR_HOST", ""), "/"),
		PublicBaseURL: strings.TrimRight(envutil.String("OBJECT_STORAGE_PUBLIC_BASE_URL", ""), "/"),
		CDNDomain:     envutil.String("MEDIA_CDN_DOMAIN", ""),
	}
	raw := envutil.String("OBJECT_STORAGE_MODE", "")
	switch StorageMode(strings.ToLower(raw)) {
	case "":
		cfg.Mode = StorageModeGCS
		if cfg.EmulatorHost != "" {
			cfg.Mode = StorageModeGCSEmulator
			cfg.Inferred = true
		}
	case StorageModeGCS:
		cfg.Mode = StorageModeGCS
	case StorageModeGCSEmulator:
		cfg.Mode = StorageModeGCSEmulator
	default:
		return cfg, &StorageConfigError{Var: "OBJECT_STORAGE_MODE", Value: raw, Msg: "expected gcs or gcs_emulator"}
	}
	return cfg, cfg.Validate()
}

func (c StorageConfig) Validate() error {
	if strings.TrimSpace(c.Bucket) == "" {
		return &StorageConfigError{Var: "MEDIA_GCS_BUCKET_NAME", Msg: "required"}
	}
	if c.PublicBaseURL != "" && !isAbsoluteURL(c.PublicBaseURL) {
		return &StorageConfigError{Var: "OBJECT_STORAGE_PUBLIC_BASE_URL", Value: c.PublicBaseURL, Msg: "expected absolute URL like http://localhost:4443"}
	}
	switch c.Mode {
	case StorageModeGCS:
		return nil
	case StorageModeGCSEmulator:
		if c.EmulatorHost == "" {
			return &StorageConfigError{Var: "STORAGE_EMULATOR_HOST", Msg: "required in gcs_emulator mode"}
		}
		if !isAbsoluteURL(c.EmulatorHost) {
			return &StorageConfigError{Var: "STORAGE_EMULATOR_HOST", Value: c.EmulatorHost, Msg: "expected absolute URL like http://fake-gcs:4443"}
		}
		return nil
	default:
		return &StorageConfigError{Var: "OBJECT_STORAGE_MODE", Value: string(c.Mode), Msg: "expected gcs or gcs_emulator"}
	}
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}
