package config

import (
	"time"

	"github.com/beanbocchi/nimbus/pkg/auth"
)

type Config struct {
	// General configuration
	Env string `yaml:"env" mapstructure:"env" validate:"required,oneof=development test production"`
	Log Log    `yaml:"log" mapstructure:"log" validate:"required"`

	// Client side
	Service  Service       `yaml:"service" mapstructure:"service" validate:"required"`
	Identity auth.Identity `yaml:"identity" mapstructure:"identity"`

	// Emulator and scheme adapters
	Emulator    Emulator    `yaml:"emulator" mapstructure:"emulator" validate:"required"`
	Objectstore Objectstore `yaml:"objectstore" mapstructure:"objectstore"`
}

type Log struct {
	Level     string `yaml:"level" mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format    string `yaml:"format" mapstructure:"format" validate:"oneof=json text"`
	AddSource bool   `yaml:"addSource" mapstructure:"addSource"`
}

type Service struct {
	// Endpoint is the URL requests are dialed at.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint" validate:"required,url"`
	// Domain is the service domain collection hosts hang off. Defaults to
	// the endpoint host.
	Domain  string        `yaml:"domain" mapstructure:"domain" validate:"omitempty,hostname"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`
}

type Emulator struct {
	Listen   string `yaml:"listen" mapstructure:"listen" validate:"required,hostname_port"`
	Domain   string `yaml:"domain" mapstructure:"domain" validate:"required,hostname"`
	DataDir  string `yaml:"dataDir" mapstructure:"dataDir" validate:"required"`
	Database string `yaml:"database" mapstructure:"database"`
	MaxKeys  int32  `yaml:"maxKeys" mapstructure:"maxKeys" validate:"gte=1,lte=1000"`
	// ClockSkew bounds request timestamps; zero disables the check.
	ClockSkew time.Duration `yaml:"clockSkew" mapstructure:"clockSkew" validate:"gte=0"`
	// Users are the identities the emulator accepts. Each gets its default
	// collection on startup.
	Users []auth.Identity `yaml:"users" mapstructure:"users" validate:"dive"`
	Blobs Blobs           `yaml:"blobs" mapstructure:"blobs" validate:"required"`
}

// Blobs selects where the emulator keeps object content. A remote primary
// is fronted by an LRU cache under DataDir.
type Blobs struct {
	Primary string `yaml:"primary" mapstructure:"primary" validate:"required,oneof=local storj s3"`
	// Bucket is the remote bucket used by storj and s3.
	Bucket         string `yaml:"bucket" mapstructure:"bucket" validate:"required_unless=Primary local"`
	CacheSizeBytes int64  `yaml:"cacheSizeBytes" mapstructure:"cacheSizeBytes" validate:"gte=0"`
}

type Objectstore struct {
	Storj StorjObjectstore `yaml:"storj" mapstructure:"storj"`
	S3    S3Objectstore    `yaml:"s3" mapstructure:"s3"`
}

type StorjObjectstore struct {
	AccessGrant string `yaml:"accessGrant" mapstructure:"accessGrant"`
}

type S3Objectstore struct {
	Endpoint        string `yaml:"endpoint" mapstructure:"endpoint" validate:"omitempty,hostname_port|hostname"`
	AccessKeyID     string `yaml:"accessKeyID" mapstructure:"accessKeyID"`
	SecretAccessKey string `yaml:"secretAccessKey" mapstructure:"secretAccessKey"`
	Region          string `yaml:"region" mapstructure:"region"`
	Secure          bool   `yaml:"secure" mapstructure:"secure"`
}
