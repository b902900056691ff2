package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/beanbocchi/nimbus/pkg/auth"
)

const (
	EnvUserName     = "NIMBUSIO_USER_NAME"
	EnvAuthKeyID    = "NIMBUSIO_AUTH_KEY_ID"
	EnvAuthKey      = "NIMBUSIO_AUTH_KEY"
	EnvIdentityFile = "NIMBUSIO_IDENTITY_FILE"

	defaultIdentityFile = ".nimbus.io"
)

// ErrNoIdentity means neither the environment nor the identity file held a
// complete identity.
var ErrNoIdentity = errors.New("no identity configured")

// LoadIdentity resolves the user identity from the environment, falling
// back to the identity file.
func LoadIdentity() (auth.Identity, error) {
	if id, ok := IdentityFromEnv(); ok {
		return id, nil
	}

	path := os.Getenv(EnvIdentityFile)
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return auth.Identity{}, ErrNoIdentity
		}
		path = filepath.Join(home, defaultIdentityFile)
	}

	id, err := ReadIdentityFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return auth.Identity{}, ErrNoIdentity
	}
	return id, err
}

// IdentityFromEnv reads the three identity variables; ok is false unless
// all of them are set.
func IdentityFromEnv() (auth.Identity, bool) {
	id := auth.Identity{
		UserName:  os.Getenv(EnvUserName),
		AuthKeyID: os.Getenv(EnvAuthKeyID),
		AuthKey:   os.Getenv(EnvAuthKey),
	}
	return id, id.Complete()
}

func ReadIdentityFile(path string) (auth.Identity, error) {
	f, err := os.Open(path)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("open identity file: %w", err)
	}
	defer f.Close()

	id, err := ParseIdentity(f)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("%s: %w", path, err)
	}
	return id, nil
}

// ParseIdentity reads "Name value" lines. Blank lines and lines starting
// with # are skipped; names are case-insensitive.
func ParseIdentity(r io.Reader) (auth.Identity, error) {
	var id auth.Identity

	scanner := bufio.NewScanner(r)
	for lineno := 1; scanner.Scan(); lineno++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return auth.Identity{}, fmt.Errorf("line %d: expected name and value", lineno)
		}

		switch strings.ToLower(fields[0]) {
		case "user_name", "username":
			id.UserName = fields[1]
		case "auth_key_id", "authkeyid":
			id.AuthKeyID = fields[1]
		case "auth_key", "authkey":
			id.AuthKey = fields[1]
		}
	}
	if err := scanner.Err(); err != nil {
		return auth.Identity{}, err
	}

	if !id.Complete() {
		return auth.Identity{}, ErrNoIdentity
	}
	return id, nil
}
