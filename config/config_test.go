package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// isolate keeps the developer's real identity out of the test.
func isolate(t *testing.T) {
	t.Setenv(EnvIdentityFile, filepath.Join(t.TempDir(), "missing"))
	t.Setenv(EnvUserName, "")
	t.Setenv(EnvAuthKeyID, "")
	t.Setenv(EnvAuthKey, "")
}

func TestLoad(t *testing.T) {
	isolate(t)
	path := writeFile(t, "nimbusio.yaml", `
env: test
log:
  level: debug
service:
  endpoint: http://127.0.0.1:8088
  domain: nimbus.test
  timeout: 5s
identity:
  userName: motoboto-test-01
  authKeyId: "43"
  authKey: secret
emulator:
  dataDir: /tmp/nimbus
  users:
    - userName: motoboto-test-01
      authKeyId: "43"
      authKey: secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "test", cfg.Env)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "text", cfg.Log.Format)
	require.Equal(t, "nimbus.test", cfg.Service.Domain)
	require.Equal(t, 5*time.Second, cfg.Service.Timeout)
	require.Equal(t, "43", cfg.Identity.AuthKeyID)
	require.Len(t, cfg.Emulator.Users, 1)
	require.EqualValues(t, 1000, cfg.Emulator.MaxKeys)
	require.Equal(t, "127.0.0.1:8088", cfg.Emulator.Listen)
}

func TestLoadConfiguredIdentityWithIdentityFileSet(t *testing.T) {
	isolate(t)
	t.Setenv(EnvIdentityFile, writeFile(t, "identity", "Username file-user\nAuthKeyId 2\nAuthKey k\n"))
	path := writeFile(t, "nimbusio.yaml", `
env: test
identity:
  userName: config-user
  authKeyId: "43"
  authKey: secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "config-user", cfg.Identity.UserName)
	require.Equal(t, "43", cfg.Identity.AuthKeyID)
	require.Equal(t, "secret", cfg.Identity.AuthKey)
}

func TestLoadEnvOverride(t *testing.T) {
	isolate(t)
	path := writeFile(t, "nimbusio.yaml", "env: test\n")
	t.Setenv("NIMBUSIO_LOG_LEVEL", "warn")
	t.Setenv("NIMBUSIO_SERVICE_ENDPOINT", "http://localhost:9000")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "warn", cfg.Log.Level)
	require.Equal(t, "http://localhost:9000", cfg.Service.Endpoint)
}

func TestLoadIdentityFallback(t *testing.T) {
	isolate(t)
	t.Setenv(EnvUserName, "env-user")
	t.Setenv(EnvAuthKeyID, "7")
	t.Setenv(EnvAuthKey, "k")

	cfg, err := Load(writeFile(t, "nimbusio.yaml", "env: test\n"))
	require.NoError(t, err)
	require.Equal(t, "env-user", cfg.Identity.UserName)
}

func TestLoadInvalid(t *testing.T) {
	isolate(t)

	_, err := Load(writeFile(t, "nimbusio.yaml", "env: test\nlog:\n  level: loud\n"))
	require.Error(t, err)

	_, err = Load(writeFile(t, "nimbusio.yaml", "env: test\nemulator:\n  maxKeys: 5000\n"))
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestParseIdentity(t *testing.T) {
	id, err := ParseIdentity(strings.NewReader(`
# nimbus.io identity
Username motoboto-test-01
AuthKeyId 43
AuthKey oMDMm54A4F5+ukVSSoZTOlDVAIhlywJI+x4lsLjLWfA
`))
	require.NoError(t, err)
	require.Equal(t, "motoboto-test-01", id.UserName)
	require.Equal(t, "43", id.AuthKeyID)
	require.Equal(t, "oMDMm54A4F5+ukVSSoZTOlDVAIhlywJI+x4lsLjLWfA", id.AuthKey)

	id, err = ParseIdentity(strings.NewReader("user_name a\nauth_key_id 1\nauth_key b\n"))
	require.NoError(t, err)
	require.Equal(t, "a", id.UserName)

	_, err = ParseIdentity(strings.NewReader("Username a\nAuthKeyId 1\n"))
	require.ErrorIs(t, err, ErrNoIdentity)

	_, err = ParseIdentity(strings.NewReader("Username a b c\n"))
	require.Error(t, err)
}

func TestLoadIdentity(t *testing.T) {
	isolate(t)
	_, err := LoadIdentity()
	require.ErrorIs(t, err, ErrNoIdentity)

	path := writeFile(t, "identity", "Username file-user\nAuthKeyId 2\nAuthKey k\n")
	t.Setenv(EnvIdentityFile, path)
	id, err := LoadIdentity()
	require.NoError(t, err)
	require.Equal(t, "file-user", id.UserName)

	// environment wins over the file
	t.Setenv(EnvUserName, "env-user")
	t.Setenv(EnvAuthKeyID, "3")
	t.Setenv(EnvAuthKey, "k")
	id, err = LoadIdentity()
	require.NoError(t, err)
	require.Equal(t, "env-user", id.UserName)
}
