package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	jwttoken "github.com/NogaLive/SNIUGB/internal/jwt_token"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"sniugb"}, args...))
	return out.String(), err
}

func TestVerifyCUICommand(t *testing.T) {
	t.Run("valid identifiers are decoded", func(t *testing.T) {
		out, err := runApp(t, "verify-cui", "11500000015", "21500000013")
		require.NoError(t, err)
		assert.Contains(t, out, "11500000015\tvalid\tspecies=1 region=15 sequence=1")
		assert.Contains(t, out, "21500000013\tvalid\tspecies=2 region=15 sequence=1")
	})

	t.Run("bad check digit fails the command", func(t *testing.T) {
		out, err := runApp(t, "verify-cui", "11500000015", "11500000016")
		require.Error(t, err)
		assert.Contains(t, out, "11500000016\tinvalid")
		var exit cli.ExitCoder
		require.ErrorAs(t, err, &exit)
		assert.Equal(t, 1, exit.ExitCode())
	})

	t.Run("requires an argument", func(t *testing.T) {
		_, err := runApp(t, "verify-cui")
		require.Error(t, err)
	})
}

func TestTokenCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SIGNING_KEY", "test-signing-key")
	t.Setenv("JWT_ISSUER", "sniugb-test")

	out, err := runApp(t, "token", "--subject", "40000001", "--role", "admin")
	require.NoError(t, err)

	claims, err := jwttoken.NewJWTService("test-signing-key", "sniugb-test").ValidateToken(string(bytes.TrimSpace([]byte(out))))
	require.NoError(t, err)
	assert.Equal(t, "40000001", claims.Subject)
	assert.Equal(t, "admin", string(claims.Role))

	_, err = runApp(t, "token", "--subject", "40000001", "--role", "root")
	require.Error(t, err)
}
