package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gowithe/scangrade-thai/internal/config"
	"github.com/Gowithe/scangrade-thai/internal/logging"
	"github.com/Gowithe/scangrade-thai/internal/template"
)

func testConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	cfg, err := config.FromMap(env)
	require.NoError(t, err)
	return cfg
}

func TestRun_ServesUntilInputEnds(t *testing.T) {
	cfg := testConfig(t, map[string]string{"SCANGRADE_OCR_ENABLED": "false"})
	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n")

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), cfg, logging.Discard(), in, &out))
	assert.Contains(t, out.String(), `"id":1`)
}

func TestRun_TemplateErrorIsReturned(t *testing.T) {
	cfg := testConfig(t, map[string]string{"SCANGRADE_TEMPLATE_DIR": t.TempDir()})

	var out bytes.Buffer
	err := run(context.Background(), cfg, logging.Discard(), strings.NewReader(""), &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, template.ErrTemplateNotFound)
	assert.Zero(t, out.Len())
}

func TestRun_KeyStoreErrorIsReturned(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"SCANGRADE_DATABASE_URL": "postgres://scangrade@127.0.0.1:1/scangrade?sslmode=disable&connect_timeout=2",
	})

	var out bytes.Buffer
	err := run(context.Background(), cfg, logging.Discard(), strings.NewReader(""), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open key store")
	assert.Zero(t, out.Len())
}

func TestOpenKeyStore_Memory(t *testing.T) {
	keys, closeKeys, err := openKeyStore(context.Background(), testConfig(t, nil), logging.Discard())
	require.NoError(t, err)
	require.NotNil(t, keys)
	closeKeys()
}
