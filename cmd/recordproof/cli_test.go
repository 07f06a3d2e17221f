package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"recordproof/internal/domain"
	"recordproof/internal/infra/codec"
	"recordproof/internal/infra/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin []byte, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(bytes.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDigest(t *testing.T) {
	out, err := execute(t, nil, "digest", " Alice@Example.com ")
	require.NoError(t, err)
	digest := strings.TrimSpace(out)
	assert.Len(t, digest, 96)

	again, err := execute(t, nil, "digest", "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, digest, strings.TrimSpace(again))

	_, err = execute(t, nil, "digest", "   ")
	assert.Error(t, err)
}

func TestKeysSignVerify(t *testing.T) {
	root := t.TempDir()

	out, err := execute(t, nil, "--key-root", root, "keys", "init")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(root, "keys", "private.pem"))

	pubPEM, err := execute(t, nil, "--key-root", root, "keys", "public")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(pubPEM, "-----BEGIN PUBLIC KEY-----"))
	pubPath := filepath.Join(t.TempDir(), "public.pem")
	require.NoError(t, os.WriteFile(pubPath, []byte(pubPEM), 0o644))

	out, err = execute(t, nil, "--key-root", root, "sign", "Bob@Example.com")
	require.NoError(t, err)
	var signed signOutput
	require.NoError(t, json.Unmarshal([]byte(out), &signed))
	assert.Equal(t, "bob@example.com", signed.Email)
	assert.Len(t, signed.Signature, 512)

	out, err = execute(t, nil, "verify", "--pubkey", pubPath, "--email", "BOB@example.com", "--signature", signed.Signature)
	require.NoError(t, err)
	assert.Equal(t, "valid", strings.TrimSpace(out))

	_, err = execute(t, nil, "--key-root", root, "verify", "--email", "bob@example.com", "--signature", signed.Signature)
	require.NoError(t, err)

	_, err = execute(t, nil, "verify", "--pubkey", pubPath, "--email", "eve@example.com", "--signature", signed.Signature)
	assert.ErrorIs(t, err, errSignatureInvalid)

	_, err = execute(t, nil, "verify", "--pubkey", pubPath, "--email", "bob@example.com", "--signature", "zz")
	assert.ErrorIs(t, err, errSignatureInvalid)
}

func TestReadOnlyCommandsDoNotCreateKeys(t *testing.T) {
	root := t.TempDir()

	_, err := execute(t, nil, "--key-root", root, "verify", "--email", "a@b.com", "--signature", strings.Repeat("ab", 256))
	assert.ErrorIs(t, err, domain.ErrKeyUnavailable)

	out, err := execute(t, nil, "--key-root", root, "keys", "public")
	assert.ErrorIs(t, err, domain.ErrKeyUnavailable)
	assert.NotContains(t, out, "BEGIN PUBLIC KEY")

	_, statErr := os.Stat(filepath.Join(root, "keys"))
	assert.True(t, os.IsNotExist(statErr), "read-only commands must not write under the key root")
}

func TestDecodeRecordFromStdin(t *testing.T) {
	reg := schema.MustLoad()
	want := codec.Record{
		Identifier: "id-1",
		Email:      "carol@example.com",
		Role:       "admin",
		Status:     "active",
		CreatedAt:  "2024-01-01T00:00:00.000Z",
	}
	raw, err := codec.NewRecordCodec(reg).Encode(want)
	require.NoError(t, err)

	out, err := execute(t, raw, "decode", "record")
	require.NoError(t, err)
	var got codec.Record
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, want, got)

	_, err = execute(t, []byte{0xff, 0xff}, "decode", "record")
	assert.Error(t, err)

	bad, err := codec.NewRecordCodec(reg).Encode(codec.Record{Identifier: "id-2", CreatedAt: "yesterday"})
	require.NoError(t, err)
	_, err = execute(t, bad, "decode", "record")
	assert.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestDecodeCollectionFromFile(t *testing.T) {
	reg := schema.MustLoad()
	raw, err := codec.NewCollectionCodec(reg, nil).Encode([]codec.Record{{Identifier: "a"}, {Identifier: "b"}})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "records.pb")
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	out, err := execute(t, nil, "decode", "collection", "--in", path)
	require.NoError(t, err)
	var got codec.Collection
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 2, got.Metadata.TotalCount)
	require.Len(t, got.Records, 2)
	assert.Equal(t, "b", got.Records[1].Identifier)
}
