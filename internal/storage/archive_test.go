package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadArchive_Local(t *testing.T) {
	dir := t.TempDir()
	a := NewPayloadArchive(NewLocal(dir))
	a.now = func() time.Time { return time.Date(2026, 3, 9, 10, 0, 0, 42, time.UTC) }

	key, err := a.Archive(context.Background(), "OPEN-1-abc", "webhook", []byte(`{"ok":true}`))
	require.NoError(t, err)
	assert.Equal(t, "notifications/2026/03/09/OPEN-1-abc/1773050400000000042-webhook.json", key)

	got, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(got))
}

func TestPayloadArchive_Disabled(t *testing.T) {
	key, err := NewPayloadArchive(nil).Archive(context.Background(), "o", "webhook", []byte("{}"))
	require.NoError(t, err)
	assert.Empty(t, key)
}

func TestLocal_KeysStayInsideRoot(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal(dir)

	res, err := l.Put(context.Background(), strings.NewReader("x"), PutInput{Key: "../../etc/passwd"})
	require.NoError(t, err)
	assert.Equal(t, "etc/passwd", res.Key)
	_, err = os.Stat(filepath.Join(dir, "etc", "passwd"))
	assert.NoError(t, err)

	_, err = l.Put(context.Background(), strings.NewReader("x"), PutInput{Key: "  "})
	assert.Error(t, err)
}
