package blobsvc

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/daftari/core"
)

func TestNewKey(t *testing.T) {
	tests := []struct {
		name   string
		suffix string
	}{
		{"report.pdf", "-report.pdf"},
		{"../../etc/passwd", "-passwd"},
		{`C:\Users\ada\lab 1.docx`, "-lab_1.docx"},
		{"..", "-document"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := newKey(tt.name)
			assert.True(t, strings.HasSuffix(key, tt.suffix), key)
			assert.NotContains(t, key, "/")
		})
	}
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	handle, err := store.Put(ctx, "answer.txt", strings.NewReader("42"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(handle, "local://"))

	rc, err := store.Open(ctx, handle)
	require.NoError(t, err)
	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "42", string(content))

	require.NoError(t, store.Delete(ctx, handle))
	_, err = store.Open(ctx, handle)
	assert.True(t, core.IsNotFound(err))

	for _, bad := range []string{"b2://x", "local://../secret", "local://"} {
		_, err = store.Open(ctx, bad)
		assert.True(t, core.IsNotFound(err), bad)
	}
}
