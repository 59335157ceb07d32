package store

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// compactJSON normalizes whitespace so values read back from jsonb compare
// equal to what was written.
func compactJSON(t *testing.T, v []byte) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.Compact(&buf, v))
	return buf.String()
}
