package sink

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plain-name.pdf", "plain-name.pdf"},
		{`inv/oice:2024*.pdf`, "inv_oice_2024_.pdf"},
		{`a\b?c"d<e>f|g`, "a_b_c_d_e_f_g"},
		{"tab\there.pdf", "tab_here.pdf"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Sanitize(tc.in))
	}
}

func TestSanitizeRemovesEveryDisallowedCharacter(t *testing.T) {
	out := Sanitize(`/\:*?"<>|` + "\x00\x1f")
	for _, r := range `/\:*?"<>|` {
		assert.NotContains(t, out, string(r))
	}
}

func TestPathIsDeterministic(t *testing.T) {
	delivered := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)

	first := Path("/dest", delivered, "example.com", "october-invoice.pdf")
	second := Path("/dest", delivered, "example.com", "october-invoice.pdf")

	assert.Equal(t, first, second)
	assert.Equal(t, filepath.Join("/dest", "2024-03", "2024-03-05_example.com_october-invoice.pdf"), first)
}

func TestPathSanitizesName(t *testing.T) {
	delivered := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	got := Path("/dest", delivered, "example.com", `oct/invoice?.pdf`)
	assert.Equal(t, filepath.Join("/dest", "2024-03", "2024-03-05_example.com_oct_invoice_.pdf"), got)
}

func TestWriteCreatesDirsAndIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "2024-03", "2024-03-05_example.com_invoice.pdf")

	written, err := Write(path, []byte("first"))
	require.NoError(t, err)
	assert.True(t, written)

	// Second write with identical path is a skip, not an overwrite.
	written, err = Write(path, []byte("second"))
	require.NoError(t, err)
	assert.False(t, written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}
