package csvrec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAllRows(t *testing.T, input string) [][]string {
	t.Helper()
	r := NewReader(strings.NewReader(input))
	var rows [][]string
	for {
		row, err := r.ReadRow()
		if err == ErrDone {
			break
		}
		require.NoError(t, err)
		rows = append(rows, row)
	}
	return rows
}

func TestSimpleCommaSeparated(t *testing.T) {
	rows := readAllRows(t, "a,b,c\n1,2,3\n")
	assert.Equal(t, [][]string{{"a", "b", "c"}, {"1", "2", "3"}}, rows)
}

func TestQuotedFieldWithComma(t *testing.T) {
	rows := readAllRows(t, `a,"b,c",d`+"\n")
	assert.Equal(t, [][]string{{"a", "b,c", "d"}}, rows)
}

func TestDoubledQuoteIsLiteralQuote(t *testing.T) {
	rows := readAllRows(t, `"say ""hi""",ok`+"\n")
	assert.Equal(t, [][]string{{`say "hi"`, "ok"}}, rows)
}

func TestEndOfRecordVariants(t *testing.T) {
	assert.Equal(t, [][]string{{"a", "b"}}, readAllRows(t, "a,b\r\n"))
	assert.Equal(t, [][]string{{"a", "b"}}, readAllRows(t, "a,b\r"))
	assert.Equal(t, [][]string{{"a", "b"}}, readAllRows(t, "a,b\n"))
}

func TestFinalRowWithoutTrailingNewline(t *testing.T) {
	rows := readAllRows(t, "a,b,c")
	assert.Equal(t, [][]string{{"a", "b", "c"}}, rows)
}

func TestEmptyInputYieldsNoRows(t *testing.T) {
	rows := readAllRows(t, "")
	assert.Empty(t, rows)
}

func TestWriterQuotesOnlyWhenNeeded(t *testing.T) {
	var buf strings.Builder
	w := NewWriter(&buf)
	require.NoError(t, w.WriteRow([]string{"plain", "has,comma", `has"quote`, "has\nnewline", ""}))
	assert.Equal(t, "plain,\"has,comma\",\"has\"\"quote\",\"has\nnewline\",\"\"\n", buf.String())
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	fields := []string{"alpha", "be,ta", `gam"ma`, "", "delta\r\nline"}
	var buf strings.Builder
	w := NewWriter(&buf)
	require.NoError(t, w.WriteRow(fields))

	rows := readAllRows(t, buf.String())
	require.Len(t, rows, 1)
	assert.Equal(t, fields, rows[0])
}
