package galileo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinBOCSampled(t *testing.T) {
	chips := []int8{1, -1, 1}
	dst := make([]complex64, 6)
	require.NoError(t, SinBOCSampled(chips, dst))
	assert.Equal(t, []complex64{1, -1, -1, 1, 1, -1}, dst)
}

func TestSinBOCSampledShortDestination(t *testing.T) {
	err := SinBOCSampled(make([]int8, 4), make([]complex64, 7))
	assert.Error(t, err)
}

func writeCodeTable(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "codes.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestLoadCodeTable(t *testing.T) {
	path := writeCodeTable(t,
		"# E1-B primary codes",
		"",
		"11 "+strings.Repeat("0", hexCharsPerCode),
		"12 "+strings.Repeat("F", hexCharsPerCode),
	)
	table, err := LoadCodeTable(path)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{11, 12}, table.PRNs())

	chips, err := table.PrimaryCode(11)
	require.NoError(t, err)
	require.Len(t, chips, CodeLengthChips)
	assert.Equal(t, int8(1), chips[0])
	assert.Equal(t, int8(1), chips[CodeLengthChips-1])

	chips, err = table.PrimaryCode(12)
	require.NoError(t, err)
	assert.Equal(t, int8(-1), chips[0])
	assert.Equal(t, int8(-1), chips[CodeLengthChips-1])

	_, err = table.PrimaryCode(13)
	assert.Error(t, err)
}

func TestLoadCodeTableNibbleOrder(t *testing.T) {
	// Leading nibble A = 1010: bit 1 maps to chip -1, MSB first.
	path := writeCodeTable(t, "1 A"+strings.Repeat("0", hexCharsPerCode-1))
	table, err := LoadCodeTable(path)
	require.NoError(t, err)
	chips, err := table.PrimaryCode(1)
	require.NoError(t, err)
	assert.Equal(t, []int8{-1, 1, -1, 1}, chips[:4])
}

func TestLoadCodeTableRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"wrong field count": "11",
		"bad prn":           "zero " + strings.Repeat("0", hexCharsPerCode),
		"prn out of range":  "99 " + strings.Repeat("0", hexCharsPerCode),
		"short hex":         "11 00ff",
		"bad hex char":      "11 " + strings.Repeat("0", hexCharsPerCode-1) + "g",
	}
	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadCodeTable(writeCodeTable(t, line))
			assert.Error(t, err)
		})
	}
}

func TestLoadCodeTableRejectsDuplicatePRN(t *testing.T) {
	line := "7 " + strings.Repeat("0", hexCharsPerCode)
	_, err := LoadCodeTable(writeCodeTable(t, line, line))
	assert.Error(t, err)
}

func TestLoadCodeTableRejectsEmpty(t *testing.T) {
	_, err := LoadCodeTable(writeCodeTable(t, "# nothing here"))
	assert.Error(t, err)
}
