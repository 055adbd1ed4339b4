package convert

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/elfconv/pkg/evtlog"
	"github.com/ssargent/elfconv/pkg/ioabs"
	"github.com/ssargent/elfconv/pkg/record"
	"github.com/ssargent/elfconv/pkg/sid"
)

func TestEscapeUnescapeStringsRoundTrip(t *testing.T) {
	strs := []string{"one", "two|three", `back\slash`, ""}
	escaped := escapeStrings(strs)
	assert.Equal(t, `one|two\|three|back\\slash|`, escaped)
	assert.Equal(t, strs, unescapeStrings(escaped))
}

func TestUnescapeStringsEmptyColumnIsZeroStrings(t *testing.T) {
	assert.Nil(t, unescapeStrings(""))
}

func TestFormatAndParseEventType(t *testing.T) {
	assert.Equal(t, "Information", formatEventType(4))
	assert.Equal(t, "Warning", formatEventType(2))
	assert.Equal(t, "99", formatEventType(99))

	v, err := parseEventType("Warning")
	require.NoError(t, err)
	assert.Equal(t, uint16(2), v)

	v, err = parseEventType("42")
	require.NoError(t, err)
	assert.Equal(t, uint16(42), v)

	_, err = parseEventType("not-a-type")
	assert.Error(t, err)
}

func TestTimeFormatRoundTrip(t *testing.T) {
	const ts = 1000000000
	s := formatTime(ts)
	assert.Equal(t, "2001-09-09 01:46:40", s)
	parsed, err := parseTime(s)
	require.NoError(t, err)
	assert.Equal(t, int64(ts), parsed)
}

func TestCSVToEvtThenEvtToCSVRoundTrip(t *testing.T) {
	csvInput := "4096\n" +
		"1,2000-01-01 00:00:00,2000-01-01 00:00:00,42,Information,0,src,host,,one|two,\n"

	medium := ioabs.NewMemMedium(0)
	stats, err := CSVToEvt(strings.NewReader(csvInput), medium, CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.RecordsWritten)
	assert.Empty(t, stats.Warnings)

	_, err = medium.Seek(0, ioabs.SeekSet)
	require.NoError(t, err)

	var out strings.Builder
	evtStats, err := EvtToCSV(medium, &out, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, evtStats.RecordsWritten)

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "4096", lines[0])
	assert.Contains(t, lines[1], "Information")
	assert.Contains(t, lines[1], "one|two")
}

func TestCSVToEvtWithSIDAndData(t *testing.T) {
	csvInput := "4096\n" +
		"1,2000-01-01 00:00:00,2000-01-01 00:00:00,7,Error,3,src,host,S-1-5-32-544,hello,AQIDBA==\n"

	medium := ioabs.NewMemMedium(0)
	stats, err := CSVToEvt(strings.NewReader(csvInput), medium, CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.RecordsWritten)

	_, err = medium.Seek(0, ioabs.SeekSet)
	require.NoError(t, err)

	var out strings.Builder
	_, err = EvtToCSV(medium, &out, 0)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "S-1-5-32-544")
	assert.Contains(t, out.String(), "AQIDBA==")
}

func TestCSVToEvtSkipsShortRowWithWarning(t *testing.T) {
	csvInput := "4096\n" +
		"1,2000-01-01 00:00:00,2000-01-01 00:00:00,42\n"

	medium := ioabs.NewMemMedium(0)
	stats, err := CSVToEvt(strings.NewReader(csvInput), medium, CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.RecordsWritten)
	assert.Equal(t, 1, stats.RecordsSkipped)
	require.Len(t, stats.Warnings, 1)
	assert.Contains(t, stats.Warnings[0].Message, "want 11")
}

func TestCSVToEvtWarnsOnExtraTrailingFields(t *testing.T) {
	csvInput := "4096\n" +
		"1,2000-01-01 00:00:00,2000-01-01 00:00:00,42,Information,0,src,host,,one,,extra\n"

	medium := ioabs.NewMemMedium(0)
	stats, err := CSVToEvt(strings.NewReader(csvInput), medium, CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.RecordsWritten)
	require.Len(t, stats.Warnings, 1)
	assert.Contains(t, stats.Warnings[0].Message, "extra trailing")
}

func TestCSVToEvtRegressionWithoutRenumberSkipsRow(t *testing.T) {
	csvInput := "4096\n" +
		"5,2000-01-01 00:00:00,2000-01-01 00:00:00,1,Information,0,src,host,,a,\n" +
		"3,2000-01-01 00:00:00,2000-01-01 00:00:00,2,Information,0,src,host,,b,\n"

	medium := ioabs.NewMemMedium(0)
	stats, err := CSVToEvt(strings.NewReader(csvInput), medium, CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.RecordsWritten)
	assert.Equal(t, 1, stats.RecordsSkipped)
	require.Len(t, stats.Warnings, 1)
	assert.Contains(t, stats.Warnings[0].Message, "ignored")
}

func TestCSVToEvtRegressionWithRenumberKeepsRow(t *testing.T) {
	csvInput := "4096\n" +
		"5,2000-01-01 00:00:00,2000-01-01 00:00:00,1,Information,0,src,host,,a,\n" +
		"3,2000-01-01 00:00:00,2000-01-01 00:00:00,2,Information,0,src,host,,b,\n"

	medium := ioabs.NewMemMedium(0)
	stats, err := CSVToEvt(strings.NewReader(csvInput), medium, CSVOptions{Renumber: true})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.RecordsWritten)
	require.Len(t, stats.Warnings, 1)
	assert.Contains(t, stats.Warnings[0].Message, "renumbered")
}

func TestEvtToCSVFromRecordSkipsEarlierRecords(t *testing.T) {
	medium := ioabs.NewMemMedium(0)
	log, err := evtlog.OpenCreate(medium, 4096)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := log.AppendRecord(&record.Contents{
			SourceName:   "src",
			ComputerName: "host",
		}, true)
		require.NoError(t, err)
	}
	require.NoError(t, log.Close())

	_, err = medium.Seek(0, ioabs.SeekSet)
	require.NoError(t, err)

	var out strings.Builder
	stats, err := EvtToCSV(medium, &out, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.RecordsWritten)
}

func TestRecordToRowOmitsSIDWhenAbsent(t *testing.T) {
	c := &record.Contents{
		RecordNumber: 1,
		SourceName:   "src",
		ComputerName: "host",
	}
	row := recordToRow(c)
	assert.Equal(t, "", row[8])
}

func TestRecordToRowIncludesSIDText(t *testing.T) {
	s, err := sid.ParseText("S-1-5-32-544")
	require.NoError(t, err)
	c := &record.Contents{RecordNumber: 1, SID: s}
	row := recordToRow(c)
	assert.Equal(t, "S-1-5-32-544", row[8])
}
