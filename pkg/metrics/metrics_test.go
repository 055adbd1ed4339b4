package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordConvertedIncrementsOKCounter(t *testing.T) {
	m := New()
	m.RecordConverted("evt2csv")
	m.RecordConverted("evt2csv")
	m.RecordWarned("evt2csv")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.recordsTotal.WithLabelValues("evt2csv", statusOK)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.recordsTotal.WithLabelValues("evt2csv", statusWarned)))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.recordsTotal.WithLabelValues("evt2csv", statusSkipped)))
}

func TestRecordEvictionAndBytesCounters(t *testing.T) {
	m := New()
	m.RecordEviction()
	m.RecordEviction()
	m.AddBytesRead(100)
	m.AddBytesRead(50)
	m.AddBytesWritten(30)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.evictionsTotal))
	assert.Equal(t, float64(150), testutil.ToFloat64(m.bytesRead))
	assert.Equal(t, float64(30), testutil.ToFloat64(m.bytesWritten))
}

func TestAddBytesIgnoresNonPositive(t *testing.T) {
	m := New()
	m.AddBytesRead(0)
	m.AddBytesRead(-5)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.bytesRead))
}
