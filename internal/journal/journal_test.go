package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speters/genielink/genie"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestHandleFrameAndRecent(t *testing.T) {
	j := openTemp(t)
	ctx := context.Background()

	frames := []genie.Frame{
		genie.NewFrame(genie.ReportEvent, genie.WinButton, 1, 1),
		genie.NewFrame(genie.ReportObj, genie.Gauge, 2, 500),
		genie.NewFrame(genie.ReportEvent, genie.Slider, 0, 42),
	}
	for _, f := range frames {
		require.NoError(t, j.HandleFrame(ctx, "display", f))
	}

	recs, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	byObject := map[string]Record{}
	for _, r := range recs {
		assert.Equal(t, "display", r.Link)
		assert.Len(t, r.ID, 36)
		byObject[r.Object] = r
	}
	assert.Equal(t, "report", byObject["Gauge"].Command)
	assert.Equal(t, uint16(500), byObject["Gauge"].Value)
	assert.Equal(t, uint8(2), byObject["Gauge"].Index)
	assert.Equal(t, "event", byObject["Slider"].Command)
	assert.Equal(t, "070400002a29", byObject["Slider"].Raw)

	recs, err = j.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestRecentEmpty(t *testing.T) {
	j := openTemp(t)
	recs, err := j.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
}
