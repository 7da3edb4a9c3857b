package arkscript

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRelativeLocktimeEncodeBlocks(t *testing.T) {
	d := RelativeLocktime{Unit: DelayBlocks, Value: 144}
	seq, err := d.Encode()
	require.NoError(t, err)
	require.Equal(t, uint32(144), seq)
	require.Equal(t, uint32(0), seq&(1<<31), "disable flag must be clear")
}

func TestRelativeLocktimeEncodeBlocksOverflow(t *testing.T) {
	d := RelativeLocktime{Unit: DelayBlocks, Value: 1 << 17}
	_, err := d.Encode()
	require.Error(t, err)
}

func TestRelativeLocktimeEncodeSeconds(t *testing.T) {
	d := RelativeLocktime{Unit: DelaySeconds, Value: 512 * 10}
	seq, err := d.Encode()
	require.NoError(t, err)
	require.Equal(t, uint32(1<<22)|10, seq)
}

func TestRelativeLocktimeEncodeSecondsNotGranular(t *testing.T) {
	d := RelativeLocktime{Unit: DelaySeconds, Value: 100}
	_, err := d.Encode()
	require.Error(t, err)
}

func TestKindOf(t *testing.T) {
	require.Equal(t, LocktimeHeight, KindOf(800_000))
	require.Equal(t, LocktimeMedianTime, KindOf(1_700_000_000))
	require.Equal(t, LocktimeMedianTime, KindOf(LocktimeHeightMTPCutover))
	require.Equal(t, LocktimeHeight, KindOf(LocktimeHeightMTPCutover-1))
}
