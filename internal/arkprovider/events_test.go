package arkprovider

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEventLineRoundSigning(t *testing.T) {
	line := []byte(`{"result":{"roundSigning":{"unsignedRoundTx":"cHNidA==","cosignersPubkeys":["aa","bb"],"sweepTapTreeRoot":"deadbeef","sharedOutputAmount":1000}}}`)

	event, err := ParseEventLine(line)
	require.NoError(t, err)
	require.NotNil(t, event.RoundSigning)
	require.Nil(t, event.RoundFailed)
	require.Equal(t, "cHNidA==", event.RoundSigning.UnsignedSettlementTx)
	require.Equal(t, []string{"aa", "bb"}, event.RoundSigning.CosignersPublicKeys)
}

func TestParseEventLineRoundFailed(t *testing.T) {
	line := []byte(`{"result":{"roundFailed":{"reason":"insufficient funds"}}}`)

	event, err := ParseEventLine(line)
	require.NoError(t, err)
	require.NotNil(t, event.RoundFailed)
	require.Equal(t, "insufficient funds", event.RoundFailed.Reason)
}

func TestParseEventLineRejectsEmptyEvent(t *testing.T) {
	_, err := ParseEventLine([]byte(`{"result":{}}`))
	require.Error(t, err)
}

func TestParseEventLineRejectsGarbage(t *testing.T) {
	_, err := ParseEventLine([]byte(`not json`))
	require.Error(t, err)
}
