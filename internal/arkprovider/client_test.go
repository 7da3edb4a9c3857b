package arkprovider

import (
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestGetVtxosPopulatesOutpointAndScript covers the wire->domain mapping
// for the two vtxos of a multi-vtxo response: every field decoded off the
// wire, including the outpoint and script, must land on the returned
// ark.Vtxo, since internal/store upserts vtxos keyed on (txid, vout) and a
// shared zero outpoint would silently collapse distinct vtxos onto one
// cache row.
func TestGetVtxosPopulatesOutpointAndScript(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"vtxos":[
			{"outpoint":"` + txidA + `:0","amount":"1000","script":"` + scriptAHex + `","status":"pending"},
			{"outpoint":"` + txidB + `:1","amount":"2000","script":"` + scriptBHex + `","status":"settled"}
		]}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	vtxos, err := client.GetVtxos(t.Context(), "some-address")
	require.NoError(t, err)
	require.Len(t, vtxos, 2)

	require.Equal(t, txidA, vtxos[0].Outpoint.Txid)
	require.EqualValues(t, 0, vtxos[0].Outpoint.Vout)
	require.Equal(t, uint64(1000), vtxos[0].Value)
	require.Equal(t, scriptABytes, vtxos[0].Script)

	require.Equal(t, txidB, vtxos[1].Outpoint.Txid)
	require.EqualValues(t, 1, vtxos[1].Outpoint.Vout)
	require.Equal(t, uint64(2000), vtxos[1].Value)
	require.Equal(t, scriptBBytes, vtxos[1].Script)

	// The two vtxos must not collapse onto the same outpoint.
	require.NotEqual(t, vtxos[0].Outpoint, vtxos[1].Outpoint)
}

func TestGetVtxosRejectsMalformedOutpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"vtxos":[{"outpoint":"not-an-outpoint","amount":"1000","script":"` + scriptAHex + `","status":"pending"}]}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	_, err := client.GetVtxos(t.Context(), "some-address")
	require.Error(t, err)
}

const (
	txidA      = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	txidB      = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	scriptAHex = "5120" + txidA
	scriptBHex = "5120" + txidB
)

var (
	scriptABytes = mustHexBytes(scriptAHex)
	scriptBBytes = mustHexBytes(scriptBHex)
)

func mustHexBytes(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}
