package connection

import (
	"encoding/json"
	"testing"

	"market-viewer/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeListAcceptsObjectOrArray(t *testing.T) {
	one, err := decodeList[models.MCandle](json.RawMessage(`{"bucketStartSec":60}`))
	require.NoError(t, err)
	require.Len(t, one, 1)

	many, err := decodeList[models.MCandle](json.RawMessage(` [{"bucketStartSec":60},{"bucketStartSec":120}]`))
	require.NoError(t, err)
	assert.Len(t, many, 2)

	none, err := decodeList[models.MCandle](json.RawMessage(`null`))
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = decodeList[models.MCandle](json.RawMessage(`"x"`))
	assert.Error(t, err)
}

func TestIsBareArray(t *testing.T) {
	assert.True(t, isBareArray([]byte("  \n[1]")))
	assert.False(t, isBareArray([]byte(`{"type":"pong"}`)))
	assert.False(t, isBareArray(nil))
}

func TestEncodeCommands(t *testing.T) {
	data, err := encodeSubscribe(sub("a", "22", "1", "bid"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"subscribe","venueId":"22","symbolId":"1","channel":"bid","window":3600}`, string(data))

	data, err = encodeUnsubscribe(models.MInstrumentKey{VenueID: "22", SymbolID: "1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"unsubscribe","venueId":"22","symbolId":"1"}`, string(data))

	assert.JSONEq(t, `{"type":"ping"}`, string(pingFrame))
}
