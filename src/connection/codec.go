package connection

import (
	"bytes"
	"encoding/json"

	"market-viewer/src/helpers"
	"market-viewer/src/models"
)

// -----------------------------------------------------------------------------
// Wire codec
// -----------------------------------------------------------------------------

var pingFrame = mustMarshal(models.MPingCommand{Type: models.FramePing})

func mustMarshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

// -----------------------------------------------------------------------------

// isBareArray reports whether the frame is a top level JSON array.
func isBareArray(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

// -----------------------------------------------------------------------------

// decodeList accepts either a single object or an array of T.
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, helpers.NewProtocolError("invalid list payload", err)
		}
		return items, nil
	}
	var item T
	if err := json.Unmarshal(trimmed, &item); err != nil {
		return nil, helpers.NewProtocolError("invalid payload", err)
	}
	return []T{item}, nil
}

// -----------------------------------------------------------------------------

func decodeFrame(data []byte) (models.MInboundFrame, error) {
	var frame models.MInboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return frame, helpers.NewProtocolError("invalid frame", err)
	}
	return frame, nil
}

// -----------------------------------------------------------------------------

func encodeSubscribe(sub models.MSubscription) ([]byte, error) {
	return json.Marshal(models.NewSubscribeCommand(sub))
}

func encodeUnsubscribe(key models.MInstrumentKey) ([]byte, error) {
	return json.Marshal(models.NewUnsubscribeCommand(key))
}
