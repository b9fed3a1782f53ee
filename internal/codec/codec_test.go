package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []*Record{
		NewOrderNewRecord(1, 1000, OrderNewPayload{
			ClientOrderID: "ORDER-001",
			Symbol:        "BTCUSDT",
			Side:          SideBuy,
			OrderType:     OrderTypeLimit,
			TimeInForce:   "GTC",
			OriginalQty:   1.0,
			HasLimitPrice: true,
			LimitPrice:    50000.0,
		}),
		NewOrderNewRecord(2, 1001, OrderNewPayload{
			ClientOrderID: "ORDER-002",
			Symbol:        "ETHUSDT",
			Side:          SideSell,
			OrderType:     OrderTypeMarket,
			TimeInForce:   "IOC",
			OriginalQty:   2.5,
			HasLimitPrice: false,
		}),
		NewOrderUpdateRecord(3, 1002, OrderUpdatePayload{
			ClientOrderID:   "ORDER-001",
			ExchangeOrderID: "EX-1",
			Status:          StatusAcknowledged,
			Reason:          "",
		}),
		NewOrderCancelRecord(4, 1003, OrderUpdatePayload{
			ClientOrderID:   "ORDER-001",
			ExchangeOrderID: "EX-1",
			Status:          StatusCanceled,
			Reason:          "user requested",
		}),
		NewOrderFillRecord(5, 1004, OrderFillPayload{
			ClientOrderID: "ORDER-001",
			Symbol:        "BTCUSDT",
			Qty:           0.5,
			Price:         50000.0,
		}),
		NewCheckpointRecord(6, 1005, CheckpointPayload{
			Orders: []OrderSnapshotEntry{
				{
					ClientOrderID:   "ORDER-001",
					ExchangeOrderID: "EX-1",
					Symbol:          "BTCUSDT",
					Side:            SideBuy,
					OrderType:       OrderTypeLimit,
					TimeInForce:     "GTC",
					OriginalQty:     1.0,
					HasLimitPrice:   true,
					LimitPrice:      50000.0,
					ExecutedQty:     0.5,
					AvgPrice:        50000.0,
					Status:          StatusPartiallyFilled,
					LastUpdateNs:    1004,
				},
			},
		}),
		NewCheckpointRecord(7, 1006, CheckpointPayload{Orders: nil}),
		NewRotationMarkerRecord(8, 1007),
	}

	for _, rec := range cases {
		t.Run(rec.Kind.String(), func(t *testing.T) {
			encoded, err := Encode(rec)
			require.NoError(t, err)

			decoded, n, err := Decode(encoded)
			require.NoError(t, err)
			require.Equal(t, len(encoded), n)
			require.Equal(t, rec.Sequence, decoded.Sequence)
			require.Equal(t, rec.TimestampNs, decoded.TimestampNs)
			require.Equal(t, rec.Kind, decoded.Kind)

			reencoded, err := Encode(decoded)
			require.NoError(t, err)
			require.Equal(t, encoded, reencoded, "encode(decode(bytes)) must equal bytes")
		})
	}
}

func TestDecodeEndOfStream(t *testing.T) {
	_, _, err := Decode(make([]byte, HeaderSize-1))
	require.ErrorIs(t, err, ErrEndOfStream)
}

func TestDecodeCorruptHeaderBadMagic(t *testing.T) {
	rec := NewOrderFillRecord(1, 1, OrderFillPayload{ClientOrderID: "X", Symbol: "Y", Qty: 1, Price: 2})
	buf, err := Encode(rec)
	require.NoError(t, err)
	buf[0] ^= 0xFF
	_, _, err = Decode(buf)
	require.ErrorIs(t, err, ErrCorruptHeader)
}

func TestDecodeCorruptHeaderBadVersion(t *testing.T) {
	rec := NewOrderFillRecord(1, 1, OrderFillPayload{ClientOrderID: "X", Symbol: "Y", Qty: 1, Price: 2})
	buf, err := Encode(rec)
	require.NoError(t, err)
	buf[4] = 99
	_, _, err = Decode(buf)
	require.ErrorIs(t, err, ErrCorruptHeader)
}

func TestDecodeTruncated(t *testing.T) {
	rec := NewOrderNewRecord(1, 1, OrderNewPayload{
		ClientOrderID: "ORDER-001", Symbol: "BTCUSDT", Side: SideBuy,
		OrderType: OrderTypeLimit, TimeInForce: "GTC", OriginalQty: 1.0,
		HasLimitPrice: true, LimitPrice: 50000.0,
	})
	buf, err := Encode(rec)
	require.NoError(t, err)
	for n := 1; n < len(buf); n++ {
		truncated := buf[:len(buf)-n]
		_, _, err := Decode(truncated)
		if len(truncated) < HeaderSize {
			require.ErrorIs(t, err, ErrEndOfStream)
		} else {
			require.ErrorIs(t, err, ErrTruncated)
		}
	}
}

func TestDecodeCorruptPayloadBitFlip(t *testing.T) {
	rec := NewOrderFillRecord(1, 1, OrderFillPayload{ClientOrderID: "ORDER-001", Symbol: "BTCUSDT", Qty: 0.5, Price: 50000.0})
	buf, err := Encode(rec)
	require.NoError(t, err)
	// flip bit 7 of a byte inside the payload region.
	buf[HeaderSize+2] ^= 1 << 7
	_, _, err = Decode(buf)
	require.ErrorIs(t, err, ErrCorruptPayload)
}

func TestStatusIsTerminal(t *testing.T) {
	require.True(t, StatusFilled.IsTerminal())
	require.True(t, StatusCanceled.IsTerminal())
	require.True(t, StatusRejected.IsTerminal())
	require.False(t, StatusPendingNew.IsTerminal())
	require.False(t, StatusAcknowledged.IsTerminal())
	require.False(t, StatusPartiallyFilled.IsTerminal())
}

func TestPayloadValidateRejectsOversizedFields(t *testing.T) {
	long := func(n int) string {
		b := make([]byte, n)
		for i := range b {
			b[i] = 'a'
		}
		return string(b)
	}

	require.NoError(t, OrderNewPayload{ClientOrderID: "O-1", Symbol: "BTCUSDT"}.Validate())
	require.ErrorIs(t, OrderNewPayload{ClientOrderID: long(MaxClientOrderIDLen + 1)}.Validate(), ErrFieldTooLong)
	require.ErrorIs(t, OrderNewPayload{ClientOrderID: "O-1", Symbol: long(MaxSymbolLen + 1)}.Validate(), ErrFieldTooLong)

	require.NoError(t, OrderUpdatePayload{ClientOrderID: "O-1", Reason: "ok"}.Validate())
	require.ErrorIs(t, OrderUpdatePayload{ClientOrderID: "O-1", Reason: long(MaxReasonLen + 1)}.Validate(), ErrFieldTooLong)

	require.NoError(t, OrderFillPayload{ClientOrderID: "O-1", Symbol: "BTCUSDT"}.Validate())
	require.ErrorIs(t, OrderFillPayload{ClientOrderID: "O-1", Symbol: long(MaxSymbolLen + 1)}.Validate(), ErrFieldTooLong)
}
