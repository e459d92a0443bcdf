package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nbapaper/engine/internal/core/money"
)

func cents(v int64) money.Cents { return money.NewCents(v) }

func TestBookSnapshotTopOfBook(t *testing.T) {
	b := newBook()
	b.applySnapshot(snapshotMsg{
		MarketTicker: "KXNBAGAME-25NOV04LALBOS-Y",
		Seq:          10,
		Yes:          []level{{Price: 44, Qty: 50}, {Price: 43, Qty: 10}},
		No:           []level{{Price: 54, Qty: 20}},
	})

	yesBid, yesAsk, noBid, noAsk := b.topOfBook()
	assert.True(t, yesBid.Equal(cents(44)))
	assert.True(t, noBid.Equal(cents(54)))
	assert.True(t, yesAsk.Equal(cents(46))) // 100 - noBid
	assert.True(t, noAsk.Equal(cents(56)))  // 100 - yesBid
	assert.False(t, b.stale)
}

func TestBookApplyDeltaInSequence(t *testing.T) {
	b := newBook()
	b.applySnapshot(snapshotMsg{MarketTicker: "t", Seq: 1, Yes: []level{{Price: 44, Qty: 50}}})

	ok := b.applyDelta(deltaMsg{MarketTicker: "t", Seq: 2, Side: "yes", Price: 45, Delta: 5})
	assert.True(t, ok)
	assert.Equal(t, int64(5), b.yesLevels[45])
	assert.Equal(t, int64(2), b.seq)
}

func TestBookApplyDeltaZerosOutLevel(t *testing.T) {
	b := newBook()
	b.applySnapshot(snapshotMsg{MarketTicker: "t", Seq: 1, Yes: []level{{Price: 44, Qty: 5}}})
	ok := b.applyDelta(deltaMsg{MarketTicker: "t", Seq: 2, Side: "yes", Price: 44, Delta: -5})
	assert.True(t, ok)
	_, present := b.yesLevels[44]
	assert.False(t, present)
}

func TestBookApplyDeltaSequenceGapRejected(t *testing.T) {
	b := newBook()
	b.applySnapshot(snapshotMsg{MarketTicker: "t", Seq: 1, Yes: []level{{Price: 44, Qty: 5}}})

	ok := b.applyDelta(deltaMsg{MarketTicker: "t", Seq: 5, Side: "yes", Price: 45, Delta: 1})
	assert.False(t, ok)
	// book is unchanged by a rejected delta
	assert.Equal(t, int64(1), b.seq)
}

func TestTopOfBookEmptySideDefaultsToFullDollar(t *testing.T) {
	b := newBook()
	b.applySnapshot(snapshotMsg{MarketTicker: "t", Seq: 1})
	yesBid, yesAsk, noBid, noAsk := b.topOfBook()
	assert.True(t, yesBid.IsZero())
	assert.True(t, noBid.IsZero())
	assert.True(t, yesAsk.Equal(cents(100)))
	assert.True(t, noAsk.Equal(cents(100)))
}

func TestNextBackoffCapsAndGrows(t *testing.T) {
	// 1s doubles to 2s, minus at most 20% jitter
	assert.GreaterOrEqual(t, nextBackoff(reconnectBase), reconnectBase*8/5)

	cur := reconnectBase
	for i := 0; i < 10; i++ {
		cur = nextBackoff(cur)
	}
	assert.LessOrEqual(t, cur, reconnectCap+reconnectCap/5) // cap plus jitter headroom
}
