package mdg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"

	"ctpbridge/pkg/exception"
)

func TestGeneratorWalk(t *testing.T) {
	g, err := NewGenerator(Config{BasePrice: 3500, TickSize: 1, Spread: 1, BaseSize: 10, Seed: 7})
	require.NoError(t, err)

	now := time.Date(2024, 1, 15, 9, 30, 1, 250*int(time.Millisecond), time.Local)
	first := g.Next("rb2405", now)
	assert.Equal(t, "rb2405", first.InstrumentID)
	assert.Equal(t, 3500.0, first.LastPrice)
	assert.Equal(t, 3499.0, first.BidPrice1)
	assert.Equal(t, 3501.0, first.AskPrice1)
	assert.Equal(t, "09:30:01", first.UpdateTime)
	assert.Equal(t, int32(250), first.UpdateMillisec)

	prev := first
	for i := 0; i < 100; i++ {
		next := g.Next("rb2405", now)
		assert.InDelta(t, prev.LastPrice, next.LastPrice, 2)
		assert.Greater(t, next.Volume, prev.Volume)
		assert.GreaterOrEqual(t, next.BidVolume1, int32(1))
		assert.LessOrEqual(t, next.AskVolume1, int32(10))
		prev = next
	}

	// instruments walk independently
	assert.Equal(t, 3500.0, g.Next("IF2401", now).LastPrice)
}

func TestGeneratorSeeded(t *testing.T) {
	cfg := Config{BasePrice: 100, TickSize: 0.5, BaseSize: 5, Seed: 42}
	a, err := NewGenerator(cfg)
	require.NoError(t, err)
	b, err := NewGenerator(cfg)
	require.NoError(t, err)

	now := time.Now()
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Next("au2406", now), b.Next("au2406", now))
	}
}

func TestNewGeneratorRejects(t *testing.T) {
	_, err := NewGenerator(Config{TickSize: 1})
	require.True(t, errors.Is(err, exception.ErrInvalidArgument))
	_, err = NewGenerator(Config{BasePrice: 1})
	require.True(t, errors.Is(err, exception.ErrInvalidArgument))
}
