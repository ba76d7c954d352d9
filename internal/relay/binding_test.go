package relay

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"

	"ctpbridge/internal/schema"
	"ctpbridge/pkg/exception"
)

type lifecycleOnly struct {
	connected int
}

func (l *lifecycleOnly) OnFrontConnected()             { l.connected++ }
func (l *lifecycleOnly) OnFrontDisconnected(int)       {}
func (l *lifecycleOnly) OnRtnTrade(*schema.Trade)      {}
func (l *lifecycleOnly) OnRtnOrder(order schema.Order) {}

type noDisconnect struct {
	n int
}

func (n *noDisconnect) OnFrontConnected() {}

type badReturn struct {
	n int
}

func (b *badReturn) OnFrontConnected()       {}
func (b *badReturn) OnFrontDisconnected(int) {}
func (b *badReturn) OnRtnTrade(*schema.Trade) bool {
	return true
}

func TestNewTableBindsMatchingMethods(t *testing.T) {
	table, err := NewTable(&lifecycleOnly{}, TableOptions{})
	require.NoError(t, err)

	assert.Equal(t, []schema.EventKind{
		schema.EventFrontConnected,
		schema.EventFrontDisconnected,
		schema.EventRtnTrade,
	}, table.Kinds())
	assert.Equal(t, "*relay.lifecycleOnly", table.Target())

	b, ok := table.Lookup(schema.EventRtnTrade)
	require.True(t, ok)
	assert.Equal(t, "OnRtnTrade", b.Method)
	assert.Equal(t, []reflect.Type{reflect.TypeFor[*schema.Trade]()}, b.Params)
}

func TestNewTableSkipsSignatureMismatch(t *testing.T) {
	table, err := NewTable(&lifecycleOnly{}, TableOptions{})
	require.NoError(t, err)

	_, ok := table.Lookup(schema.EventRtnOrder)
	assert.False(t, ok)

	table, err = NewTable(&badReturn{}, TableOptions{})
	require.NoError(t, err)
	_, ok = table.Lookup(schema.EventRtnTrade)
	assert.False(t, ok)
}

func TestNewTableFailsOnMissingRequired(t *testing.T) {
	table, err := NewTable(&noDisconnect{}, TableOptions{})
	require.True(t, errors.Is(err, exception.ErrRequiredBinding))
	assert.Nil(t, table)

	table, err = NewTable(&noDisconnect{}, TableOptions{Required: []schema.EventKind{}})
	require.NoError(t, err)
	assert.Equal(t, []schema.EventKind{schema.EventFrontConnected}, table.Kinds())
}

func TestNewTableRequiredOutsideEnabledFails(t *testing.T) {
	_, err := NewTable(&lifecycleOnly{}, TableOptions{
		Enabled: []schema.EventKind{schema.EventRtnTrade},
	})
	require.True(t, errors.Is(err, exception.ErrRequiredBinding))
}

func TestNewTableEnabledSubset(t *testing.T) {
	table, err := NewTable(&lifecycleOnly{}, TableOptions{
		Enabled: []schema.EventKind{schema.EventFrontConnected, schema.EventFrontDisconnected},
	})
	require.NoError(t, err)

	_, ok := table.Lookup(schema.EventRtnTrade)
	assert.False(t, ok)
	assert.Len(t, table.Kinds(), 2)
}

func TestNewTableNilTarget(t *testing.T) {
	_, err := NewTable[lifecycleOnly](nil, TableOptions{})
	require.True(t, errors.Is(err, exception.ErrNilTarget))
}

func TestTableLookupOutOfRange(t *testing.T) {
	table, err := NewTable(&lifecycleOnly{}, TableOptions{})
	require.NoError(t, err)

	_, ok := table.Lookup(schema.EventKind(schema.NumEventKinds + 1))
	assert.False(t, ok)
	_, ok = table.Lookup(schema.EventUnknown)
	assert.False(t, ok)

	var nilTable *Table
	_, ok = nilTable.Lookup(schema.EventFrontConnected)
	assert.False(t, ok)
}

func TestSignatureCoversEveryKind(t *testing.T) {
	for _, kind := range schema.EventKinds() {
		sig := Signature(kind)
		switch kind.Spec().Shape {
		case schema.ShapeNotify:
			assert.Empty(t, sig, kind.String())
		default:
			require.NotEmpty(t, sig, kind.String())
			for _, p := range sig {
				assert.NotNil(t, p, kind.String())
			}
		}
	}
}
