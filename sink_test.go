package nebula

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	items    []interface{}
	terminal int
	err      error
}

func (r *recordingSink) Next(item interface{}) { r.items = append(r.items, item) }
func (r *recordingSink) Complete()              { r.terminal++ }
func (r *recordingSink) Error(err error)        { r.terminal++; r.err = err }

func TestTerminalGuardOnlyOneTerminal(t *testing.T) {
	rec := &recordingSink{}
	g := guardSink(rec)

	g.Next(1)
	g.Complete()
	g.Error(errors.New("too late"))
	g.Next(2)
	g.Complete()

	require.Equal(t, []interface{}{1}, rec.items, "Next after terminal must be dropped")
	require.Equal(t, 1, rec.terminal, "exactly one terminal call must reach the underlying sink")
	require.Nil(t, rec.err)
}

func TestTerminalGuardErrorWins(t *testing.T) {
	rec := &recordingSink{}
	g := guardSink(rec)

	boom := errors.New("boom")
	g.Error(boom)
	g.Complete()

	require.Equal(t, 1, rec.terminal)
	require.Equal(t, boom, rec.err)
}

func TestChannelSinkCompleteClosesItems(t *testing.T) {
	cs := NewChannelSink(4)
	cs.Next("a")
	cs.Next("b")
	cs.Complete()

	var got []interface{}
	for item := range cs.Items() {
		got = append(got, item)
	}
	require.Equal(t, []interface{}{"a", "b"}, got)
	require.NoError(t, cs.Err())
}

func TestChannelSinkErrorClosesItemsAndSetsErr(t *testing.T) {
	cs := NewChannelSink(4)
	cs.Next("a")
	boom := errors.New("boom")
	cs.Error(boom)

	var got []interface{}
	for item := range cs.Items() {
		got = append(got, item)
	}
	require.Equal(t, []interface{}{"a"}, got)
	require.Equal(t, boom, cs.Err())
}
