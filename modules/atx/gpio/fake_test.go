package gpio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeChipOutputs(t *testing.T) {
	chip := NewFakeChip()

	line, err := chip.RequestOutput(17, "test", false)
	require.NoError(t, err)

	_, err = chip.RequestOutput(17, "other", false)
	assert.Error(t, err, "a pin can only be requested once")

	require.NoError(t, line.SetValue(true))
	require.NoError(t, line.SetValue(false))

	value, err := line.Value()
	require.NoError(t, err)
	assert.False(t, value)

	transitions := chip.Transitions()
	require.Len(t, transitions, 2)
	assert.Equal(t, 17, transitions[0].Pin)
	assert.True(t, transitions[0].Value)
	assert.False(t, transitions[1].Value)

	require.NoError(t, line.Close())
	assert.Error(t, line.SetValue(true))
}

func TestFakeChipInputs(t *testing.T) {
	chip := NewFakeChip()
	chip.SetInput(4, true)

	lines, err := chip.RequestInputs([]int{4, 5}, "test")
	require.NoError(t, err)

	values, err := lines.Values()
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, values)

	chip.SetReadError(errors.New("simulated error"))
	_, err = lines.Values()
	assert.EqualError(t, err, "simulated error")
}

func TestFakeChipClose(t *testing.T) {
	chip := NewFakeChip()
	assert.False(t, chip.Closed())

	opened, err := chip.Opener()("gpiochip0")
	require.NoError(t, err)
	require.NoError(t, opened.Close())
	assert.True(t, chip.Closed())
}
