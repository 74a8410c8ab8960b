package bot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"vidrelay/app/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyEditError(t *testing.T) {
	assert.NoError(t, classifyEditError(nil))
	assert.NoError(t, classifyEditError(errors.New("Bad Request: message is not modified")))
	assert.ErrorIs(t, classifyEditError(errors.New("Bad Request: message to edit not found")), service.ErrMessageGone)
	assert.ErrorIs(t, classifyEditError(errors.New("Bad Request: message can't be edited")), service.ErrMessageGone)

	err := classifyEditError(errors.New("Too Many Requests: retry after 3"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, service.ErrMessageGone)
}

func TestMarkup(t *testing.T) {
	assert.Nil(t, Markup(nil))

	m := Markup(service.Keyboard{
		{{Text: "a", Data: "x:1"}, {Text: "b", URL: "https://t.me/c"}},
		{{Text: "c", Data: "x:2"}},
	})
	require.NotNil(t, m)
	require.Len(t, m.InlineKeyboard, 2)
	assert.Equal(t, "x:1", *m.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "https://t.me/c", *m.InlineKeyboard[0][1].URL)
	assert.Len(t, m.InlineKeyboard[1], 1)
}

func TestCountingReader(t *testing.T) {
	var last int64
	cr := &countingReader{
		r:     bytes.NewReader(make([]byte, 10)),
		total: 10,
		report: func(written, total int64) {
			last = written
			assert.EqualValues(t, 10, total)
		},
	}
	n, err := io.Copy(io.Discard, cr)
	require.NoError(t, err)
	assert.EqualValues(t, 10, n)
	assert.EqualValues(t, 10, last)
}

func TestCountingReaderStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reports := 0
	cr := &countingReader{
		ctx:    ctx,
		r:      bytes.NewReader(make([]byte, 64)),
		total:  64,
		report: func(int64, int64) { reports++ },
	}

	buf := make([]byte, 16)
	n, err := cr.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 16, n)

	cancel()
	n, err = cr.Read(buf)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
	assert.Equal(t, 1, reports)
	assert.EqualValues(t, 16, cr.written.Load())
}
