package errors

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecover(t *testing.T) {
	t.Run("no panic leaves the error untouched", func(t *testing.T) {
		run := func() (err error) {
			defer Recover(&err, "noop")
			return io.EOF
		}
		assert.Equal(t, io.EOF, run())
	})

	t.Run("panic with an error value keeps it as the cause", func(t *testing.T) {
		run := func() (err error) {
			defer Recover(&err, "fill form")
			panic(io.ErrUnexpectedEOF)
		}

		err := run()
		require.Error(t, err)
		assert.True(t, Is(err, ErrorTypeDocument))
		assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
		assert.Contains(t, err.Error(), "fill form: malformed document")
	})

	t.Run("panic with a string", func(t *testing.T) {
		run := func() (err error) {
			defer Recover(&err, "stamp template")
			panic("index out of range")
		}

		err := run()
		require.Error(t, err)
		assert.Equal(t, ErrorTypeDocument, TypeOf(err))
		assert.Contains(t, err.Error(), "index out of range")
	})
}
