package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReleaseRunsOnce(t *testing.T) {
	calls := 0
	f := NewStoredFile("id", "a.pdf", "/tmp/a.pdf", func() error {
		calls++
		return errors.New("gone")
	})

	assert.EqualError(t, f.Release(), "gone")
	assert.EqualError(t, f.Release(), "gone")
	assert.Equal(t, 1, calls)

	var missing *StoredFile
	assert.NoError(t, missing.Release())
}

func TestReleaseAllReleasesEveryFile(t *testing.T) {
	released := 0
	mk := func(err error) *StoredFile {
		return NewStoredFile("", "", "", func() error { released++; return err })
	}
	first := errors.New("first")
	err := ReleaseAll([]*StoredFile{mk(nil), mk(first), nil, mk(errors.New("second"))})

	assert.Same(t, first, err)
	assert.Equal(t, 3, released)
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("disk full")
	tests := []struct {
		name    string
		err     error
		kind    ErrorKind
		outcome Outcome
	}{
		{"rejected", Rejected("merge", "send a PDF"), KindInputRejected, OutcomeRejected},
		{"conversion", ConversionFailed("combine", cause), KindConversionFailure, OutcomeFailed},
		{"transport", TransportFailed("send", cause), KindTransportFailure, OutcomeFailed},
		{"wrapped", fmt.Errorf("step: %w", Rejected("extract", "bad range")), KindInputRejected, OutcomeRejected},
		{"plain error", cause, KindConversionFailure, OutcomeFailed},
		{"nil", nil, KindConversionFailure, OutcomeSuccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err != nil {
				assert.Equal(t, tt.kind, KindOf(tt.err))
			}
			assert.Equal(t, tt.outcome, OutcomeOf(tt.err))
		})
	}
}

func TestTransportKeepsExistingKind(t *testing.T) {
	assert.NoError(t, Transport("send", nil))

	plain := errors.New("reset by peer")
	wrapped := Transport("send", plain)
	assert.Equal(t, KindTransportFailure, KindOf(wrapped))
	assert.ErrorIs(t, wrapped, plain)

	rejected := Rejected("merge", "nope")
	assert.Same(t, rejected, Transport("send", rejected))
}

func TestOpErrorMessage(t *testing.T) {
	assert.Equal(t, "[input_rejected] merge: send a PDF", Rejected("merge", "send a PDF").Error())
	assert.Equal(t, "[conversion_failure] combine: no text found", ConversionFailed("combine", ErrNoText).Error())
	assert.ErrorIs(t, ConversionFailed("ocr", ErrNoText), ErrNoText)
}

func TestIdentityKeyIsUser(t *testing.T) {
	assert.Equal(t, int64(5), Identity{UserID: 5, ChatID: 9}.Key())
}
