package mlerr

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessageContainsLocation(t *testing.T) {
	err := &Error{Kind: KindParse, Op: "load", Path: "wine-train.txt", Line: 17, Column: "pH", Msg: "not a number"}
	assert.Equal(t, `parse error: load: wine-train.txt:17: column "pH": not a number`, err.Error())
}

func TestErrorsIsMatchesKindAndCause(t *testing.T) {
	err := Wrap(KindIO, "open", os.ErrPermission)
	wrapped := fmt.Errorf("loading training data: %w", err)

	assert.True(t, errors.Is(wrapped, ErrIO))
	assert.True(t, errors.Is(wrapped, os.ErrPermission))
	assert.False(t, errors.Is(wrapped, ErrParse))
	assert.Equal(t, KindIO, KindOf(wrapped))
}

func TestIsWarning(t *testing.T) {
	assert.True(t, IsWarning(Newf(KindConvergence, "train", "gap %.3g after %d epochs", 0.5, 10)))
	assert.False(t, IsWarning(New(KindData, "train", "no examples")))
	assert.False(t, IsWarning(nil))
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
}
