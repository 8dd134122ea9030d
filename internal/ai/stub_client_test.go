package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubEchoesInput(t *testing.T) {
	c := NewStubClient()
	out, err := c.Generate(context.Background(), "Fix it.\n\nInput: Helo wrld\n\nCorrected:", GenerateParams{})
	require.NoError(t, err)
	assert.Equal(t, "Helo wrld", out)
}

func TestStubKeepsMultilineInput(t *testing.T) {
	assert.Equal(t, "a\n\nb", EchoInput("x\n\nInput: a\n\nb\n\nRewritten:"))
	assert.Equal(t, "no marker", EchoInput("no marker"))
}

func TestStubHonoursCancellation(t *testing.T) {
	cause := errors.New("request superseded")
	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(cause)

	_, err := NewStubClient().Generate(ctx, "Input: x\n\nCorrected:", GenerateParams{})
	assert.ErrorIs(t, err, cause)
}
