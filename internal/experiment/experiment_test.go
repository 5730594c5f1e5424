package experiment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(reply string) GeneratorFunc {
	return func(ctx context.Context, prompt string) (string, error) {
		return reply, nil
	}
}

func TestRunKinds(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{SelfReference, "I am a model."},
		{Mirror, "You said: I am a model."},
		{Code, "I am a model."},
		{Consciousness, "I am a model."},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			res, err := Run(context.Background(), echo("I am a model."), tt.kind, "Who are you?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Response)
			assert.Equal(t, "Who are you?", res.Prompt)
			assert.Equal(t, tt.kind, res.Kind)
		})
	}
}

func TestRunUnknownKind(t *testing.T) {
	_, err := Run(context.Background(), echo("x"), "telepathy", "hi")
	assert.True(t, errors.Is(err, ErrUnknownKind))
}

func TestRunGeneratorError(t *testing.T) {
	boom := errors.New("no model loaded")
	gen := GeneratorFunc(func(ctx context.Context, prompt string) (string, error) { return "", boom })

	_, err := Run(context.Background(), gen, Mirror, "hi")
	assert.True(t, errors.Is(err, boom))
}

func TestKinds(t *testing.T) {
	assert.Equal(t, []Kind{Code, Consciousness, Mirror, SelfReference}, Kinds())
	for _, k := range Kinds() {
		assert.NotEmpty(t, Describe(k))
	}
}
