package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"converser/pkg/converse"
	"converser/pkg/memory"
	"converser/pkg/message"
	"converser/pkg/stream"
	"converser/pkg/tooluse"
)

type echoClient struct{}

func (echoClient) Converse(ctx context.Context, req *converse.Request) (*converse.Response, error) {
	last := req.Messages[len(req.Messages)-1]
	return &converse.Response{
		Message:    message.AssistantText("echo: " + last.Text()),
		StopReason: "end_turn",
		Usage:      stream.Usage{InputTokens: 1, OutputTokens: 2},
	}, nil
}

func (echoClient) ConverseStream(ctx context.Context, req *converse.Request) (stream.Source, error) {
	return stream.NewSliceSource(), nil
}

func TestTurnGraph(t *testing.T) {
	ctx := context.Background()
	c, err := converse.New(echoClient{}, "m", converse.WithMemory(memory.New()))
	require.NoError(t, err)
	r, err := buildTurnGraph(ctx, c)
	require.NoError(t, err)

	out, err := r.Invoke(ctx, &TurnInput{Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", out.Reply)
	assert.Equal(t, "end_turn", out.StopReason)
	assert.Equal(t, 2, out.History)

	_, err = r.Invoke(ctx, &TurnInput{})
	assert.Error(t, err)

	_, err = r.Invoke(ctx, &TurnInput{File: "notes.rtf", Kind: "document"})
	assert.Error(t, err)
	assert.Equal(t, 2, c.Memory().Len())
}

func TestSchemaGraph(t *testing.T) {
	ctx := context.Background()
	r, err := buildSchemaGraph(ctx)
	require.NoError(t, err)

	d, err := r.Invoke(ctx, &SchemaInput{
		Name:   "get_weather",
		Doc:    "Get the weather.\n\nArgs:\n    city: city name\n",
		Params: []tooluse.Param{{Name: "city", Type: "str", Required: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, "get_weather", d.Name)
	assert.Equal(t, "Get the weather.", d.Description)
	assert.Equal(t, []string{"city"}, tooluse.RequiredOf(*d))

	_, err = r.Invoke(ctx, &SchemaInput{Name: "x"})
	assert.Error(t, err)
}
