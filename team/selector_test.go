package team

import (
	"context"
	"testing"

	"github.com/jkmaina/autogen-blueprint/api"
	"github.com/jkmaina/autogen-blueprint/provider"
	"github.com/jkmaina/autogen-blueprint/termination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSelectorValidation(t *testing.T) {
	agent, _ := newScriptedAgent("solo", say("hi"))

	_, err := NewSelector(nil, []api.Agent{agent})
	require.Error(t, err)

	_, err = NewSelector(scriptedModel{prov: &scriptedProvider{script: []provider.StreamEvent{say("x")}}}, nil)
	require.Error(t, err)

	_, err = NewSelector(
		scriptedModel{prov: &scriptedProvider{script: []provider.StreamEvent{say("x")}}},
		[]api.Agent{agent},
		WithSelectorPrompt("{{.Broken"),
	)
	require.Error(t, err)
}

func TestSelectorFollowsModelChoice(t *testing.T) {
	researcher, researcherProv := newScriptedAgent("researcher", say("research ready"))
	writer, writerProv := newScriptedAgent("writer", say("report written. TASK_COMPLETE"))

	selectorProv := &scriptedProvider{script: []provider.StreamEvent{
		say("researcher"),
		say("writer"),
	}}

	team, err := NewSelector(
		scriptedModel{prov: selectorProv},
		[]api.Agent{researcher, writer},
		WithTermination(termination.TextMention("TASK_COMPLETE")),
	)
	require.NoError(t, err)

	result, err := team.Run(context.Background(), "write a report")
	require.NoError(t, err)

	assert.Equal(t, 1, researcherProv.callCount())
	assert.Equal(t, 1, writerProv.callCount())
	assert.Equal(t, 2, selectorProv.callCount())
	assert.Contains(t, result.StopReason, "TASK_COMPLETE")
}

func TestSelectorFallsBackToRoundRobin(t *testing.T) {
	first, firstProv := newScriptedAgent("first", say("turn taken"))
	second, secondProv := newScriptedAgent("second", say("all finished. DONE"))

	// the selector keeps answering nonsense
	selectorProv := &scriptedProvider{script: []provider.StreamEvent{say("the weather is nice")}}

	team, err := NewSelector(
		scriptedModel{prov: selectorProv},
		[]api.Agent{first, second},
		WithTermination(termination.TextMention("DONE")),
	)
	require.NoError(t, err)

	result, err := team.Run(context.Background(), "go")
	require.NoError(t, err)

	// fallback rotates: first, then second
	assert.Equal(t, 1, firstProv.callCount())
	assert.Equal(t, 1, secondProv.callCount())
	assert.Contains(t, result.StopReason, "DONE")
}

func TestSelectorDisallowsRepeatByDefault(t *testing.T) {
	only, onlyProv := newScriptedAgent("speaker", say("mine"), say("mine again. DONE"))
	other, otherProv := newScriptedAgent("other", say("other talks"))

	// model always picks the same speaker; with repeats disallowed the second
	// selection falls back to rotation
	selectorProv := &scriptedProvider{script: []provider.StreamEvent{say("speaker")}}

	team, err := NewSelector(
		scriptedModel{prov: selectorProv},
		[]api.Agent{only, other},
		WithTermination(termination.MaxMessages(3)),
	)
	require.NoError(t, err)

	_, err = team.Run(context.Background(), "go")
	require.NoError(t, err)

	assert.Equal(t, 1, onlyProv.callCount())
	assert.Equal(t, 1, otherProv.callCount())
}

func TestSelectorAllowRepeatedSpeaker(t *testing.T) {
	only, onlyProv := newScriptedAgent("speaker", say("one"), say("two"))
	other, otherProv := newScriptedAgent("other", say("other talks"))

	selectorProv := &scriptedProvider{script: []provider.StreamEvent{say("speaker")}}

	team, err := NewSelector(
		scriptedModel{prov: selectorProv},
		[]api.Agent{only, other},
		WithTermination(termination.MaxMessages(3)),
		AllowRepeatedSpeaker(true),
	)
	require.NoError(t, err)

	_, err = team.Run(context.Background(), "go")
	require.NoError(t, err)

	assert.Equal(t, 2, onlyProv.callCount())
	assert.Equal(t, 0, otherProv.callCount())
}
