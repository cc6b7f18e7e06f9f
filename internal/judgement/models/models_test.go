package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChallengeAccepts(t *testing.T) {
	ch := NewChallenge()
	require.NotEmpty(t, ch.Value)

	assert.True(t, ch.Accepts(ExternalMessage{Origin: "a", Parts: []string{"noise", ch.Value}}))
	assert.False(t, ch.Accepts(ExternalMessage{Origin: "a", Parts: []string{"noise"}}))
	assert.False(t, ch.Accepts(ExternalMessage{Origin: "a"}))
}

func TestNewChallengeIsUnique(t *testing.T) {
	assert.NotEqual(t, NewChallenge().Value, NewChallenge().Value)
}

func TestPendingChallengeStageOrder(t *testing.T) {
	field := NewIdentityField(FieldMatrix, "@user:example.org")
	second := NewChallenge()
	field.SecondChallenge = &second

	// First stage gates the second.
	require.Equal(t, &field.Challenge, field.PendingChallenge())
	assert.False(t, field.IsVerified())

	field.Challenge.IsVerified = true
	require.Equal(t, field.SecondChallenge, field.PendingChallenge())
	assert.False(t, field.IsVerified())

	field.SecondChallenge.IsVerified = true
	assert.Nil(t, field.PendingChallenge())
	assert.True(t, field.IsVerified())
}

func TestAllFieldsVerified(t *testing.T) {
	state := JudgementState{Context: IdentityContext{Chain: "polkadot", Address: "1abc"}}
	assert.False(t, state.AllFieldsVerified(), "empty field set never counts as verified")

	state.Fields = []IdentityField{
		NewIdentityField(FieldEmail, "a@example.com"),
		NewIdentityField(FieldWeb, "a.example.com"),
	}
	assert.False(t, state.AllFieldsVerified())

	state.Fields[0].Challenge.IsVerified = true
	assert.False(t, state.AllFieldsVerified())

	state.Fields[1].Challenge.IsVerified = true
	assert.True(t, state.AllFieldsVerified())
}

func TestFieldByValue(t *testing.T) {
	state := JudgementState{
		Fields: []IdentityField{
			NewIdentityField(FieldEmail, "a@example.com"),
			NewIdentityField(FieldWeb, "a.example.com"),
		},
	}

	field := state.FieldByValue("a.example.com")
	require.NotNil(t, field)
	assert.Equal(t, FieldWeb, field.Kind)

	assert.Nil(t, state.FieldByValue("b@example.com"))
}
