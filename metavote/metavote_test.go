package metavote

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepString(t *testing.T) {
	assert.Equal(t, "forced_true", StepForcedTrue.String())
	assert.Equal(t, "forced_false", StepForcedFalse.String())
	assert.Equal(t, "genuine_flip", StepGenuineFlip.String())
	assert.Equal(t, "unknown", Step(99).String())
}

func TestIsSuper(t *testing.T) {
	assert.False(t, isSuper(2, 4)) // 6 > 8 is false
	assert.True(t, isSuper(3, 4))  // 9 > 8 is true
	assert.True(t, isSuper(5, 7))  // 15 > 14 is true
	assert.False(t, isSuper(4, 7)) // 12 > 14 is false
}

func TestNextDecisionIsSticky(t *testing.T) {
	d := true
	parent := &MetaVote{Round: 3, Step: StepGenuineFlip, Decision: &d}
	got := next(parent, nil, nil, 4)
	if assert.NotNil(t, got.Decision) {
		assert.True(t, *got.Decision)
	}
	assert.Equal(t, parent.Round, got.Round)
}

func TestNextForcedTrueAdvancesStepOnSuperAux(t *testing.T) {
	// 4 peers: threshold = (4-1)/3 + 1 = 2. Super-majority of aux votes is
	// 3 (3*3 > 2*4).
	parent := &MetaVote{
		Round:     0,
		Step:      StepForcedTrue,
		Estimates: map[bool]struct{}{true: {}},
	}
	trueVal := true
	otherVotes := []MetaVote{
		{Estimates: map[bool]struct{}{true: {}}, AuxValue: &trueVal},
		{Estimates: map[bool]struct{}{true: {}}, AuxValue: &trueVal},
		{Estimates: map[bool]struct{}{true: {}}, AuxValue: &trueVal},
	}
	got := next(parent, otherVotes, nil, 4)

	assert.Equal(t, StepForcedFalse, got.Step, "step 0 -> step 1 once a super-majority of aux values is observed")
	if assert.NotNil(t, got.AuxValue) {
		assert.True(t, *got.AuxValue)
	}
}

func TestNextForcedTrueStaysPutWithoutSuperAux(t *testing.T) {
	parent := &MetaVote{
		Round:     0,
		Step:      StepForcedTrue,
		Estimates: map[bool]struct{}{true: {}},
	}
	trueVal := true
	otherVotes := []MetaVote{
		{Estimates: map[bool]struct{}{true: {}}, AuxValue: &trueVal},
	}
	got := next(parent, otherVotes, nil, 4)
	assert.Equal(t, StepForcedTrue, got.Step)
}

func TestNextGenuineFlipDecidesOnSuperMajority(t *testing.T) {
	parent := &MetaVote{Round: 1, Step: StepGenuineFlip}
	trueVal := true
	otherVotes := []MetaVote{
		{AuxValue: &trueVal}, {AuxValue: &trueVal}, {AuxValue: &trueVal},
	}
	got := next(parent, otherVotes, nil, 4)
	if assert.NotNil(t, got.Decision) {
		assert.True(t, *got.Decision)
	}
}

func TestNextGenuineFlipCoinTossAdvancesRoundOnDisagreement(t *testing.T) {
	parent := &MetaVote{Round: 1, Step: StepGenuineFlip}
	trueVal, falseVal := true, false
	otherVotes := []MetaVote{
		{AuxValue: &trueVal}, {AuxValue: &falseVal}, {AuxValue: &trueVal},
	}
	coin := false
	got := next(parent, otherVotes, &coin, 4)

	assert.Nil(t, got.Decision)
	assert.Equal(t, parent.Round+1, got.Round)
	assert.Equal(t, StepForcedTrue, got.Step)
	_, hasFalse := got.Estimates[false]
	assert.True(t, hasFalse, "estimate should seed from the coin toss result")
}

func TestNextGenuineFlipWithoutCoinWaitsAtEmptyEstimate(t *testing.T) {
	parent := &MetaVote{Round: 1, Step: StepGenuineFlip}
	trueVal, falseVal := true, false
	otherVotes := []MetaVote{
		{AuxValue: &trueVal}, {AuxValue: &falseVal}, {AuxValue: &trueVal},
	}
	got := next(parent, otherVotes, nil, 4)
	assert.Nil(t, got.Decision)
	assert.Equal(t, parent.Round, got.Round)
	assert.Empty(t, got.Estimates)
}

func TestResponsivenessThresholdIsCeilLog2(t *testing.T) {
	cases := map[int]int{1: 0, 2: 1, 3: 2, 4: 2, 5: 3, 8: 3, 9: 4}
	for n, want := range cases {
		assert.Equal(t, want, responsivenessThreshold(n), "n=%d", n)
	}
}
