package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_Labels(t *testing.T) {
	cases := []struct {
		text       string
		label      string
		confidence float64
	}{
		{"I need a logo", IntentServiceInquiry, 0.8},
		{"how much for a logo?", IntentQuoteRequest, 0.9},
		{"what are your rates", IntentQuoteRequest, 0.9},
		{"hello there", IntentGeneral, 0.5},
	}
	for _, c := range cases {
		in := Classify(c.text)
		assert.Equal(t, c.label, in.Label, c.text)
		assert.Equal(t, c.confidence, in.Confidence, c.text)
	}
}

func TestClassify_AllServicesInTableOrder(t *testing.T) {
	in := Classify("Need a brochure, an instagram plan, and a logo")
	assert.Equal(t, []string{"logo", "social-media", "print"}, in.Services)
}

func TestClassify_QuoteKeywordsAreWholeWords(t *testing.T) {
	// “accost” 与 “prices” 的区别：前者不是报价意图
	assert.False(t, Classify("he tried to accost me").QuoteRequested)
	assert.True(t, Classify("send me your prices").QuoteRequested)
}

func TestHasConfirmation(t *testing.T) {
	for _, s := range []string{"yes", "Yes, go ahead", "please create the quote", "confirm", "let's finalise"} {
		assert.True(t, HasConfirmation(s), s)
	}
	for _, s := range []string{"yesterday was busy", "not sure", "eyes"} {
		assert.False(t, HasConfirmation(s), s)
	}
}

func TestUnionServices(t *testing.T) {
	got := UnionServices([]string{"print", "logo"}, nil, []string{"logo", "website"})
	assert.Equal(t, []string{"logo", "website", "print"}, got)

	got = UnionServices([]string{"custom"}, []string{"logo"})
	assert.Equal(t, []string{"logo", "custom"}, got)

	assert.Empty(t, UnionServices())
}
