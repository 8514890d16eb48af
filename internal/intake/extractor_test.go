package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract_Email(t *testing.T) {
	ex := Extract("asha@example.com, I need a logo")
	assert.Equal(t, "asha@example.com", ex.Email)
	assert.Empty(t, ex.Name)
	assert.Empty(t, ex.Phone)
}

func TestExtract_FirstEmailWins(t *testing.T) {
	ex := Extract("write to a.b@one.io or c@two.org")
	assert.Equal(t, "a.b@one.io", ex.Email)
}

func TestExtract_Phone(t *testing.T) {
	cases := map[string]string{
		"call me on 9876543210 please":  "9876543210",
		"my number is +91 98765 43210":  "+91 98765 43210",
		"reach me at 987-654-3210":      "987-654-3210",
		"+1-555-123-4567 is my contact": "+1-555-123-4567",
	}
	for in, want := range cases {
		assert.Equal(t, want, Extract(in).Phone, in)
	}
}

func TestExtract_PhoneRejectsOtherDigitRuns(t *testing.T) {
	assert.Empty(t, Extract("order 12345 shipped").Phone)
	assert.Empty(t, Extract("id 123456789012345").Phone)
}

func TestExtract_NameLeadIns(t *testing.T) {
	cases := map[string]string{
		"My name is Asha":        "Asha",
		"my name is asha rao":    "Asha Rao",
		"I am Ravi Kumar":        "Ravi Kumar",
		"I'm priya":              "Priya",
		"Name: John Smith":       "John Smith",
		"you can call me DEV":    "Dev",
		"hi, my name is Meera S": "Meera S",
	}
	for in, want := range cases {
		assert.Equal(t, want, Extract(in).Name, in)
	}
}

func TestExtract_NameRejectsLongCaptures(t *testing.T) {
	// “I am looking for a website” 捕获到 5 个词，不是姓名
	assert.Empty(t, Extract("I am looking for a new website").Name)
	assert.Empty(t, Extract("I'm interested").Name)
}

func TestExtract_WholeMessageName(t *testing.T) {
	assert.Equal(t, "Asha", Extract("asha").Name)
	assert.Equal(t, "Asha Rao", Extract("Asha Rao").Name)
	assert.Empty(t, Extract("yes").Name)
	assert.Empty(t, Extract("hello").Name)
	assert.Empty(t, Extract("yes, go ahead").Name)
	assert.Empty(t, Extract("one two three four").Name)
}

func TestExtract_CompanyBudgetTimeline(t *testing.T) {
	ex := Extract("My company is Acme Foods and we have a budget of ₹15,000, need it in 2 weeks")
	assert.Equal(t, "Acme Foods", ex.Company)
	assert.Equal(t, "₹15,000", ex.Budget)
	assert.Equal(t, "2 weeks", ex.Timeline)

	assert.Equal(t, "20k", Extract("around 20k is fine").Budget)
	assert.Equal(t, "ASAP", Extract("this is urgent").Timeline)
	assert.Equal(t, "1 month", Extract("within 1 month").Timeline)
}

func TestExtract_BudgetStopsBeforePunctuation(t *testing.T) {
	cases := map[string]string{
		"budget is ₹15,000, thanks":     "₹15,000",
		"around Rs 5,000. Is that ok?":  "Rs 5,000",
		"we can spend $2,500; no more":  "$2,500",
		"₹1,50,000 for everything":      "₹1,50,000",
		"maybe 2.5 lakh, or 3 lakhs":    "2.5 lakh",
		"₹ 40k,":                        "₹ 40k",
		"budget 20k, timeline 2 weeks":  "20k",
		"INR 12000 is the max we have.": "INR 12000",
	}
	for in, want := range cases {
		assert.Equal(t, want, Extract(in).Budget, in)
	}
}

func TestExtract_ServiceWordsAreNotNames(t *testing.T) {
	for _, in := range []string{"branding", "social media", "packaging", "print", "Brochure", "web design", "instagram"} {
		assert.Empty(t, Extract(in).Name, in)
	}
	assert.Equal(t, "Asha", Extract("asha").Name)
}

func TestExtract_EmptyMessage(t *testing.T) {
	assert.Equal(t, Extraction{}, Extract("   "))
}
