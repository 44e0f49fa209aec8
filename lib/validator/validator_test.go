package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingdomunited/prayers/lib/contentfilter"
	"github.com/kingdomunited/prayers/lib/validator/mocks"
)

func TestValidator_PrayerText(t *testing.T) {
	v := New(contentfilter.New(contentfilter.Config{}), Params{})

	tests := []struct {
		name          string
		text          string
		valid         bool
		err           string
		inappropriate bool
	}{
		{name: "clean", text: "Please pray for my grandmother's recovery after surgery next week", valid: true},
		{name: "empty", text: "", err: "Please enter your prayer request"},
		{name: "blank", text: "   ", err: "Please enter your prayer request"},
		{name: "too short", text: " pray ", err: "Prayer request must be at least 5 characters"},
		{name: "too long", text: strings.Repeat("a", 126), err: "Prayer request must be no more than 125 characters"},
		{name: "max length ok", text: "pray " + strings.Repeat("for us ", 17), valid: true},
		{name: "profanity", text: "this is fucking terrible pray for me",
			err: "Please keep your prayer request respectful", inappropriate: true},
		{name: "link", text: "check out www.example.com for prayer help",
			err: "Please don't include links or promotional content", inappropriate: true},
		{name: "gibberish flagged as inappropriate", text: "asdfqwzx123!@#$%^&*()",
			err: "Please write your prayer request clearly", inappropriate: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.PrayerText(tt.text)
			assert.Equal(t, tt.valid, res.Valid)
			assert.Equal(t, tt.err, res.Error)
			assert.Equal(t, tt.inappropriate, res.HasInappropriateContent)
			assert.NotNil(t, res.Suggestions)
			assert.Equal(t, tt.valid, len(res.Suggestions) == 0)
		})
	}
}

func TestValidator_PrayerTextLengthSkipsFilter(t *testing.T) {
	mock := &mocks.ContentCheckerMock{
		FilterContentFunc: func(text string) contentfilter.Verdict {
			return contentfilter.Verdict{Clean: true, Suggestions: []string{}}
		},
	}
	v := New(mock, Params{MinLength: 10, MaxLength: 20})

	assert.False(t, v.PrayerText("too short").Valid)
	assert.Equal(t, "Prayer request must be no more than 20 characters", v.PrayerText(strings.Repeat("x", 21)).Error)
	assert.Empty(t, mock.FilterContentCalls())

	assert.True(t, v.PrayerText("  just the right  ").Valid)
	require.Len(t, mock.FilterContentCalls(), 1)
	assert.Equal(t, "just the right", mock.FilterContentCalls()[0].Text, "filter gets trimmed text")
}

func TestValidator_PrayerTextLengthInCodeUnits(t *testing.T) {
	mock := &mocks.ContentCheckerMock{
		FilterContentFunc: func(text string) contentfilter.Verdict {
			return contentfilter.Verdict{Clean: true, Suggestions: []string{}}
		},
	}
	v := New(mock, Params{MinLength: 5, MaxLength: 20})

	assert.Equal(t, "Prayer request must be at least 5 characters", v.PrayerText("🙏🙏").Error)
	assert.True(t, v.PrayerText("🙏🙏🙏").Valid)
	assert.True(t, v.PrayerText("pray "+strings.Repeat("🙏", 7)).Valid)
	assert.Equal(t, "Prayer request must be no more than 20 characters", v.PrayerText("pray "+strings.Repeat("🙏", 8)).Error)
	assert.Len(t, mock.FilterContentCalls(), 2)
}

func TestValidator_FailClosedAndOpen(t *testing.T) {
	mock := &mocks.ContentCheckerMock{
		FilterContentFunc: func(text string) contentfilter.Verdict { panic("boom") },
		QuickValidateFunc: func(text string) contentfilter.QuickVerdict { panic("boom") },
	}
	v := New(mock, Params{})

	res := v.PrayerText("please pray for my family")
	assert.False(t, res.Valid)
	assert.Equal(t, "Validation error - please try again", res.Error)
	assert.False(t, res.HasInappropriateContent)
	assert.Empty(t, res.Suggestions)

	q := v.QuickPrayerText("please pray for my family")
	assert.True(t, q.Valid)
	assert.Empty(t, q.Message)
}

func TestValidator_QuickPrayerText(t *testing.T) {
	mock := &mocks.ContentCheckerMock{
		QuickValidateFunc: func(text string) contentfilter.QuickVerdict {
			return contentfilter.QuickVerdict{Valid: false, Message: "Please keep your language respectful"}
		},
	}
	v := New(mock, Params{})

	assert.True(t, v.QuickPrayerText("").Valid)
	assert.True(t, v.QuickPrayerText("  \t").Valid)
	assert.Empty(t, mock.QuickValidateCalls(), "empty text never reaches the filter")

	q := v.QuickPrayerText(" what the heck ")
	assert.False(t, q.Valid)
	assert.Equal(t, "Please keep your language respectful", q.Message)
	require.Len(t, mock.QuickValidateCalls(), 1)
	assert.Equal(t, "what the heck", mock.QuickValidateCalls()[0].Text)
}

func TestZipCode(t *testing.T) {
	tests := []struct {
		zip   string
		valid bool
	}{
		{"12345", true},
		{" 02134 ", true},
		{"1234", false},
		{"123456", false},
		{"12a45", false},
		{"", false},
		{"١٢٣٤٥", false}, // non-ascii digits
	}
	for _, tt := range tests {
		t.Run(tt.zip, func(t *testing.T) {
			assert.Equal(t, tt.valid, ZipCode(tt.zip))
			assert.Equal(t, tt.valid, CheckZip(tt.zip) == nil)
		})
	}
}

func TestUserID(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		valid bool
	}{
		{"generated style", "BraveEagle123", true},
		{"generated style short", "KindLion1", true},
		{"legacy", "user_1700000000000_abc123def_42", true},
		{"legacy prefix only", "user_", true},
		{"fallback long enough", "somebody", true},
		{"too short", "ab", false},
		{"six chars", "abcdef", true},
		{"five chars", "abcde", false},
		{"empty", "", false},
		{"blank", "    ", false},
		{"too long", strings.Repeat("a", 51), false},
		{"trimmed", "  BraveEagle123  ", true},
		{"emoji count twice", "🙏🙏🙏", true},
		{"too long with emoji", strings.Repeat("🙏", 25) + "a", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, UserID(tt.id))
		})
	}
}

func TestValidator_Submission(t *testing.T) {
	v := New(contentfilter.New(contentfilter.Config{}), Params{})

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, v.Submission("BraveEagle123", "12345", "Please pray for my family this week"))
	})

	t.Run("bad zip and user id", func(t *testing.T) {
		err := v.Submission("ab", "1234", "Please pray for my family this week")
		require.Error(t, err)
		var merr *multierror.Error
		require.True(t, errors.As(err, &merr))
		assert.Len(t, merr.Errors, 2)
		assert.ErrorIs(t, err, ErrBadUserID)
		assert.ErrorIs(t, err, ErrBadZip)
		_, ok := TextResult(err)
		assert.False(t, ok)
	})

	t.Run("all fields bad", func(t *testing.T) {
		err := v.Submission("", "", "this is fucking terrible pray for me")
		require.Error(t, err)
		var merr *multierror.Error
		require.True(t, errors.As(err, &merr))
		assert.Len(t, merr.Errors, 3)

		res, ok := TextResult(err)
		require.True(t, ok)
		assert.True(t, res.HasInappropriateContent)
		assert.Equal(t, "Please keep your prayer request respectful", res.Error)
		assert.Len(t, res.Suggestions, 3)
	})
}

func TestValidator_CheckText(t *testing.T) {
	v := New(contentfilter.New(contentfilter.Config{}), Params{})
	assert.NoError(t, v.CheckText("Please pray for my family this week"))

	err := v.CheckText("help")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 5 characters")
	res, ok := TextResult(err)
	require.True(t, ok)
	assert.False(t, res.HasInappropriateContent)
}
