package assets

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatMessagePositional(t *testing.T) {
	require.Equal(t, "Snatch attempt 2 of 3",
		FormatMessage("Snatch attempt {0} of {1}", 2, 3))
	require.Equal(t, "no placeholders", FormatMessage("no placeholders"))
	require.Equal(t, "Group S1 on platform A",
		FormatMessage("Group {1} on platform {0}", "A", "S1"))
}

func TestFormatMessageChoice(t *testing.T) {
	pattern := "{0,choice,0#no attempts|1#one attempt|2#{0} attempts}"
	require.Equal(t, "no attempts", FormatMessage(pattern, 0))
	require.Equal(t, "one attempt", FormatMessage(pattern, 1))
	require.Equal(t, "5 attempts", FormatMessage(pattern, 5))
}

func TestFormatMessageBadPlaceholders(t *testing.T) {
	// Out-of-range and unparsable indices come through literally.
	require.Equal(t, "{3}", FormatMessage("{3}", "a"))
	require.Equal(t, "{x}", FormatMessage("{x}", "a"))
	// An unterminated brace is kept as-is.
	require.Equal(t, "tail {0", FormatMessage("tail {0", "a"))
}

func TestParseFormattedNumber(t *testing.T) {
	require.Equal(t, 87.5, ParseFormattedNumber("87.5"))
	require.Equal(t, 87.5, ParseFormattedNumber("87,5"))
	require.Equal(t, 104.0, ParseFormattedNumber(" 104 "))
	require.Zero(t, ParseFormattedNumber(""))
	require.Zero(t, ParseFormattedNumber("-"))
	require.Zero(t, ParseFormattedNumber("abc"))
}

func TestFormatCategoryDisplay(t *testing.T) {
	require.Equal(t, "+109", FormatCategoryDisplay(">109"))
	require.Equal(t, "89", FormatCategoryDisplay("89"))
	require.Equal(t, "", FormatCategoryDisplay(""))
}
