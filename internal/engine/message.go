package engine

import (
	"fmt"
	"strings"
)

// DefaultLabelSeparator joins missing-field labels in messages.
const DefaultLabelSeparator = "、"

// Formatter renders an Outcome as a single sentence for display.
type Formatter struct {
	Separator string
}

func NewFormatter(separator string) Formatter {
	if separator == "" {
		separator = DefaultLabelSeparator
	}
	return Formatter{Separator: separator}
}

// Format names the target status and lists the missing labels in order.
// A valid outcome formats as "".
func (f Formatter) Format(outcome Outcome, targetStatus string) string {
	if outcome.IsValid || len(outcome.MissingFields) == 0 {
		return ""
	}
	sep := f.Separator
	if sep == "" {
		sep = DefaultLabelSeparator
	}
	return fmt.Sprintf("「%s」にするには次の項目を入力してください: %s",
		targetStatus, strings.Join(outcome.MissingFields, sep))
}
