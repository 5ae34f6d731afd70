package notification

import "strings"

// CodePlaceholder is replaced by the verification code in message templates.
const CodePlaceholder = "#code#"

// DefaultMessageTemplate is used when no template is configured.
const DefaultMessageTemplate = "Your verification code is: #code#. It expires in 10 minutes."

// RenderMessage substitutes code into template. A template without the
// placeholder gets the code appended.
func RenderMessage(template, code string) string {
	if template == "" {
		template = DefaultMessageTemplate
	}
	if !strings.Contains(template, CodePlaceholder) {
		return template + " " + code
	}
	return strings.ReplaceAll(template, CodePlaceholder, code)
}
