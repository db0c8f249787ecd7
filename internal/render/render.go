package render

import "strings"

// Markdown renders markdown for the terminal with a pooled renderer
func Markdown(content string, opts Options) (string, error) {
	r, release, err := borrow(opts)
	if err != nil {
		return "", err
	}
	defer release()
	return r.Render(content)
}

// Reply renders a Model message, falling back to the raw text when glamour
// fails. Surrounding blank lines added by glamour are trimmed.
func Reply(content string, opts Options) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	out, err := Markdown(content, opts)
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}
