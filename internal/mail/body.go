package mail

// Part is the minimal capability set needed to walk a nested multipart
// message: a part either carries inline data, subparts, or both.
type Part interface {
	MIMEType() string
	// InlineData returns the decoded body bytes of this part, if any.
	InlineData() ([]byte, bool)
	Subparts() []Part
}

// ExtractPlainText walks the part tree depth-first and returns the first
// text/plain leaf. When no text/plain leaf exists it falls back to the
// first leaf with any extractable data.
func ExtractPlainText(root Part) string {
	if root == nil {
		return ""
	}
	if text := findByType(root, "text/plain"); text != "" {
		return text
	}
	return findAny(root)
}

func findByType(p Part, mimeType string) string {
	if p.MIMEType() == mimeType {
		if data, ok := p.InlineData(); ok && len(data) > 0 {
			return string(data)
		}
	}
	for _, sub := range p.Subparts() {
		if text := findByType(sub, mimeType); text != "" {
			return text
		}
	}
	return ""
}

func findAny(p Part) string {
	if data, ok := p.InlineData(); ok && len(data) > 0 {
		return string(data)
	}
	for _, sub := range p.Subparts() {
		if text := findAny(sub); text != "" {
			return text
		}
	}
	return ""
}
