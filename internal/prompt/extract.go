package prompt

import "strings"

// ExtractCode returns the body of the first fenced code block in text,
// preferring a block tagged with lang. Text without a fence is returned
// trimmed, since generate is told to answer with bare code.
func ExtractCode(text, lang string) string {
	blocks := fencedBlocks(text)
	if len(blocks) == 0 {
		return strings.TrimSpace(text) + "\n"
	}
	for _, b := range blocks {
		if lang != "" && Normalize(b.tag) == lang {
			return b.body
		}
	}
	return blocks[0].body
}

type block struct {
	tag  string
	body string
}

func fencedBlocks(text string) []block {
	var out []block
	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines); i++ {
		open := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(open, "```") {
			continue
		}
		tag := strings.TrimSpace(strings.TrimPrefix(open, "```"))
		var body strings.Builder
		j := i + 1
		for ; j < len(lines); j++ {
			if strings.TrimSpace(lines[j]) == "```" {
				break
			}
			body.WriteString(lines[j])
			body.WriteString("\n")
		}
		content := body.String()
		if j == len(lines) {
			// An unclosed fence runs to the end of the text.
			content = strings.TrimRight(content, "\n") + "\n"
		}
		out = append(out, block{tag: tag, body: content})
		i = j
	}
	return out
}
