package workflow

import "strings"

// BlockKind identifies the structural role of a parsed Markdown block.
type BlockKind string

const (
	BlockHeading   BlockKind = "heading"
	BlockParagraph BlockKind = "paragraph"
	BlockList      BlockKind = "list"
	BlockTable     BlockKind = "table"
	BlockRule      BlockKind = "rule"
)

// Block is one structural unit of a generated document. Only the fields
// relevant to the kind are populated: Level and Text for headings, Text for
// paragraphs, Items for lists, Header and Rows for tables.
type Block struct {
	Kind   BlockKind
	Level  int
	Text   string
	Items  []string
	Header []string
	Rows   [][]string
}

// ParseDocument splits Markdown produced by [GenerateDocument] back into
// blocks. It understands the subset GenerateDocument emits: #/##/### headings,
// pipe tables with a separator row, "- " lists, a lone "---" rule, and plain
// paragraphs. Inline **bold** markers are preserved in the text; use
// [StripBold] to remove them.
func ParseDocument(doc string) []Block {
	lines := strings.Split(doc, "\n")
	var blocks []Block

	for i := 0; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], " \t")
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			continue

		case trimmed == "---":
			blocks = append(blocks, Block{Kind: BlockRule})

		case strings.HasPrefix(trimmed, "#"):
			level := 0
			for level < len(trimmed) && trimmed[level] == '#' {
				level++
			}
			blocks = append(blocks, Block{
				Kind:  BlockHeading,
				Level: level,
				Text:  strings.TrimSpace(trimmed[level:]),
			})

		case strings.HasPrefix(trimmed, "- "):
			items := []string{strings.TrimPrefix(trimmed, "- ")}
			for i+1 < len(lines) {
				next := strings.TrimSpace(lines[i+1])
				if !strings.HasPrefix(next, "- ") {
					break
				}
				items = append(items, strings.TrimPrefix(next, "- "))
				i++
			}
			blocks = append(blocks, Block{Kind: BlockList, Items: items})

		case strings.HasPrefix(trimmed, "|"):
			header := splitTableRow(trimmed)
			var rows [][]string
			// Skip the |---|---| separator row if present.
			if i+1 < len(lines) && isTableSeparator(strings.TrimSpace(lines[i+1])) {
				i++
			}
			for i+1 < len(lines) {
				next := strings.TrimSpace(lines[i+1])
				if !strings.HasPrefix(next, "|") {
					break
				}
				rows = append(rows, splitTableRow(next))
				i++
			}
			blocks = append(blocks, Block{Kind: BlockTable, Header: header, Rows: rows})

		default:
			blocks = append(blocks, Block{Kind: BlockParagraph, Text: trimmed})
		}
	}

	return blocks
}

// StripBold removes **...** emphasis markers from s, keeping the content.
func StripBold(s string) string {
	return strings.ReplaceAll(s, "**", "")
}

func splitTableRow(line string) []string {
	line = strings.Trim(line, "|")
	parts := strings.Split(line, "|")
	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		cells = append(cells, strings.TrimSpace(p))
	}
	return cells
}

func isTableSeparator(line string) bool {
	if !strings.HasPrefix(line, "|") {
		return false
	}
	for _, r := range line {
		switch r {
		case '|', '-', ':', ' ':
		default:
			return false
		}
	}
	return true
}
