package ai

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"go.uber.org/zap"
)

const (
	chunkTokenBudget  = 400
	overlapTokenLimit = 80
)

// ChunkPiece is one span produced by the chunker, ordered by Position.
type ChunkPiece struct {
	Content    string
	TokenCount int
	Position   int
}

type Chunker struct{}

func NewChunker() *Chunker {
	return &Chunker{}
}

// Chunk splits markdown into retrieval-sized pieces. H1/H2 headings start a
// new piece and are prepended as context; adjacent text pieces keep a small
// trailing overlap so sentences straddling a boundary stay findable.
func (c *Chunker) Chunk(ctx context.Context, markdown string) ([]ChunkPiece, error) {
	logger := logutil.GetLogger(ctx)
	md := goldmark.New()
	reader := text.NewReader([]byte(markdown))
	doc := md.Parser().Parse(reader)

	var chunks []ChunkPiece
	var currentChunk []string
	var currentTokens int
	var currentHeading string
	position := 0

	flush := func() {
		if len(currentChunk) == 0 {
			return
		}
		content := strings.Join(currentChunk, "\n\n")
		if currentHeading != "" {
			content = "Heading: " + currentHeading + "\n" + content
		}
		chunks = append(chunks, ChunkPiece{
			Content:    content,
			TokenCount: estimateTokens(content),
			Position:   position,
		})
		position++

		// keep a tail of the previous piece as overlap
		overlapTokens := 0
		var overlapParts []string
		for i := len(currentChunk) - 1; i >= 0; i-- {
			t := estimateTokens(currentChunk[i])
			if overlapTokens+t > overlapTokenLimit {
				break
			}
			overlapTokens += t
			overlapParts = append([]string{currentChunk[i]}, overlapParts...)
		}
		if len(overlapParts) == len(currentChunk) {
			overlapParts = nil
			overlapTokens = 0
		}
		currentChunk = overlapParts
		currentTokens = overlapTokens
	}

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.Heading:
			if n.Level == 1 || n.Level == 2 {
				heading := string(n.Text(reader.Source()))
				flush()
				currentChunk = nil
				currentTokens = 0
				currentHeading = heading
			} else {
				txt := string(n.Text(reader.Source()))
				currentChunk = append(currentChunk, txt)
				currentTokens += estimateTokens(txt)
			}
		case *ast.FencedCodeBlock:
			lang := string(n.Language(reader.Source()))
			var code strings.Builder
			for i := 0; i < n.Lines().Len(); i++ {
				line := n.Lines().At(i)
				code.Write(line.Value(reader.Source()))
			}
			fenced := "```" + lang + "\n" + code.String() + "```"
			tokens := estimateTokens(fenced)
			if currentTokens > 0 && currentTokens+tokens <= chunkTokenBudget {
				currentChunk = append(currentChunk, fenced)
				currentTokens += tokens
			} else {
				flush()
				currentChunk = []string{fenced}
				currentTokens = tokens
				flush()
				currentChunk = nil
				currentTokens = 0
			}
		default:
			txt := extractText(node, reader.Source())
			if txt == "" {
				continue
			}
			tokens := estimateTokens(txt)
			if currentTokens+tokens > chunkTokenBudget {
				flush()
			}
			currentChunk = append(currentChunk, txt)
			currentTokens += tokens
		}
	}
	flush()
	logger.Debug("chunking completed", zap.Int("total_chunks", len(chunks)))
	return chunks, nil
}

// estimateTokens counts words for ASCII text and characters for CJK.
func estimateTokens(text string) int {
	count := 0
	for _, r := range text {
		if r > 127 {
			count++
		}
	}
	words := strings.Fields(text)
	count += len(words)
	if count == 0 && len(text) > 0 {
		return 1
	}
	return count
}

func extractText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node.Kind() == ast.KindText {
			sb.Write(node.(*ast.Text).Segment.Value(source))
			sb.WriteByte(' ')
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
