package ocr

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/medextract/internal/record"
)

// tesseract TSV columns:
// level page_num block_num par_num line_num word_num left top width height conf text
const (
	tsvCols      = 12
	tsvLevelWord = 5
)

type tsvWord struct {
	block, par, line int
	word             record.Word
}

// ParseTSV converts tesseract TSV output for one image into a PageResult.
// Only word-level rows with non-blank text become Words. Page text is rebuilt
// from the block/paragraph/line structure so it agrees with the words.
func ParseTSV(data []byte, page int) (record.PageResult, error) {
	var words []tsvWord

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64<<10), 4<<20)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		ln := strings.TrimRight(sc.Text(), "\r")
		if ln == "" || strings.HasPrefix(ln, "level\t") {
			continue
		}
		cols := strings.SplitN(ln, "\t", tsvCols)
		if len(cols) < tsvCols-1 {
			continue
		}
		ints := make([]int, 10)
		ok := true
		for i := 0; i < 10; i++ {
			v, err := strconv.Atoi(strings.TrimSpace(cols[i]))
			if err != nil {
				ok = false
				break
			}
			ints[i] = v
		}
		if !ok {
			return record.PageResult{}, fmt.Errorf("tsv line %d: non-numeric column", lineNo)
		}
		if ints[0] != tsvLevelWord || len(cols) < tsvCols {
			continue
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}
		left, top, width, height := float64(ints[6]), float64(ints[7]), float64(ints[8]), float64(ints[9])
		box := record.NewBoundingBox(left, top, left+width, top+height)
		words = append(words, tsvWord{
			block: ints[2],
			par:   ints[3],
			line:  ints[4],
			word:  record.NewWord(text, box, page),
		})
	}
	if err := sc.Err(); err != nil {
		return record.PageResult{}, fmt.Errorf("read tsv: %w", err)
	}

	out := record.PageResult{Page: page, Words: make([]record.Word, 0, len(words))}
	var b strings.Builder
	for i, w := range words {
		if i > 0 {
			prev := words[i-1]
			switch {
			case w.block != prev.block || w.par != prev.par:
				b.WriteString("\n\n")
			case w.line != prev.line:
				b.WriteByte('\n')
			default:
				b.WriteByte(' ')
			}
		}
		b.WriteString(w.word.Text)
		out.Words = append(out.Words, w.word)
	}
	out.Text = Normalize(b.String())
	return out, nil
}
