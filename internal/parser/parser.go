package parser

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/knoldeck/internal/domain"
)

const (
	questionPrefix = "Q:"
	answerPrefix   = "A:"
	contextPrefix  = "C:"
	separator      = "---"
)

type state int

const (
	seeking state = iota
	readingQuestion
	readingAnswer
	readingContext
)

// Entry is one Q/A/C block from a markdown file.
type Entry struct {
	Question string
	Answer   string
	Context  string
}

// Pair converts the entry to a card candidate. Context, when present, is
// appended to the back.
func (e Entry) Pair() domain.Pair {
	back := e.Answer
	if e.Context != "" {
		back = strings.TrimSpace(back + "\n\n" + e.Context)
	}
	return domain.Pair{Front: e.Question, Back: back}
}

// ParseFile reads a file from the given path and extracts all entries.
func ParseFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from an io.Reader and extracts all entries. A "Q:" line or a
// "---" line ends the previous entry; entries without a question are dropped.
func Parse(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	var entries []Entry
	var current Entry
	var block []string
	currentState := seeking

	flushBlock := func() {
		if len(block) == 0 {
			return
		}
		content := strings.Join(block, "\n")
		switch currentState {
		case readingQuestion:
			current.Question = content
		case readingAnswer:
			current.Answer = content
		case readingContext:
			current.Context = content
		}
		block = nil
	}

	finishEntry := func() {
		flushBlock()
		if current.Question != "" {
			entries = append(entries, current)
		}
		current = Entry{}
		currentState = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()

		if line == separator {
			finishEntry()
			continue
		}

		next, rest, ok := prefixState(line)
		if !ok {
			if currentState != seeking {
				block = append(block, line)
			}
			continue
		}

		if next == readingQuestion && currentState != seeking {
			finishEntry() // A new question always starts a new entry
		}
		flushBlock()
		currentState = next
		block = append(block, rest)
	}

	finishEntry() // Finish the very last entry in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return trimEntries(entries), nil
}

func prefixState(line string) (state, string, bool) {
	for _, p := range []struct {
		prefix string
		state  state
	}{
		{questionPrefix, readingQuestion},
		{answerPrefix, readingAnswer},
		{contextPrefix, readingContext},
	} {
		if strings.HasPrefix(line, p.prefix) {
			return p.state, strings.TrimPrefix(line[len(p.prefix):], " "), true
		}
	}
	return seeking, "", false
}

// Blank lines between entries end up at the tail of the last block.
func trimEntries(entries []Entry) []Entry {
	for i := range entries {
		entries[i].Question = strings.TrimRight(entries[i].Question, "\n ")
		entries[i].Answer = strings.TrimRight(entries[i].Answer, "\n ")
		entries[i].Context = strings.TrimRight(entries[i].Context, "\n ")
	}
	return entries
}

// Format writes pairs in the Q:/A: format understood by Parse, separated by
// "---" lines.
func Format(w io.Writer, pairs []domain.Pair) error {
	for i, p := range pairs {
		if i > 0 {
			if _, err := fmt.Fprintln(w, separator); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s %s\n%s %s\n", questionPrefix, p.Front, answerPrefix, p.Back); err != nil {
			return err
		}
	}
	return nil
}
