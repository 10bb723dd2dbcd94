package parser

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/conorfennell/knoldeck/internal/domain"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name            string
		input           string
		expectedEntries int
		expectedQ       string
		expectedA       string
		expectedC       string
	}{
		{
			name:            "Simple Q&A",
			input:           "Q: What is the capital of France?\nA: Paris",
			expectedEntries: 1,
			expectedQ:       "What is the capital of France?",
			expectedA:       "Paris",
		},
		{
			name:            "Simple Q, A, and C",
			input:           "Q: What is 1+1?\nA: 2\nC: Basic arithmetic",
			expectedEntries: 1,
			expectedQ:       "What is 1+1?",
			expectedA:       "2",
			expectedC:       "Basic arithmetic",
		},
		{
			name: "Multiline Answer",
			input: `
Q: What are the primary colors?
A: Red
Blue
Yellow
`,
			expectedEntries: 1,
			expectedQ:       "What are the primary colors?",
			expectedA:       "Red\nBlue\nYellow",
		},
		{
			name: "Two Entries",
			input: `
Q: First question
A: First answer

Q: Second question
A: Second answer
`,
			expectedEntries: 2,
		},
		{
			name: "Separator ends an entry",
			input: `Q: One
A: 1
---
Some prose that is not part of any card.
---
Q: Two
A: 2`,
			expectedEntries: 2,
		},
		{
			name:            "No entries, just text",
			input:           "This is a file with no questions.",
			expectedEntries: 0,
		},
		{
			name:            "Prefixes with no space",
			input:           "Q:Question\nA:Answer",
			expectedEntries: 1,
			expectedQ:       "Question",
			expectedA:       "Answer",
		},
		{
			name:            "Answer without question is dropped",
			input:           "A: orphan",
			expectedEntries: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			entries, err := Parse(strings.NewReader(tc.input))
			if err != nil {
				t.Fatalf("Parse() returned an unexpected error: %v", err)
			}

			if len(entries) != tc.expectedEntries {
				t.Fatalf("Expected %d entries, but got %d", tc.expectedEntries, len(entries))
			}

			if tc.expectedEntries == 1 {
				e := entries[0]
				if e.Question != tc.expectedQ {
					t.Errorf("Expected Question to be '%s', but got '%s'", tc.expectedQ, e.Question)
				}
				if e.Answer != tc.expectedA {
					t.Errorf("Expected Answer to be '%s', but got '%s'", tc.expectedA, e.Answer)
				}
				if e.Context != tc.expectedC {
					t.Errorf("Expected Context to be '%s', but got '%s'", tc.expectedC, e.Context)
				}
			}
		})
	}
}

func TestEntryPair(t *testing.T) {
	e := Entry{Question: "What is Go?", Answer: "A language.", Context: "Programming"}
	want := domain.Pair{Front: "What is Go?", Back: "A language.\n\nProgramming"}
	if diff := cmp.Diff(want, e.Pair()); diff != "" {
		t.Errorf("Unexpected pair (-want +got):\n%s", diff)
	}

	if got := (Entry{Question: "Q", Answer: "A"}).Pair(); got.Back != "A" {
		t.Errorf("Expected back 'A' without context, but got '%s'", got.Back)
	}
}

func TestFormatRoundTrip(t *testing.T) {
	pairs := []domain.Pair{
		{Front: "2+2", Back: "4"},
		{Front: "Capital of France", Back: "Paris"},
	}

	var buf bytes.Buffer
	if err := Format(&buf, pairs); err != nil {
		t.Fatalf("Format() returned an unexpected error: %v", err)
	}
	entries, err := Parse(&buf)
	if err != nil {
		t.Fatalf("Parse() returned an unexpected error: %v", err)
	}

	got := make([]domain.Pair, 0, len(entries))
	for _, e := range entries {
		got = append(got, e.Pair())
	}
	if diff := cmp.Diff(pairs, got); diff != "" {
		t.Errorf("Round trip mismatch (-want +got):\n%s", diff)
	}
}
