package generate

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"

	"github.com/conorfennell/knoldeck/internal/domain"
)

// DefaultTriviaURL is the Open Trivia DB question endpoint.
const DefaultTriviaURL = "https://opentdb.com/api.php"

// Trivia fetches true/false questions from Open Trivia DB.
type Trivia struct {
	Client   *http.Client
	BaseURL  string
	Category string
	Amount   int
}

type triviaResponse struct {
	ResponseCode int `json:"response_code"`
	Results      []struct {
		Question      string `json:"question"`
		CorrectAnswer string `json:"correct_answer"`
	} `json:"results"`
}

// DeckName implements Source.
func (t *Trivia) DeckName() string {
	return "🎯 Trivia"
}

// Generate implements Source.
func (t *Trivia) Generate(ctx context.Context) ([]domain.Pair, error) {
	base := t.BaseURL
	if base == "" {
		base = DefaultTriviaURL
	}
	amount := t.Amount
	if amount <= 0 {
		amount = 10
	}

	q := url.Values{}
	q.Set("amount", strconv.Itoa(amount))
	q.Set("type", "boolean")
	if t.Category != "" {
		q.Set("category", t.Category)
	}

	var resp triviaResponse
	if err := getJSON(ctx, t.Client, base+"?"+q.Encode(), &resp); err != nil {
		return nil, generationError("trivia", err)
	}
	if resp.ResponseCode != 0 {
		return nil, generationError("trivia", fmt.Errorf("response code %d", resp.ResponseCode))
	}

	pairs := make([]domain.Pair, 0, len(resp.Results))
	for _, r := range resp.Results {
		pairs = append(pairs, domain.Pair{
			Front: html.UnescapeString(r.Question),
			Back:  html.UnescapeString(r.CorrectAnswer),
		})
	}
	return pairs, nil
}
