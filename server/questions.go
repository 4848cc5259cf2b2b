package main

import (
	"errors"
	"math/rand"
)

// ErrNoQuestions signals an exhausted question deck
var ErrNoQuestions = errors.New("no questions left")

// Question is one quiz question, immutable once drawn
type Question struct {
	ID      string
	Prompt  string
	Choices []string
	Correct int
}

// QuestionDeck draws questions at random without replacement.
// Not safe for concurrent use on its own; the game serializes access
// under the world lock.
type QuestionDeck struct {
	qs []*Question
}

// NewDeck builds a deck over the given questions
func NewDeck(qs []*Question) *QuestionDeck {
	d := &QuestionDeck{qs: make([]*Question, len(qs))}
	copy(d.qs, qs)
	return d
}

// Draw removes and returns a random question, or ErrNoQuestions
func (d *QuestionDeck) Draw() (*Question, error) {
	if len(d.qs) == 0 {
		return nil, ErrNoQuestions
	}
	i := rand.Intn(len(d.qs))
	q := d.qs[i]
	d.qs[i] = d.qs[len(d.qs)-1]
	d.qs = d.qs[:len(d.qs)-1]
	return q, nil
}

// Remaining returns how many questions are still undrawn
func (d *QuestionDeck) Remaining() int {
	return len(d.qs)
}

// builtinQuestions is the fallback bank, also used to seed a fresh
// question database.
var builtinQuestions = []*Question{
	{ID: "q1", Prompt: "What is the capital of France?", Choices: []string{"Paris", "London", "Rome", "Berlin"}, Correct: 0},
	{ID: "q2", Prompt: "2 + 2 * 2 = ?", Choices: []string{"6", "8", "4", "2"}, Correct: 0},
	{ID: "q3", Prompt: "Which planet is known as the Red Planet?", Choices: []string{"Earth", "Mars", "Jupiter", "Saturn"}, Correct: 1},
	{ID: "q4", Prompt: "How many continents are there?", Choices: []string{"5", "6", "7", "8"}, Correct: 2},
	{ID: "q5", Prompt: "What is the largest ocean?", Choices: []string{"Atlantic", "Indian", "Arctic", "Pacific"}, Correct: 3},
	{ID: "q6", Prompt: "Which gas do plants absorb from the air?", Choices: []string{"Oxygen", "Carbon dioxide", "Nitrogen", "Helium"}, Correct: 1},
	{ID: "q7", Prompt: "What is the square root of 144?", Choices: []string{"10", "11", "12", "14"}, Correct: 2},
	{ID: "q8", Prompt: "Who painted the Mona Lisa?", Choices: []string{"Van Gogh", "Picasso", "Rembrandt", "Da Vinci"}, Correct: 3},
	{ID: "q9", Prompt: "Which language has the most native speakers?", Choices: []string{"English", "Hindi", "Mandarin", "Spanish"}, Correct: 2},
	{ID: "q10", Prompt: "What is the chemical symbol for gold?", Choices: []string{"Go", "Gd", "Au", "Ag"}, Correct: 2},
	{ID: "q11", Prompt: "How many legs does a spider have?", Choices: []string{"6", "8", "10", "12"}, Correct: 1},
	{ID: "q12", Prompt: "In which year did the first moon landing happen?", Choices: []string{"1965", "1969", "1972", "1959"}, Correct: 1},
}
