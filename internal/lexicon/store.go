package lexicon

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"moodrisk/internal/models"

	"go.uber.org/zap"
)

//go:embed data/vad_lexicon.json
var defaultResource []byte

// DefaultCrisisKeywords are used when the resource is missing, malformed or has no crisis section
var DefaultCrisisKeywords = []string{
	"suicide", "suicidal", "kill", "dying", "death", "harm", "hopeless",
}

// Lexicon is an immutable word -> VAD table plus a crisis phrase set.
// It is safe for concurrent reads.
type Lexicon struct {
	words  map[string]models.VAD
	crisis []string // lowercase, sorted, distinct
}

type vadNode struct {
	V *float64 `json:"v"`
	A *float64 `json:"a"`
	D *float64 `json:"d"`
}

func (n vadNode) complete() bool {
	return n.V != nil && n.A != nil && n.D != nil
}

func (n vadNode) vad() models.VAD {
	return models.VAD{Valence: *n.V, Arousal: *n.A, Dominance: *n.D}
}

type resource struct {
	Words          map[string]vadNode         `json:"words"`
	CrisisKeywords map[string]json.RawMessage `json:"crisis_keywords"`
}

// Load parses a lexicon resource
func Load(r io.Reader) (*Lexicon, error) {
	var res resource
	if err := json.NewDecoder(r).Decode(&res); err != nil {
		return nil, fmt.Errorf("failed to decode lexicon: %w", err)
	}

	lex := &Lexicon{words: make(map[string]models.VAD, len(res.Words))}

	for word, node := range res.Words {
		if !node.complete() {
			return nil, fmt.Errorf("word %q: v, a and d are required", word)
		}
		vad := node.vad()
		if !vad.InRange() {
			return nil, fmt.Errorf("word %q: VAD values must be within [0,1]", word)
		}
		lex.words[strings.ToLower(word)] = vad
	}

	if res.CrisisKeywords == nil {
		lex.crisis = normalizePhrases(DefaultCrisisKeywords)
		return lex, nil
	}

	phrases := make([]string, 0, len(res.CrisisKeywords))
	for phrase, raw := range res.CrisisKeywords {
		if strings.HasPrefix(phrase, "_") {
			continue // metadata
		}
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase == "" {
			continue
		}
		phrases = append(phrases, phrase)

		if strings.Contains(phrase, " ") {
			continue
		}
		var node vadNode
		if err := json.Unmarshal(raw, &node); err != nil || !node.complete() {
			continue // single-word phrase without its own annotation
		}
		if vad := node.vad(); vad.InRange() {
			lex.words[phrase] = vad
		}
	}
	lex.crisis = normalizePhrases(phrases)

	return lex, nil
}

// LoadFile loads a lexicon resource from disk
func LoadFile(path string) (*Lexicon, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open lexicon: %w", err)
	}
	defer file.Close()

	return Load(file)
}

// Default returns the lexicon embedded in the binary
func Default() (*Lexicon, error) {
	return Load(bytes.NewReader(defaultResource))
}

// Fallback has no words and only the default crisis keywords.
// Ordinary text scores as neutral against it.
func Fallback() *Lexicon {
	return &Lexicon{
		words:  map[string]models.VAD{},
		crisis: normalizePhrases(DefaultCrisisKeywords),
	}
}

// LoadOrFallback loads path (or the embedded resource when path is empty).
// Failures are logged and degrade to Fallback; they are never fatal.
func LoadOrFallback(path string, logger *zap.Logger) *Lexicon {
	var (
		lex *Lexicon
		err error
	)
	if path == "" {
		lex, err = Default()
	} else {
		lex, err = LoadFile(path)
	}
	if err != nil {
		logger.Error("Failed to load VAD lexicon, using default crisis keywords",
			zap.String("path", path),
			zap.Error(err))
		return Fallback()
	}

	logger.Info("VAD lexicon loaded",
		zap.Int("words", lex.Size()),
		zap.Int("crisis_keywords", lex.CrisisPhraseCount()))

	return lex
}

// Lookup returns the VAD of a lowercase word
func (l *Lexicon) Lookup(word string) (models.VAD, bool) {
	vad, ok := l.words[word]
	return vad, ok
}

// CrisisPhrases returns a copy of the crisis phrase set
func (l *Lexicon) CrisisPhrases() []string {
	out := make([]string, len(l.crisis))
	copy(out, l.crisis)
	return out
}

// Size is the number of scored words
func (l *Lexicon) Size() int {
	return len(l.words)
}

// CrisisPhraseCount is the number of crisis phrases
func (l *Lexicon) CrisisPhraseCount() int {
	return len(l.crisis)
}

// Ready reports whether any words were loaded
func (l *Lexicon) Ready() bool {
	return len(l.words) > 0
}

func normalizePhrases(phrases []string) []string {
	seen := make(map[string]bool, len(phrases))
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(p)
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
