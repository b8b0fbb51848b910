// Package rules implements the offline responder: an ordered table of
// keyword rules evaluated against a lower-cased, trimmed prompt.
package rules

import (
	"regexp"
	"strings"
)

// Fixed replies.
const (
	ReplyNoInput    = "Maaf, saya tidak menerima input. Bisa ketik pertanyaanmu?"
	ReplyGreeting   = "Halo! Saya Kisah Sukses Pro — bagaimana saya bisa bantu hari ini?"
	ReplyHelp       = "Tentu — jelaskan masalah atau pertanyaanmu secara singkat, lalu saya akan bantu."
	ReplyNeedText   = "Berikan teks setelah kata 'ringkas:' untuk saya ringkas."
	ReplyMotivation = "Setiap langkah kecil adalah bagian dari perjalanan besar. Fokuslah pada konsistensi — bukan hanya pada hasil instan."
	ReplyCode       = "Berikan potongan kode atau deskripsikan error yang muncul, saya akan bantu analisis dan usulkan perbaikan."
	ReplyFallback   = "Maaf, saya belum bisa menjawab itu secara offline. Coba jelaskan dengan kata-kata yang lebih spesifik atau nyalakan koneksi internet untuk jawaban lebih lengkap."
)

// Rule is one entry of the table. Match sees the normalized prompt; Reply
// receives the prompt as the caller wrote it.
type Rule struct {
	Name  string
	Match func(p string) bool
	Reply func(raw string) string
}

// Engine evaluates rules in order; the first match wins.
type Engine struct {
	rules []Rule
}

// New returns an engine over the default rule table.
func New() *Engine {
	return &Engine{rules: DefaultRules()}
}

// NewWithRules returns an engine over a custom table.
func NewWithRules(rules []Rule) *Engine {
	return &Engine{rules: rules}
}

// Match returns the reply of the first matching rule. ok is false when no
// rule fired and the caller should pick its own fallback.
func (e *Engine) Match(prompt string) (reply string, ok bool) {
	p := strings.ToLower(strings.TrimSpace(prompt))
	for _, r := range e.rules {
		if r.Match(p) {
			return r.Reply(prompt), true
		}
	}
	return "", false
}

// Respond always produces an answer, using ReplyFallback when no rule fires.
func (e *Engine) Respond(prompt string) string {
	if reply, ok := e.Match(prompt); ok {
		return reply
	}
	return ReplyFallback
}

// DefaultRules returns the canonical rule table.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "empty", Match: func(p string) bool { return p == "" }, Reply: fixed(ReplyNoInput)},
		{Name: "greeting", Match: containsAny("halo", "hai", "hello"), Reply: fixed(ReplyGreeting)},
		{Name: "help", Match: containsAny("bantu", "tolong"), Reply: fixed(ReplyHelp)},
		{Name: "summarize", Match: isSummarize, Reply: Summarize},
		{Name: "motivation", Match: containsAny("motivasi", "inspirasi", "kisah sukses"), Reply: fixed(ReplyMotivation)},
		{Name: "code", Match: containsAny("kode", "bug", "debug"), Reply: fixed(ReplyCode)},
	}
}

func fixed(s string) func(string) string {
	return func(string) string { return s }
}

func containsAny(tokens ...string) func(string) bool {
	return func(p string) bool {
		for _, t := range tokens {
			if strings.Contains(p, t) {
				return true
			}
		}
		return false
	}
}

func isSummarize(p string) bool {
	return strings.HasPrefix(p, "ringkas:") ||
		strings.HasPrefix(p, "summarize:") ||
		strings.Contains(p, "ringkasan") ||
		strings.Contains(p, "summarize")
}

var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+`)

// Summarize returns the first two sentences of the text after the first
// colon in raw. Text without sentence punctuation is returned whole.
func Summarize(raw string) string {
	_, text, _ := strings.Cut(raw, ":")
	text = strings.TrimSpace(text)
	if text == "" {
		return ReplyNeedText
	}
	sentences := sentenceRe.FindAllString(text, 2)
	if len(sentences) == 0 {
		return text
	}
	for i, sent := range sentences {
		sentences[i] = strings.TrimSpace(sent)
	}
	return strings.Join(sentences, " ")
}
