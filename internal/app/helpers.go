package app

import (
	"context"

	kspai "github.com/kisahsukses/kspai/internal"
)

// Prompt templates and cache prefixes for the task helpers.
const (
	summarizeTemplate  = "Ringkas teks berikut menjadi 3-4 kalimat jelas dan langsung:\n\n"
	analyzeTemplate    = "Analisa potongan kode berikut. Sebutkan masalah potensial, bug, dan rekomendasi perbaikan secara singkat:\n\n"
	motivationTemplate = "Buat pesan motivasi singkat (2-3 kalimat) yang relevan dengan konteks berikut:\n\n"

	PrefixSummarize = "summarize"
	PrefixAnalyze   = "analyze"
	PrefixMotivate  = "motivate"
)

// Summarize asks for a 3-4 sentence summary of text. opts supplies session,
// length and temperature; its prompt and prefix are replaced.
func (r *Resolver) Summarize(ctx context.Context, text string, opts kspai.AskRequest) (*kspai.Answer, error) {
	return r.askTemplate(ctx, summarizeTemplate, PrefixSummarize, text, opts)
}

// AnalyzeCode asks for a short review of a code snippet.
func (r *Resolver) AnalyzeCode(ctx context.Context, code string, opts kspai.AskRequest) (*kspai.Answer, error) {
	return r.askTemplate(ctx, analyzeTemplate, PrefixAnalyze, code, opts)
}

// SuggestMotivation asks for a short motivational message relevant to about.
func (r *Resolver) SuggestMotivation(ctx context.Context, about string, opts kspai.AskRequest) (*kspai.Answer, error) {
	return r.askTemplate(ctx, motivationTemplate, PrefixMotivate, about, opts)
}

func (r *Resolver) askTemplate(ctx context.Context, template, prefix, text string, opts kspai.AskRequest) (*kspai.Answer, error) {
	opts.Prompt = template + text
	opts.CachePrefix = prefix
	return r.Ask(ctx, &opts)
}
