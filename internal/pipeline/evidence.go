package pipeline

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sells-group/rename-cli/internal/model"
)

type pageEvidence struct {
	url     string
	text    string
	outcome model.ExtractionOutcome
}

// decide runs the Extracting state: the official page first when a fetcher
// is configured, then each ranked snippet, then the fallback.
func (p *Pipeline) decide(ctx context.Context, name string, ranked []model.ScoredResult) (model.CompanyRecord, bool, error) {
	page, err := p.readOfficialPage(ctx, name, ranked)
	if err != nil {
		return model.CompanyRecord{}, false, err
	}
	if page != nil && page.outcome.HasName {
		rec := p.changedRecord(name, page.outcome, excerpt(page.text, page.outcome.NewName, p.opts.ExcerptRunes), page.url)
		return rec, rec.Status == model.StatusChanged, nil
	}

	for _, r := range ranked {
		o := p.eng.Extractor.Extract(r.Text(), name)
		if !o.HasName {
			continue
		}
		if page != nil {
			if o.ChangeDate == model.DateUnknown {
				o.ChangeDate = page.outcome.ChangeDate
			}
			if o.ChangeReason == model.ReasonUnknown {
				o.ChangeReason = page.outcome.ChangeReason
			}
		}
		rec := p.changedRecord(name, o, r.Snippet, r.URL)
		return rec, rec.Status == model.StatusChanged, nil
	}

	return p.fallbackRecord(name, ranked), false, nil
}

// readOfficialPage fetches and extracts the page most likely to be the
// company's own announcement. Fetch failures degrade to snippets only; a
// spent context is returned as an acquisition failure.
func (p *Pipeline) readOfficialPage(ctx context.Context, name string, ranked []model.ScoredResult) (*pageEvidence, error) {
	if p.fetch == nil || len(ranked) == 0 {
		return nil, nil
	}
	target := p.officialCandidate(name, ranked)
	text, err := p.fetch.FetchText(ctx, target)
	if ctx.Err() != nil {
		return nil, asAcquisition("page", "fetch", ctx.Err())
	}
	if err != nil {
		zap.L().Debug("pipeline: page fetch failed, using snippets",
			zap.String("company", name),
			zap.String("url", target),
			zap.Error(err),
		)
		return nil, nil
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return &pageEvidence{url: target, text: text, outcome: p.eng.Extractor.Extract(text, name)}, nil
}

// officialCandidate prefers a landing page on the company's own domain, then
// any page on it, then the top-ranked result.
func (p *Pipeline) officialCandidate(name string, ranked []model.ScoredResult) string {
	first := ""
	for _, r := range ranked {
		if !p.eng.Scorer.OfficialSite(name, r.URL) {
			continue
		}
		if p.eng.Scorer.LandingPage(r.URL) {
			return r.URL
		}
		if first == "" {
			first = r.URL
		}
	}
	if first != "" {
		return first
	}
	return ranked[0].URL
}

func (p *Pipeline) changedRecord(name string, o model.ExtractionOutcome, snippet, url string) model.CompanyRecord {
	status := model.StatusChanged
	if p.opts.RequireCorroboration && o.ChangeDate == model.DateUnknown && o.ChangeReason == model.ReasonUnknown {
		status = model.StatusNeedsReview
	}
	return model.CompanyRecord{
		OriginalName:    name,
		NewName:         o.NewName,
		ChangeDate:      o.ChangeDate,
		ChangeReason:    o.ChangeReason,
		Status:          status,
		EvidenceSnippet: snippet,
		EvidenceURL:     url,
	}
}

// fallbackRecord is the NoChangeFallback outcome: the top survivor as
// evidence, needs_review when any survivor announces a change we could not
// parse.
func (p *Pipeline) fallbackRecord(name string, ranked []model.ScoredResult) model.CompanyRecord {
	rec := model.CompanyRecord{
		OriginalName: name,
		ChangeDate:   model.DateUnknown,
		ChangeReason: model.ReasonUnknown,
		Status:       model.StatusUnchanged,
	}
	if len(ranked) == 0 {
		return rec
	}
	rec.EvidenceSnippet = ranked[0].Snippet
	rec.EvidenceURL = ranked[0].URL
	for _, r := range ranked {
		if p.eng.Scorer.HasStrongKeyword(r.Text()) {
			rec.Status = model.StatusNeedsReview
			break
		}
	}
	return rec
}

// excerpt returns about n runes of text around the first occurrence of
// needle, with whitespace collapsed.
func excerpt(text, needle string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	i := strings.Index(text, needle)
	if i < 0 {
		i = 0
	}
	runes := []rune(text)
	center := utf8.RuneCountInString(text[:i])
	start := max(center-n/2, 0)
	end := min(start+n, len(runes))
	return strings.TrimSpace(string(runes[start:end]))
}
