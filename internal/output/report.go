package output

import (
	"fmt"
	"io"

	"github.com/fslongjin/bandsweep/internal/sweep"
	"github.com/fslongjin/bandsweep/pkg/model"
)

// SweepReport is the printable summary of one sweep or retry.
type SweepReport struct {
	OperationID string             `json:"operation_id" yaml:"operationId"`
	BandKey     string             `json:"band_key" yaml:"bandKey"`
	BandName    string             `json:"band_name" yaml:"bandName"`
	Scope       model.ScopeKind    `json:"scope" yaml:"scope"`
	Keyword     string             `json:"keyword,omitempty" yaml:"keyword,omitempty"`
	Retry       bool               `json:"retry" yaml:"retry"`
	Count       int                `json:"count" yaml:"count"`
	Result      string             `json:"result" yaml:"result"`
	Total       int                `json:"total" yaml:"total"`
	Successful  int                `json:"successful" yaml:"successful"`
	Failed      int                `json:"failed" yaml:"failed"`
	FailedItems []model.FailedItem `json:"failed_items,omitempty" yaml:"failedItems,omitempty"`

	noun string
}

const (
	ResultDeclined       = "declined"
	ResultNothingToRetry = "nothing-to-retry"
)

// NewSweepReport flattens an orchestrator result for display.
func NewSweepReport(res *sweep.Result, band model.Band, scope model.DeleteScope, retry bool) SweepReport {
	r := SweepReport{
		BandKey:  band.BandKey,
		BandName: band.Name,
		Scope:    scope.Kind,
		Keyword:  scope.NormalizedKeyword(),
		Retry:    retry,
		noun:     scope.Noun(),
	}
	if res == nil {
		return r
	}
	r.OperationID = res.OperationID
	r.Count = res.Count
	switch {
	case res.Declined:
		r.Result = ResultDeclined
	case res.NothingToRetry:
		r.Result = ResultNothingToRetry
	case res.Outcome != nil:
		r.Result = string(res.Kind())
		r.Total = res.Outcome.Total
		r.Successful = res.Outcome.Successful
		r.Failed = res.Outcome.Failed
		r.FailedItems = res.Outcome.FailedItems
	}
	return r
}

// Reporter prints sweep results in the chosen format.
type Reporter struct {
	W      io.Writer
	Format Format
}

// Report writes r. The table format is a short styled summary; json and
// yaml print the full structure.
func (p *Reporter) Report(r SweepReport) error {
	if p.Format != FormatTable && p.Format != "" {
		return NewFormatter(p.Format).Write(p.W, r)
	}
	noun := r.noun
	if noun == "" {
		noun = "comments"
		if r.Scope == model.ScopeAllPosts {
			noun = "posts"
		}
	}

	switch r.Result {
	case ResultDeclined:
		fmt.Fprintln(p.W, MutedStyle.Render("Cancelled. Nothing was deleted."))
	case ResultNothingToRetry:
		fmt.Fprintln(p.W, MutedStyle.Render("Nothing to retry."))
	case string(model.OutcomeNothing):
		fmt.Fprintln(p.W, MutedStyle.Render(fmt.Sprintf("No matching %s in band %s. Nothing to delete.", noun, r.BandName)))
	case string(model.OutcomeSuccess):
		fmt.Fprintln(p.W, PassStyle.Render(fmt.Sprintf("%s Deleted %d %s.", IconPass, r.Successful, noun)))
	case string(model.OutcomePartial), string(model.OutcomeFailure):
		style, icon := WarnStyle, IconWarn
		if r.Result == string(model.OutcomeFailure) {
			style, icon = FailStyle, IconFail
		}
		fmt.Fprintln(p.W, style.Render(fmt.Sprintf("%s Deleted %d %s, %d failed.", icon, r.Successful, noun, r.Failed)))
		summary := sweep.SummarizeFailures(r.FailedItems, sweep.MaxReasons)
		for _, reason := range summary.Reasons {
			fmt.Fprintln(p.W, "  "+MutedStyle.Render(TreeLast)+reason)
		}
		if summary.More {
			fmt.Fprintln(p.W, "  "+MutedStyle.Render("and other errors"))
		}
	default:
		fmt.Fprintln(p.W, MutedStyle.Render("No deletion was run."))
	}
	return nil
}
