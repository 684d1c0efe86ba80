// Package dispatch turns an inbound request into a page response: a redirect,
// a delegated handler, a rendered template, or a 404.
package dispatch

import (
	"net/http"

	"github.com/simplecms/internal/metrics"
	"github.com/simplecms/internal/service"
)

// Outcome is the terminal state of dispatching one request.
type Outcome int

const (
	NotFound Outcome = iota
	Redirect
	Delegate
	Render
)

func (o Outcome) String() string {
	switch o {
	case Redirect:
		return metrics.OutcomeRedirect
	case Delegate:
		return metrics.OutcomeDelegate
	case Render:
		return metrics.OutcomeRender
	default:
		return metrics.OutcomeNotFound
	}
}

// Decision is what the dispatcher does with a resolved request.
type Decision struct {
	Outcome Outcome
	// RedirectURL and Permanent are set for Redirect.
	RedirectURL string
	Permanent   bool
	// View is the registered handler name for Delegate.
	View string
	// Template is the template to execute for Render.
	Template string
}

// RedirectStatus returns 301 for permanent redirects and 302 otherwise.
func (d Decision) RedirectStatus() int {
	if d.Permanent {
		return http.StatusMovedPermanently
	}
	return http.StatusFound
}

// Decide applies the dispatch rules in order: no exact match is NotFound, then
// a redirect target, then a delegated view, then a template render.
func Decide(res *service.Resolution) Decision {
	if !res.Found() || !res.Exact {
		return Decision{Outcome: NotFound}
	}
	page := res.Page
	if page.RedirectURL != "" {
		return Decision{Outcome: Redirect, RedirectURL: page.RedirectURL, Permanent: page.RedirectPermanent}
	}
	if page.View != "" {
		return Decision{Outcome: Delegate, View: page.View}
	}
	return Decision{Outcome: Render, Template: res.Template}
}
