/*
Package tendril runs resilient browser workflows for professional-network
automation: signing in, searching jobs, collecting people from a company
page, sending connection requests or messages, and filling Easy Apply forms.

Each workflow is a compiled graph of steps (see pkg/graph). Steps find
elements through multi-strategy selectors (pkg/resolve) and interact with
them through an ordered list of activation techniques (pkg/act), so a page
that moves or renames a control degrades one strategy instead of the whole
run.

# Usage

The Service owns the compiled graphs and leases one browser session per
operation from a session.Manager:

	br := browser.New(browser.Config{Headless: true})
	defer br.Close()

	svc, err := tendril.New(session.NewManager(br),
		tendril.WithLedger(memory.NewLedger()),
		tendril.WithMessageQuota(50),
	)
	if err != nil {
		log.Fatal(err)
	}

	res, err := svc.SearchJobs(ctx, jobsearch.Query{Keywords: "go developer"}, 25)

Failures inside a workflow never escape as errors. They are reported in the
result (Errors, Error) so callers can branch on partial output. Returned
errors are reserved for host-level refusals such as ErrQuotaExceeded,
ErrAlreadyContacted or a session that could not be leased.

# Sign-in

Login may stop on a security challenge. The run is then parked with its
session still leased, and ConfirmLogin resumes it once a human has solved
the challenge in the browser window. CancelLogin abandons it.
*/
package tendril
