package people_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/tendril/internal/testutils/fakeweb"
	"github.com/aretw0/tendril/pkg/graph"
	"github.com/aretw0/tendril/pkg/workflows"
	"github.com/aretw0/tendril/pkg/workflows/people"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	cardExpr    = "li.org-people-profile-card__profile-card-spacing"
	nameExpr    = ".artdeco-entity-lockup__title a[data-test-app-aware-link]"
	profileExpr = ".artdeco-entity-lockup__title a[href*='/in/']"
	titleExpr   = ".artdeco-entity-lockup__subtitle div.lt-line-clamp"
	moreExpr    = "button.scaffold-finite-scroll__load-button"

	listURL = "https://www.linkedin.com/company/acme/people/"
)

// roster simulates a people list that appends a batch of cards per click.
type roster struct {
	page  *fakeweb.Page
	batch int
	next  int
	more  *fakeweb.Node
	// batches limits how many batches exist; zero means endless.
	batches int
	loaded  int
	// stall stops the list from growing after the first batch.
	stall bool
}

func newRoster(batch, batches int) *roster {
	r := &roster{
		page:    fakeweb.NewPage("about:blank"),
		batch:   batch,
		batches: batches,
		more:    fakeweb.NewNode("show-more"),
	}
	r.more.OnActivate(func() {
		if !r.stall {
			r.load()
		}
	})
	r.page.On(listURL, func(p *fakeweb.Page) {
		p.Add(moreExpr, r.more)
		r.load()
	})
	return r
}

func (r *roster) load() {
	for i := 0; i < r.batch; i++ {
		r.page.Add(cardExpr, member(r.next))
		r.next++
	}
	r.loaded++
	if r.batches > 0 && r.loaded >= r.batches {
		r.more.Hide()
	}
}

func member(i int) *fakeweb.Node {
	profile := fmt.Sprintf("https://www.linkedin.com/in/member-%d?miniProfileUrn=x", i)
	return fakeweb.NewNode(fmt.Sprintf("card-%d", i)).
		Child(nameExpr, fakeweb.NewNode("name").
			WithAttr("aria-label", fmt.Sprintf("View Member %d’s profile", i)).
			WithText("ignored")).
		Child(profileExpr, fakeweb.NewNode("profile").WithAttr("href", profile)).
		Child(titleExpr, fakeweb.NewNode("title").WithText(fmt.Sprintf(" Engineer %d ", i)))
}

func newWorkflow(t *testing.T, opts ...people.Option) *people.Workflow {
	t.Helper()
	w, err := people.New(workflows.Kit{Ready: 20 * time.Millisecond}, opts...)
	require.NoError(t, err)
	return w
}

func TestPeople_Limit(t *testing.T) {
	r := newRoster(5, 0)
	w := newWorkflow(t)

	run := w.Run(context.Background(), r.page, "acme", 12)

	require.Equal(t, graph.StatusCompleted, run.Status)
	require.Len(t, run.State.People, 12)
	assert.Equal(t, 2, run.State.Clicks)
	assert.Len(t, run.State.Seen, 12)
	assert.Empty(t, run.State.Errors)

	p := run.State.People[0]
	assert.Equal(t, "Member 0", p.Name)
	assert.Equal(t, "Engineer 0", p.Title)
	assert.Equal(t, "https://www.linkedin.com/in/member-0", p.ProfileURL)
}

func TestPeople_ClickCap(t *testing.T) {
	r := newRoster(2, 0)
	w := newWorkflow(t)

	run := w.Run(context.Background(), r.page, "acme", 0)

	require.Equal(t, graph.StatusCompleted, run.Status)
	assert.Equal(t, people.DefaultMaxShowMore, run.State.Clicks)
	assert.Equal(t, people.DefaultMaxShowMore, r.more.Activations())
	assert.Len(t, run.State.People, 2*(people.DefaultMaxShowMore+1))
}

func TestPeople_StopsWhenControlGone(t *testing.T) {
	r := newRoster(3, 2)
	w := newWorkflow(t)

	run := w.Run(context.Background(), r.page, "acme", 100)

	assert.Equal(t, 1, run.State.Clicks)
	assert.Len(t, run.State.People, 6)
	assert.Equal(t, people.ControlMissing, run.State.More)
}

func TestPeople_NeverCollectsTwice(t *testing.T) {
	r := newRoster(3, 2)
	// The second batch re-renders a card that is already on the list.
	r.more.OnActivate(func() {
		r.page.Add(cardExpr, member(0), member(10))
		r.loaded++
		r.more.Hide()
	})
	w := newWorkflow(t)

	run := w.Run(context.Background(), r.page, "acme", 0)

	names := make([]string, 0, len(run.State.People))
	for _, p := range run.State.People {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Member 0", "Member 1", "Member 2", "Member 10"}, names)
	assert.Len(t, run.State.Seen, 4)
}

func TestPeople_Exclusions(t *testing.T) {
	r := newRoster(3, 1)
	w := newWorkflow(t)

	run := w.Run(context.Background(), r.page, "acme", 0, "https://www.linkedin.com/in/member-1?trk=x")

	require.Len(t, run.State.People, 2)
	assert.Equal(t, "Member 0", run.State.People[0].Name)
	assert.Equal(t, "Member 2", run.State.People[1].Name)
}

func TestPeople_SkipsBrokenCard(t *testing.T) {
	r := newRoster(0, 1)
	r.page.On(listURL, func(p *fakeweb.Page) {
		p.Add(cardExpr,
			member(0),
			fakeweb.NewNode("anonymous").Child(nameExpr, fakeweb.NewNode("name").WithText("LinkedIn Member")),
			member(2),
		)
	})
	w := newWorkflow(t)

	run := w.Run(context.Background(), r.page, "acme", 0)

	require.Len(t, run.State.People, 2)
	require.Len(t, run.State.Errors, 1)
	assert.Contains(t, run.State.Errors[0], "card 2")
	assert.Empty(t, run.Failures())
}

func TestPeople_NameFallsBackToText(t *testing.T) {
	page := fakeweb.NewPage("about:blank")
	page.On(listURL, func(p *fakeweb.Page) {
		p.Add(cardExpr, fakeweb.NewNode("card").
			Child(nameExpr, fakeweb.NewNode("name").WithAttr("aria-label", "Open profile").WithText(" Grace Hopper ")).
			Child(profileExpr, fakeweb.NewNode("profile").WithAttr("href", "https://www.linkedin.com/in/grace")))
	})
	w := newWorkflow(t)

	run := w.Run(context.Background(), page, "acme", 0)

	require.Len(t, run.State.People, 1)
	assert.Equal(t, "Grace Hopper", run.State.People[0].Name)
	assert.Empty(t, run.State.People[0].Title)
}

func TestPeople_NoCards(t *testing.T) {
	page := fakeweb.NewPage("about:blank")
	w := newWorkflow(t)

	run := w.Run(context.Background(), page, "acme", 5)

	require.Equal(t, graph.StatusCompleted, run.Status)
	require.Len(t, run.State.Errors, 1)
	assert.Contains(t, run.State.Errors[0], "no employee cards found on page")
	assert.NotNil(t, people.Result(run).People)
}

func TestPeople_StalledList(t *testing.T) {
	r := newRoster(3, 0)
	r.stall = true
	w := newWorkflow(t)

	run := w.Run(context.Background(), r.page, "acme", 0)

	require.Equal(t, graph.StatusCompleted, run.Status)
	assert.Equal(t, 1, run.State.Clicks)
	assert.Len(t, run.State.People, 3)
	require.Len(t, run.State.Errors, 1)
	assert.Contains(t, run.State.Errors[0], "no new cards after show more")
}

func TestListURL(t *testing.T) {
	cases := map[string]string{
		"acme":                                         listURL,
		"https://www.linkedin.com/company/acme":        listURL,
		"https://www.linkedin.com/company/acme/":       listURL,
		"https://www.linkedin.com/company/acme/people": listURL,
		"www.linkedin.com/company/acme/":               listURL,
		"linkedin.com/company/acme":                    "https://www.linkedin.com/company/acme/people/",
		"http://www.linkedin.com/company/acme?trk=1":   listURL,
	}
	for in, want := range cases {
		got, err := people.ListURL(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := people.ListURL("  ")
	assert.Error(t, err)
}

func TestNameFromLabel(t *testing.T) {
	name, ok := people.NameFromLabel("View Ada Lovelace's profile")
	assert.True(t, ok)
	assert.Equal(t, "Ada Lovelace", name)

	name, ok = people.NameFromLabel("View Ada Lovelace’s profile")
	assert.True(t, ok)
	assert.Equal(t, "Ada Lovelace", name)

	_, ok = people.NameFromLabel("Ada Lovelace")
	assert.False(t, ok)
}
