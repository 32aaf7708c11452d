package resolve_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/tendril/internal/testutils/fakeweb"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/resolve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var submit = resolve.Required("submit button",
	resolve.CSS("button[type=submit]", "typed submit"),
	resolve.XPath("//button[contains(., 'Sign in')]", "sign-in text"),
	resolve.CSS(".login__form_action_container button", ""),
)

func TestFindOne_FirstMatchingStrategyWins(t *testing.T) {
	page := fakeweb.NewPage("https://example.test")
	second := fakeweb.NewNode("by-text")
	third := fakeweb.NewNode("by-container")
	page.Add("//button[contains(., 'Sign in')]", second)
	page.Add(".login__form_action_container button", third)

	el, err := submit.FindOne(context.Background(), page)
	require.NoError(t, err)
	assert.Same(t, second, el)
}

func TestFindOne_RequiredReportsEveryAttempt(t *testing.T) {
	page := fakeweb.NewPage("https://example.test")
	page.FailQuery("//button[contains(., 'Sign in')]", errors.New("invalid xpath"))

	el, err := submit.FindOne(context.Background(), page)
	assert.Nil(t, el)

	var rf *domain.ResolutionFailure
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, "submit button", rf.Name)
	require.Len(t, rf.Attempts, len(submit.Strategies))
	assert.Equal(t, domain.Attempt{Strategy: "typed submit", Reason: "no match"}, rf.Attempts[0])
	assert.Equal(t, "invalid xpath", rf.Attempts[1].Reason)
	assert.Equal(t, "css:.login__form_action_container button", rf.Attempts[2].Strategy, "missing description falls back to the locator")
}

func TestFindOne_OptionalReturnsNil(t *testing.T) {
	page := fakeweb.NewPage("https://example.test")

	el, err := submit.AsOptional().FindOne(context.Background(), page)
	assert.NoError(t, err)
	assert.Nil(t, el)
}

func TestFindOne_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := submit.FindOne(ctx, fakeweb.NewPage(""))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFindMany_NoMergingAcrossStrategies(t *testing.T) {
	cards := resolve.Required("cards",
		resolve.CSS("li.card", "primary"),
		resolve.CSS("li.legacy-card", "legacy"),
	)
	page := fakeweb.NewPage("https://example.test")
	page.Add("li.card", fakeweb.NewNode("a"), fakeweb.NewNode("b"))
	page.Add("li.legacy-card", fakeweb.NewNode("c"))

	els, err := cards.FindMany(context.Background(), page)
	require.NoError(t, err)
	assert.Len(t, els, 2)

	page.Remove("li.card")
	els, err = cards.FindMany(context.Background(), page)
	require.NoError(t, err)
	assert.Len(t, els, 1)

	page.Remove("li.legacy-card")
	_, err = cards.FindMany(context.Background(), page)
	var rf *domain.ResolutionFailure
	require.ErrorAs(t, err, &rf)
	assert.Len(t, rf.Attempts, 2)

	els, err = cards.AsOptional().FindMany(context.Background(), page)
	assert.NoError(t, err)
	assert.Empty(t, els)
}

func TestFindMany_ScopedToElement(t *testing.T) {
	link := resolve.Required("link", resolve.CSS("a", "anchor"))
	card := fakeweb.NewNode("card").Child("a", fakeweb.NewNode("inner"))

	el, err := link.FindOne(context.Background(), card)
	require.NoError(t, err)
	assert.NotNil(t, el)
}

func TestFindUsable_SkipsHiddenAndDisabled(t *testing.T) {
	next := resolve.Optional("next", resolve.CSS("button.next", "next"))
	page := fakeweb.NewPage("https://example.test")
	hidden := fakeweb.NewNode("hidden").Hide()
	disabled := fakeweb.NewNode("disabled").Disable()
	page.Add("button.next", hidden, disabled)

	el, err := next.FindUsable(context.Background(), page)
	require.NoError(t, err)
	assert.Nil(t, el)

	live := fakeweb.NewNode("live")
	page.Add("button.next", live)
	el, err = next.FindUsable(context.Background(), page)
	require.NoError(t, err)
	assert.Same(t, live, el)

	_, err = next.AsRequired().FindUsable(context.Background(), fakeweb.NewPage("").Add("button.next", hidden))
	var rf *domain.ResolutionFailure
	require.ErrorAs(t, err, &rf)
	assert.Contains(t, rf.Attempts[0].Reason, "none visible and enabled")
}

func TestWait_OneTimesOut(t *testing.T) {
	page := fakeweb.NewPage("https://example.test")
	w := resolve.Wait{Timeout: 20 * time.Millisecond, Interval: 5 * time.Millisecond}

	start := time.Now()
	_, err := w.One(context.Background(), page, submit)
	var rf *domain.ResolutionFailure
	assert.ErrorAs(t, err, &rf)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	el, err := w.One(context.Background(), page, submit.AsOptional())
	assert.NoError(t, err)
	assert.Nil(t, el)
}

func TestWait_OneSeesLateElement(t *testing.T) {
	page := fakeweb.NewPage("https://example.test")
	go func() {
		time.Sleep(10 * time.Millisecond)
		page.Add("button[type=submit]", fakeweb.NewNode("late"))
	}()

	w := resolve.Wait{Timeout: time.Second, Interval: 2 * time.Millisecond}
	el, err := w.One(context.Background(), page, submit)
	require.NoError(t, err)
	assert.NotNil(t, el)
}

func TestWait_CountAndURL(t *testing.T) {
	cards := resolve.Optional("cards", resolve.CSS("li", "items"))
	page := fakeweb.NewPage("https://example.test/login")
	page.Add("li", fakeweb.NewNode("1"), fakeweb.NewNode("2"))
	w := resolve.Wait{Timeout: 10 * time.Millisecond, Interval: 2 * time.Millisecond}

	n, err := w.Count(context.Background(), page, cards, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = w.Count(context.Background(), page, cards, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "not growing is reported, not raised")

	u, ok, err := w.URL(context.Background(), page, func(u string) bool { return u == "https://example.test/feed" })
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "https://example.test/login", u)
}

func TestFindPierced_ReachesHiddenRoots(t *testing.T) {
	page := fakeweb.NewPage("https://example.test")
	note := fakeweb.NewNode("note")
	page.AddPierced("textarea#custom-message", note)
	sel := resolve.Required("note field",
		resolve.CSS("textarea[name='message']", ""),
		resolve.CSS("textarea#custom-message", ""),
	)

	el, err := sel.FindOne(context.Background(), page)
	require.Error(t, err)
	assert.Nil(t, el)

	el, err = sel.FindPierced(context.Background(), page)
	require.NoError(t, err)
	assert.Same(t, note, el)
}

func TestFindPierced_RequiredFailure(t *testing.T) {
	page := fakeweb.NewPage("https://example.test")
	sel := resolve.Required("note field", resolve.CSS("textarea", "any textarea"))

	_, err := sel.FindPierced(context.Background(), page)

	var rf *domain.ResolutionFailure
	require.ErrorAs(t, err, &rf)
	require.Len(t, rf.Attempts, 1)
	assert.Equal(t, "any textarea (pierced)", rf.Attempts[0].Strategy)
}
