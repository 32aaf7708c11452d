// Package selectors holds the lookup strategies for every element the
// workflows touch. Markup on the target site changes often, so each element
// carries several hypotheses and the whole catalog can be overridden from YAML.
package selectors

import (
	"github.com/aretw0/tendril/pkg/resolve"
)

var (
	css   = resolve.CSS
	xpath = resolve.XPath
)

// Catalog groups every selector used by the workflows.
type Catalog struct {
	// Authentication
	LoginUsername resolve.Selector
	LoginPassword resolve.Selector
	LoginSubmit   resolve.Selector

	// Job search
	JobCard        resolve.Selector
	JobLink        resolve.Selector
	JobCompany     resolve.Selector
	JobDescription resolve.Selector
	NextPage       resolve.Selector

	// People search
	PersonCard    resolve.Selector
	PersonName    resolve.Selector
	PersonTitle   resolve.Selector
	PersonProfile resolve.Selector
	ShowMore      resolve.Selector

	// Outreach
	ProfileReady    resolve.Selector
	ConnectButton   resolve.Selector
	MoreActions     resolve.Selector
	OverflowConnect resolve.Selector
	MessageButton   resolve.Selector
	AddNote         resolve.Selector
	NoteField       resolve.Selector
	SendInvite      resolve.Selector
	ComposeBox      resolve.Selector
	ComposeSubject  resolve.Selector
	ComposeSend     resolve.Selector

	// Easy Apply
	ApplyButton    resolve.Selector
	ApplyModal     resolve.Selector
	TextField      resolve.Selector
	TextArea       resolve.Selector
	SelectField    resolve.Selector
	RadioGroup     resolve.Selector
	RadioLegend    resolve.Selector
	RadioOption    resolve.Selector
	NextStep       resolve.Selector
	ReviewStep     resolve.Selector
	SubmitApply    resolve.Selector
	ApplyConfirmed resolve.Selector
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return &Catalog{
		LoginUsername: resolve.Required("login_username",
			css("#username", "username id"),
			css("#session_key", "session key id"),
			css("input[name='session_key']", "session key name"),
		),
		LoginPassword: resolve.Required("login_password",
			css("#password", "password id"),
			css("#session_password", "session password id"),
			css("input[name='session_password']", "session password name"),
		),
		LoginSubmit: resolve.Required("login_submit",
			css("button[type='submit']", "typed submit"),
			css("button[data-id='sign-in-form__submit-btn']", "sign-in form submit"),
			xpath("//button[contains(., 'Sign in')]", "sign-in text"),
		),

		JobCard: resolve.Required("job_card",
			css("li[data-occludable-job-id]", "occludable list item"),
			css("[data-occludable-job-id]", "occludable element"),
			css("div.job-card-container", "job card container"),
		),
		JobLink: resolve.Required("job_link",
			css("a.job-card-container__link", "card link"),
			css("a[href*='/jobs/view/']", "job view href"),
			css("[href]", "any href"),
		),
		JobCompany: resolve.Optional("job_company",
			css(".artdeco-entity-lockup__subtitle", "lockup subtitle"),
			css(".job-card-container__primary-description", "primary description"),
		),
		JobDescription: resolve.Required("job_description",
			css(".jobs-description__content.jobs-description-content", "description content"),
			css("#job-details", "job details id"),
			css(".jobs-box__html-content", "html content box"),
		),
		NextPage: resolve.Optional("next_page",
			css("button[aria-label='View next page']", "next page aria"),
			css(".artdeco-pagination__button--next", "pagination next"),
			xpath("//button[.//span[text()='Next']]", "next text"),
		),

		PersonCard: resolve.Required("person_card",
			css("li.org-people-profile-card__profile-card-spacing", "card spacing item"),
			css("li.org-people-profile-card", "profile card item"),
			xpath("//li[contains(@class,'org-people-profile-card')]", "profile card class"),
		),
		PersonName: resolve.Required("person_name",
			css(".artdeco-entity-lockup__title a[data-test-app-aware-link]", "app-aware title link"),
			css(".artdeco-entity-lockup__title a[href*='/in/']", "title profile link"),
			css(".org-people-profile-card__profile-title", "profile title"),
			xpath(".//div[contains(@class,'artdeco-entity-lockup__title')]//a", "lockup title anchor"),
		),
		PersonTitle: resolve.Optional("person_title",
			css(".artdeco-entity-lockup__subtitle div.lt-line-clamp", "clamped subtitle"),
			css(".artdeco-entity-lockup__subtitle", "lockup subtitle"),
			xpath(".//div[contains(@class,'artdeco-entity-lockup__subtitle')]", "subtitle class"),
		),
		PersonProfile: resolve.Required("person_profile",
			css(".artdeco-entity-lockup__title a[href*='/in/']", "title profile link"),
			css("a[href*='/in/']", "any profile link"),
		),
		ShowMore: resolve.Optional("show_more",
			css("button.scaffold-finite-scroll__load-button", "finite scroll button"),
			xpath("//button[contains(@class,'scaffold-finite-scroll__load-button')]", "finite scroll class"),
			xpath("//button[contains(., 'Show more')]", "show more text"),
		),

		ProfileReady: resolve.Required("profile_ready",
			css(".pv-top-card", "top card"),
			css(".scaffold-layout", "scaffold layout"),
		),
		ConnectButton: resolve.Optional("connect_button",
			xpath("//main//button[contains(@aria-label,'Invite') and contains(@aria-label,'connect')]", "invite aria"),
			xpath("//button[contains(@aria-label,'Connect') or contains(@aria-label,'connect')]", "connect aria"),
		),
		MoreActions: resolve.Optional("more_actions",
			xpath("//main//button[contains(@aria-label,'More actions')]", "more actions aria"),
			css("button.artdeco-dropdown__trigger", "dropdown trigger"),
		),
		OverflowConnect: resolve.Optional("overflow_connect",
			xpath("//div[contains(@class,'artdeco-dropdown__item')][.//span[text()='Connect']]", "dropdown connect item"),
			xpath("//span[text()='Connect']/ancestor::button", "connect span button"),
		),
		MessageButton: resolve.Optional("message_button",
			xpath("//main//button[contains(@aria-label,'Message')]", "message aria"),
			css("a.message-anywhere-button", "message anywhere link"),
		),
		AddNote: resolve.Optional("add_note",
			xpath("//button[contains(@aria-label,'Add a note')]", "add note aria"),
			xpath("//button[.//span[text()='Add a note']]", "add note text"),
		),
		NoteField: resolve.Required("note_field",
			css("textarea[name='message']", "message textarea"),
			css("textarea#custom-message", "custom message id"),
		),
		SendInvite: resolve.Required("send_invite",
			xpath("//button[contains(@aria-label,'Send') or @aria-label='Send now']", "send aria"),
			xpath("//button[.//span[text()='Send']]", "send text"),
		),
		ComposeBox: resolve.Required("compose_box",
			css(".msg-form__contenteditable", "message form editor"),
			css("div[role='textbox']", "textbox role"),
		),
		ComposeSubject: resolve.Optional("compose_subject",
			css("input[name='subject']", "subject name"),
			css("input[placeholder*='Subject']", "subject placeholder"),
		),
		ComposeSend: resolve.Required("compose_send",
			css("button.msg-form__send-button", "message form send"),
			css("button[type='submit']", "typed submit"),
		),

		ApplyButton: resolve.Required("apply_button",
			css("button[data-view-name='job-apply-button']", "apply view name"),
			css("button.jobs-apply-button", "apply button class"),
			xpath("//button[contains(@aria-label,'Easy Apply')]", "easy apply aria"),
		),
		ApplyModal: resolve.Required("apply_modal",
			css(".jobs-easy-apply-modal", "easy apply modal"),
			css(".artdeco-modal", "generic modal"),
		),
		TextField: resolve.Optional("text_field",
			css("input[type='text'], input[type='email'], input[type='tel'], input[type='number']", "typed inputs"),
			css("input:not([type='hidden']):not([type='radio']):not([type='checkbox']):not([type='file'])", "untyped inputs"),
		),
		TextArea: resolve.Optional("text_area",
			css("textarea", "textarea"),
		),
		SelectField: resolve.Optional("select_field",
			css("select", "select"),
		),
		RadioGroup: resolve.Optional("radio_group",
			css("fieldset[data-test-form-builder-radio-button-form-component]", "form builder radio"),
			css("fieldset", "fieldset"),
		),
		RadioLegend: resolve.Optional("radio_legend",
			css("legend", "legend"),
			css("span[data-test-form-builder-radio-button-form-component__title]", "radio title"),
		),
		RadioOption: resolve.Optional("radio_option",
			css("label", "option label"),
		),
		NextStep: resolve.Optional("next_step",
			css("button[aria-label='Continue to next step']", "continue aria"),
			css("button[data-easy-apply-next-button]", "next data attr"),
			css("button[data-live-test-easy-apply-next-button]", "live test next"),
		),
		ReviewStep: resolve.Optional("review_step",
			css("button[aria-label='Review your application']", "review aria"),
			css("button[data-live-test-easy-apply-review-button]", "live test review"),
		),
		SubmitApply: resolve.Optional("submit_apply",
			css("button[aria-label*='Submit application']", "submit aria"),
			css("button[data-live-test-easy-apply-submit-button]", "live test submit"),
		),
		ApplyConfirmed: resolve.Optional("apply_confirmed",
			css(".artdeco-inline-feedback--success", "inline success"),
			css(".jobs-easy-apply-confirmation", "confirmation panel"),
			xpath("//h3[contains(., 'application was sent')]", "sent heading"),
		),
	}
}

// byName indexes the catalog's selectors by their Name.
func (c *Catalog) byName() map[string]*resolve.Selector {
	all := []*resolve.Selector{
		&c.LoginUsername, &c.LoginPassword, &c.LoginSubmit,
		&c.JobCard, &c.JobLink, &c.JobCompany, &c.JobDescription, &c.NextPage,
		&c.PersonCard, &c.PersonName, &c.PersonTitle, &c.PersonProfile, &c.ShowMore,
		&c.ProfileReady, &c.ConnectButton, &c.MoreActions, &c.OverflowConnect, &c.MessageButton,
		&c.AddNote, &c.NoteField, &c.SendInvite, &c.ComposeBox, &c.ComposeSubject, &c.ComposeSend,
		&c.ApplyButton, &c.ApplyModal, &c.TextField, &c.TextArea, &c.SelectField,
		&c.RadioGroup, &c.RadioLegend, &c.RadioOption, &c.NextStep, &c.ReviewStep,
		&c.SubmitApply, &c.ApplyConfirmed,
	}
	out := make(map[string]*resolve.Selector, len(all))
	for _, s := range all {
		out[s.Name] = s
	}
	return out
}

// Names lists every selector name in the catalog.
func (c *Catalog) Names() []string {
	idx := c.byName()
	names := make([]string, 0, len(idx))
	for name := range idx {
		names = append(names, name)
	}
	return names
}
