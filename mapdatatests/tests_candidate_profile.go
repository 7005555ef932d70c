package mapdatatests

import (
	"net/url"
	"strings"

	"github.com/mapdata/gateway-contract-tests/gate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	updatedSkill      = "Business Analyst"
	updatedExperience = "12"
	emailMarker       = "%EMAIL%"
)

func DoCandidateProfileTests(t *T) {
	t.Run("updates skill and experience", func(t *T) {
		req := gate.Requirements{}
		for _, key := range []string{
			"UI_BASE_URL",
			"CANDIDATE_EMAIL",
			"UI_SELECTOR_EMAIL_SEARCH_INPUT",
			"UI_SELECTOR_EMAIL_SEARCH_BUTTON",
			"UI_SELECTOR_CANDIDATE_ROW",
			"UI_SELECTOR_SKILL_INPUT",
			"UI_SELECTOR_EXPERIENCE_INPUT",
			"UI_SELECTOR_SAVE_BUTTON",
			"UI_SELECTOR_SUCCESS_MESSAGE",
		} {
			req.Settings = append(req.Settings, t.Setting(key))
		}
		if t.Config().UI.LoginPath.IsDefined() {
			for _, key := range []string{
				"TEST_USERNAME",
				"TEST_PASSWORD",
				"UI_SELECTOR_USERNAME_FIELD",
				"UI_SELECTOR_PASSWORD_FIELD",
				"UI_SELECTOR_LOGIN_BUTTON",
			} {
				req.Settings = append(req.Settings, t.Setting(key))
			}
		}
		t.Require(req)

		ui := t.Config().UI
		sel := ui.Selectors
		email := ui.CandidateEmail.StringValue()

		driver, err := t.env.browsers(t.Context())
		require.NoError(t, err, "could not start a browser")
		t.Defer(func() { _ = driver.Close() })

		baseURL := ui.BaseURL.StringValue()
		t.requireBrowser(driver.Navigate(t.Context(), baseURL))

		if ui.LoginPath.IsDefined() {
			loginURL, err := resolveURL(baseURL, ui.LoginPath.StringValue())
			require.NoError(t, err)
			t.requireBrowser(driver.Navigate(t.Context(), loginURL))
			t.requireBrowser(driver.Fill(t.Context(), sel.UsernameField.StringValue(), ui.Username.StringValue()))
			t.requireBrowser(driver.Fill(t.Context(), sel.PasswordField.StringValue(), ui.Password.StringValue()))
			t.requireBrowser(driver.Click(t.Context(), sel.LoginButton.StringValue()))
		}

		t.requireBrowser(driver.Fill(t.Context(), sel.EmailSearchInput.StringValue(), email))
		t.requireBrowser(driver.Click(t.Context(), sel.EmailSearchButton.StringValue()))

		row := CandidateRowSelector(sel.CandidateRow.StringValue(), email)
		t.requireBrowser(driver.WaitVisible(t.Context(), row))
		t.requireBrowser(driver.Click(t.Context(), row))

		t.requireBrowser(driver.Fill(t.Context(), sel.SkillInput.StringValue(), updatedSkill))
		t.requireBrowser(driver.Fill(t.Context(), sel.ExperienceInput.StringValue(), updatedExperience))
		t.requireBrowser(driver.Click(t.Context(), sel.SaveButton.StringValue()))

		t.requireBrowser(driver.WaitVisible(t.Context(), sel.SuccessMessage.StringValue()))
		msg, err := driver.Text(t.Context(), sel.SuccessMessage.StringValue())
		t.requireBrowser(err)
		assert.NotEmpty(t, strings.TrimSpace(msg), "expected success message to be non-empty")
	})
}

// CandidateRowSelector fills the candidate's email into a row selector template. A selector
// without the %EMAIL% marker is returned unchanged.
func CandidateRowSelector(template, email string) string {
	return strings.ReplaceAll(template, emailMarker, email)
}

func resolveURL(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}

func (t *T) requireBrowser(err error) {
	require.NoError(t, err, "browser action failed")
}
