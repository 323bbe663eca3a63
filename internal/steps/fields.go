package steps

import "github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"

// Candidate selectors for every form field the steps touch. The target's
// flow UI renames fields across releases; each list runs newest to oldest.
var (
	setupUsernameField = bootstrap.Field{Name: "username", Candidates: []string{
		`input[name="akadmin-username"]`,
		`input[name="username"]`,
		`input[name="uid_field"]`,
		`#id_username`,
	}}
	setupNameField = bootstrap.Field{Name: "name", Candidates: []string{
		`input[name="akadmin-name"]`,
		`input[name="name"]`,
		`#id_name`,
	}}
	setupEmailField = bootstrap.Field{Name: "email", Candidates: []string{
		`input[name="akadmin-email"]`,
		`input[name="email"]`,
		`input[type="email"]`,
	}}
	setupPasswordField = bootstrap.Field{Name: "password", Candidates: []string{
		`input[name="akadmin-password"]`,
		`input[name="password"]`,
		`input[type="password"]`,
	}}
	setupPasswordRepeatField = bootstrap.Field{Name: "password_repeat", Candidates: []string{
		`input[name="akadmin-password_repeat"]`,
		`input[name="password_repeat"]`,
		`input[name="passwordRepeat"]`,
	}}

	loginUIDField = bootstrap.Field{Name: "uid", Candidates: []string{
		`input[name="uidField"]`,
		`input[name="uid_field"]`,
		`input[name="username"]`,
		`input[autocomplete="username"]`,
	}}
	loginPasswordField = bootstrap.Field{Name: "password", Candidates: []string{
		`input[name="password"]`,
		`input[type="password"]`,
	}}

	submitButtons = []string{
		`button[type="submit"]`,
		`input[type="submit"]`,
		`.pf-c-button.pf-m-primary`,
		`.pf-v5-c-button.pf-m-primary`,
	}
)
