package provisioning

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateNormalizes(t *testing.T) {
	v := NewValidator()
	req, err := v.Validate(Input{
		Email:               "  Ana.Lopez@Clinic.TEST ",
		DisplayName:         "  Ana Lopez  ",
		TemporaryCredential: "Passw0rd",
		Modules:             []string{" dashboard", "patients", "dashboard", "", "patients "},
	})
	require.NoError(t, err)
	require.Equal(t, "ana.lopez@clinic.test", req.Email)
	require.Equal(t, "Ana Lopez", req.DisplayName)
	require.Equal(t, []Module{ModuleDashboard, ModulePatients}, req.Modules)
}

func TestValidateCredentialBoundary(t *testing.T) {
	v := NewValidator()
	in := Input{Email: "a@b.com", DisplayName: "Ana", Modules: []string{"dashboard"}}

	in.TemporaryCredential = "1234567"
	_, err := v.Validate(in)
	perr := requireCategory(t, err, CategoryValidation)
	require.Equal(t, MsgShortCredential, perr.Message)
	require.Equal(t, MsgShortCredential, perr.Fields["temporaryPassword"])

	in.TemporaryCredential = "12345678"
	_, err = v.Validate(in)
	require.NoError(t, err)
}

func TestValidateDisplayNameBounds(t *testing.T) {
	v := NewValidator()
	valid := []string{"Ali", strings.Repeat("n", 80), strings.Repeat("ñ", 80)}
	invalid := []string{"", "Al", "  Al  ", strings.Repeat("n", 81)}

	for _, name := range valid {
		_, err := v.Validate(Input{Email: "a@b.com", DisplayName: name, TemporaryCredential: "Passw0rd", Modules: []string{"reports"}})
		require.NoError(t, err, name)
	}
	for _, name := range invalid {
		_, err := v.Validate(Input{Email: "a@b.com", DisplayName: name, TemporaryCredential: "Passw0rd", Modules: []string{"reports"}})
		perr := requireCategory(t, err, CategoryValidation)
		require.Equal(t, MsgInvalidDisplayName, perr.Message, name)
	}
}

func TestValidateEmail(t *testing.T) {
	v := NewValidator()
	for _, email := range []string{"", "   ", "ana.clinic.test"} {
		_, err := v.Validate(Input{Email: email, DisplayName: "Ana", TemporaryCredential: "Passw0rd", Modules: []string{"reports"}})
		perr := requireCategory(t, err, CategoryValidation)
		require.Equal(t, MsgInvalidEmail, perr.Message, email)
	}
}

func TestValidateModules(t *testing.T) {
	v := NewValidator()
	base := Input{Email: "a@b.com", DisplayName: "Ana", TemporaryCredential: "Passw0rd"}

	for _, modules := range [][]string{nil, {}, {" ", ""}} {
		in := base
		in.Modules = modules
		_, err := v.Validate(in)
		perr := requireCategory(t, err, CategoryValidation)
		require.Equal(t, MsgNoModules, perr.Message)
	}

	in := base
	in.Modules = []string{"dashboard", "payroll", "billing", "crm", "payroll"}
	_, err := v.Validate(in)
	perr := requireCategory(t, err, CategoryValidation)
	require.Equal(t, MsgInvalidModules, perr.Message)
	require.Equal(t, []string{"payroll", "crm"}, perr.InvalidModules)
	require.Equal(t, []any{"payroll, crm"}, perr.Args)
	require.Contains(t, perr.Error(), "Invalid modules: payroll, crm")
}

func TestValidateReportsEveryField(t *testing.T) {
	v := NewValidator()
	_, err := v.Validate(Input{Email: "nope", DisplayName: "A", TemporaryCredential: "short", Modules: []string{"x"}})
	perr := requireCategory(t, err, CategoryValidation)
	require.Equal(t, MsgInvalidEmail, perr.Message)
	require.Len(t, perr.Fields, 4)
	require.Equal(t, []string{"x"}, perr.InvalidModules)
}

func TestValidateRoleUpdateDefaults(t *testing.T) {
	v := NewValidator()

	update, err := v.ValidateRoleUpdate(RoleUpdateInput{Email: "A@B.com", Role: " ADMIN "})
	require.NoError(t, err)
	require.Equal(t, "a@b.com", update.Email)
	require.Equal(t, RoleAdmin, update.Role)
	require.True(t, update.Active)
	require.Equal(t, Catalog(), update.Modules)

	update, err = v.ValidateRoleUpdate(RoleUpdateInput{Email: "a@b.com"})
	require.NoError(t, err)
	require.Equal(t, RoleStaff, update.Role)
	require.Equal(t, []Module{ModuleDashboard}, update.Modules)

	_, err = v.ValidateRoleUpdate(RoleUpdateInput{Email: "a@b.com", Role: "owner"})
	perr := requireCategory(t, err, CategoryValidation)
	require.Equal(t, MsgInvalidRole, perr.Message)

	_, err = v.ValidateRoleUpdate(RoleUpdateInput{Email: "a@b.com", Role: "staff", Modules: []string{"billing", "hr"}})
	perr = requireCategory(t, err, CategoryValidation)
	require.Equal(t, []string{"hr"}, perr.InvalidModules)
}
